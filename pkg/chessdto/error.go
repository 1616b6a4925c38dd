package chessdto

// Error codes shared by the HTTP API and the CLI.
const (
	CodeMalformedFEN  = "malformed_fen"
	CodeInvalidGame   = "invalid_game"
	CodeEmptyGame     = "empty_game"
	CodeMoveRange     = "move_range"
	CodeNotFound      = "not_found"
	CodeMissingAsset  = "missing_asset"
	CodeInvalidTheme  = "invalid_theme"
	CodePersist       = "persist"
	CodeGeneric       = "generic"
	CodeBadRequest    = "bad_request"
	CodeMethodBlocked = "method_not_allowed"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e ErrorResponse) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "render service error"
}
