package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/park285/chess-render/internal/adapter/chesspresenter"
	"github.com/park285/chess-render/pkg/chessdto"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const (
	PathHealth    = "/healthz"
	PathRenderFEN = "/render/fen"
	PathRenderPGN = "/render/pgn"

	contentTypePNG  = "image/png"
	contentTypeJSON = "application/json"

	maxBodySize   = 1 << 20
	renderTimeout = 30 * time.Second
)

// Renderer is the part of the render service the API needs.
type Renderer interface {
	EncodeFEN(ctx context.Context, fen string) ([]byte, error)
	EncodePGN(ctx context.Context, text string, move int) ([]byte, error)
}

type Server struct {
	renderer Renderer
	theme    string
	logger   *zap.Logger
	srv      *fasthttp.Server

	baseCtx context.Context
}

func NewServer(renderer Renderer, themeName string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{renderer: renderer, theme: themeName, logger: logger, baseCtx: context.Background()}
	s.srv = &fasthttp.Server{
		Handler:            s.Handler,
		Name:               "chess-render",
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       30 * time.Second,
		MaxRequestBodySize: maxBodySize,
	}
	return s
}

// Handler routes a single request. It is exported for in-process tests.
func (s *Server) Handler(rc *fasthttp.RequestCtx) {
	start := time.Now()
	path := string(rc.Path())
	switch path {
	case PathHealth:
		if !rc.IsGet() {
			s.methodNotAllowed(rc, fasthttp.MethodGet)
			break
		}
		s.writeJSON(rc, fasthttp.StatusOK, chessdto.HealthResponse{Status: "ok", Theme: s.theme})
	case PathRenderFEN:
		if !rc.IsPost() {
			s.methodNotAllowed(rc, fasthttp.MethodPost)
			break
		}
		s.renderFEN(rc)
	case PathRenderPGN:
		if !rc.IsPost() {
			s.methodNotAllowed(rc, fasthttp.MethodPost)
			break
		}
		s.renderPGN(rc)
	default:
		s.writeError(rc, fasthttp.StatusNotFound, &chessdto.ErrorResponse{Code: chessdto.CodeNotFound, Message: "no route for " + path})
	}

	s.logger.Debug("http request",
		zap.String("method", string(rc.Method())),
		zap.String("path", path),
		zap.Int("status", rc.Response.StatusCode()),
		zap.Duration("elapsed", time.Since(start)),
	)
}

func (s *Server) renderFEN(rc *fasthttp.RequestCtx) {
	fen := strings.TrimSpace(string(rc.PostBody()))
	if fen == "" {
		s.writeError(rc, fasthttp.StatusBadRequest, &chessdto.ErrorResponse{Code: chessdto.CodeBadRequest, Message: "request body must contain a FEN string"})
		return
	}
	ctx, cancel := context.WithTimeout(s.baseCtx, renderTimeout)
	defer cancel()
	data, err := s.renderer.EncodeFEN(ctx, fen)
	if err != nil {
		s.fail(rc, err)
		return
	}
	s.writePNG(rc, data)
}

func (s *Server) renderPGN(rc *fasthttp.RequestCtx) {
	text := string(rc.PostBody())
	if strings.TrimSpace(text) == "" {
		s.writeError(rc, fasthttp.StatusBadRequest, &chessdto.ErrorResponse{Code: chessdto.CodeBadRequest, Message: "request body must contain a PGN game"})
		return
	}

	move := 0
	if raw := rc.QueryArgs().Peek("move"); len(raw) > 0 {
		n, err := strconv.Atoi(string(raw))
		if err != nil || n <= 0 {
			s.writeError(rc, fasthttp.StatusBadRequest, &chessdto.ErrorResponse{Code: chessdto.CodeBadRequest, Message: "move must be a positive integer"})
			return
		}
		move = n
	}

	ctx, cancel := context.WithTimeout(s.baseCtx, renderTimeout)
	defer cancel()
	data, err := s.renderer.EncodePGN(ctx, text, move)
	if err != nil {
		s.fail(rc, err)
		return
	}
	s.writePNG(rc, data)
}

func (s *Server) fail(rc *fasthttp.RequestCtx, err error) {
	dto := chesspresenter.ToErrorResponse(err)
	status := StatusFor(dto.Code)
	if status >= fasthttp.StatusInternalServerError {
		s.logger.Error("render request failed", zap.String("path", string(rc.Path())), zap.Error(err))
	}
	s.writeError(rc, status, dto)
}

// StatusFor maps an error code to its HTTP status.
func StatusFor(code string) int {
	switch code {
	case chessdto.CodeMalformedFEN, chessdto.CodeInvalidGame, chessdto.CodeMoveRange, chessdto.CodeBadRequest:
		return fasthttp.StatusBadRequest
	case chessdto.CodeEmptyGame:
		return fasthttp.StatusUnprocessableEntity
	case chessdto.CodeNotFound:
		return fasthttp.StatusNotFound
	case chessdto.CodeMethodBlocked:
		return fasthttp.StatusMethodNotAllowed
	default:
		return fasthttp.StatusInternalServerError
	}
}

func (s *Server) methodNotAllowed(rc *fasthttp.RequestCtx, allow string) {
	rc.Response.Header.Set(fasthttp.HeaderAllow, allow)
	s.writeError(rc, fasthttp.StatusMethodNotAllowed, &chessdto.ErrorResponse{Code: chessdto.CodeMethodBlocked, Message: "use " + allow})
}

func (s *Server) writePNG(rc *fasthttp.RequestCtx, data []byte) {
	rc.SetStatusCode(fasthttp.StatusOK)
	rc.SetContentType(contentTypePNG)
	rc.SetBody(data)
}

func (s *Server) writeError(rc *fasthttp.RequestCtx, status int, dto *chessdto.ErrorResponse) {
	s.writeJSON(rc, status, dto)
}

func (s *Server) writeJSON(rc *fasthttp.RequestCtx, status int, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		rc.Error("encode response", fasthttp.StatusInternalServerError)
		return
	}
	rc.SetStatusCode(status)
	rc.SetContentType(contentTypeJSON)
	rc.SetBody(payload)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.baseCtx = ctx
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(ln) }()

	s.logger.Info("http api listening", zap.String("addr", ln.Addr().String()))
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return <-errCh
}
