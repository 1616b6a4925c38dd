package chesspresenter

import (
    "errors"

    corechess "github.com/park285/chess-render/internal/chess"
    "github.com/park285/chess-render/internal/domain"
    "github.com/park285/chess-render/internal/replay"
    svc "github.com/park285/chess-render/internal/service/chess"
    "github.com/park285/chess-render/internal/theme"
    "github.com/park285/chess-render/pkg/chessdto"
)

func ToDTOBatchReport(r *svc.BatchReport) *chessdto.BatchReport {
    if r == nil {
        return nil
    }
    out := &chessdto.BatchReport{
        RunID:     r.RunID,
        Dir:       r.Dir,
        Succeeded: r.Succeeded(),
        Failed:    len(r.Failed()),
        Outcomes:  make([]chessdto.Outcome, 0, len(r.Outcomes)),
    }
    for _, o := range r.Outcomes {
        dto := chessdto.Outcome{
            Input:   o.Input,
            Outputs: append([]string{}, o.Outputs...),
        }
        if o.Err != nil {
            dto.Error = o.Err.Error()
        }
        out.Outcomes = append(out.Outcomes, dto)
    }
    return out
}

func ToDTORecord(r *domain.RenderRecord) *chessdto.RenderRecord {
    if r == nil {
        return nil
    }
    return &chessdto.RenderRecord{
        ID:         r.ID,
        RunID:      r.RunID,
        Mode:       r.Mode,
        Input:      r.Input,
        Theme:      r.Theme,
        Outputs:    append([]string{}, r.Outputs...),
        Error:      r.Error,
        DurationMS: r.Duration.Milliseconds(),
        CreatedAt:  r.CreatedAt,
    }
}

func ToDTORecords(list []*domain.RenderRecord) []*chessdto.RenderRecord {
    out := make([]*chessdto.RenderRecord, 0, len(list))
    for _, r := range list {
        out = append(out, ToDTORecord(r))
    }
    return out
}

// ErrorCode classifies err by the sentinel it wraps.
func ErrorCode(err error) string {
    switch {
    case err == nil:
        return ""
    case errors.Is(err, corechess.ErrMalformedFEN):
        return chessdto.CodeMalformedFEN
    case errors.Is(err, replay.ErrEmptyGame):
        return chessdto.CodeEmptyGame
    case errors.Is(err, replay.ErrInvalidGame):
        return chessdto.CodeInvalidGame
    case errors.Is(err, svc.ErrMoveOutOfRange):
        return chessdto.CodeMoveRange
    case errors.Is(err, svc.ErrResourceNotFound):
        return chessdto.CodeNotFound
    case errors.Is(err, svc.ErrMissingAsset):
        return chessdto.CodeMissingAsset
    case errors.Is(err, theme.ErrInvalidTheme):
        return chessdto.CodeInvalidTheme
    case errors.Is(err, svc.ErrPersistenceFailure):
        return chessdto.CodePersist
    default:
        return chessdto.CodeGeneric
    }
}

func ToErrorResponse(err error) *chessdto.ErrorResponse {
    if err == nil {
        return nil
    }
    var dto chessdto.ErrorResponse
    if errors.As(err, &dto) {
        return &dto
    }
    return &chessdto.ErrorResponse{Code: ErrorCode(err), Message: err.Error()}
}
