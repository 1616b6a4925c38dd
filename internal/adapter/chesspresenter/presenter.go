package chesspresenter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/park285/chess-render/pkg/chessdto"
)

// Presenter writes formatted results without coupling the command layer to
// output encoding.
type Presenter struct {
	out    io.Writer
	errOut io.Writer
	format *Formatter
	json   bool
}

func NewPresenter(out, errOut io.Writer, format *Formatter, asJSON bool) *Presenter {
	return &Presenter{out: out, errOut: errOut, format: format, json: asJSON}
}

func (p *Presenter) Saved(paths []string) error {
	if p == nil {
		return nil
	}
	if p.json {
		return p.writeJSON(p.out, map[string]any{"outputs": nonNil(paths)})
	}
	return p.line(p.out, p.format.Saved(paths))
}

func (p *Presenter) Batch(r *chessdto.BatchReport) error {
	if p == nil {
		return nil
	}
	if p.json {
		return p.writeJSON(p.out, r)
	}
	return p.line(p.out, p.format.Batch(r))
}

func (p *Presenter) Records(list []*chessdto.RenderRecord) error {
	if p == nil {
		return nil
	}
	if p.json {
		return p.writeJSON(p.out, list)
	}
	for _, r := range list {
		status := "ok"
		if r.Error != "" {
			status = "failed: " + r.Error
		}
		if err := p.line(p.out, fmt.Sprintf("%d\t%s\t%s\t%s\t%d image(s)\t%s", r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Mode, r.Input, len(r.Outputs), status)); err != nil {
			return err
		}
	}
	return nil
}

func (p *Presenter) Error(e *chessdto.ErrorResponse) error {
	if p == nil || e == nil {
		return nil
	}
	if p.json {
		return p.writeJSON(p.errOut, e)
	}
	return p.line(p.errOut, p.format.Error(e))
}

func (p *Presenter) line(w io.Writer, s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	_, err := fmt.Fprintln(w, s)
	return err
}

func (p *Presenter) writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
