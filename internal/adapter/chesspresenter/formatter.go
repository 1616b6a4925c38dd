package chesspresenter

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/park285/chess-render/internal/msgcat"
	"github.com/park285/chess-render/pkg/chessdto"
)

// Formatter renders render results into terminal text using the message
// catalog.
type Formatter struct {
	cat *msgcat.Catalog
}

func NewFormatter(cat *msgcat.Catalog) *Formatter {
	return &Formatter{cat: cat}
}

func (f *Formatter) text(key string, data map[string]any, fallback string) string {
	if f == nil || f.cat == nil {
		return fallback
	}
	s, err := f.cat.Render(key, data)
	if err != nil {
		return fallback
	}
	return s
}

func (f *Formatter) Saved(paths []string) string {
	switch len(paths) {
	case 0:
		return ""
	case 1:
		return f.text("cli.saved", map[string]any{"Path": paths[0]}, "Saved "+paths[0])
	}
	dir := filepath.Dir(paths[0])
	return f.text("cli.saved_many", map[string]any{"Count": len(paths), "Dir": dir},
		fmt.Sprintf("Saved %d image(s) to %s", len(paths), dir))
}

func (f *Formatter) Theme(name string) string {
	return f.text("cli.theme", map[string]any{"Theme": name}, "Using "+name)
}

func (f *Formatter) Batch(r *chessdto.BatchReport) string {
	if r == nil {
		return ""
	}
	if len(r.Outcomes) == 0 {
		return f.text("batch.empty", map[string]any{"Dir": r.Dir}, "No game files found in "+r.Dir)
	}

	var b strings.Builder
	b.WriteString(f.text("batch.summary", map[string]any{
		"RunID":     r.RunID,
		"Succeeded": r.Succeeded,
		"Total":     len(r.Outcomes),
	}, fmt.Sprintf("Batch %s: %d of %d game(s) rendered", r.RunID, r.Succeeded, len(r.Outcomes))))
	for _, o := range r.Outcomes {
		if o.Error == "" {
			continue
		}
		b.WriteString("\n")
		b.WriteString(f.text("batch.failed", map[string]any{"Input": o.Input, "Error": o.Error},
			fmt.Sprintf("  failed %s: %s", o.Input, o.Error)))
	}
	return b.String()
}

// Error maps a classified error to its catalog message.
func (f *Formatter) Error(e *chessdto.ErrorResponse) string {
	if e == nil {
		return ""
	}
	code := e.Code
	if code == "" {
		code = chessdto.CodeGeneric
	}
	data := map[string]any{"Error": e.Message, "Path": e.Message}
	return f.text("errors."+code, data, e.Error())
}
