package chess

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Outcome is the result for one input of a folder batch.
type Outcome struct {
	Input   string
	Outputs []string
	Err     error
}

type BatchReport struct {
	RunID    string
	Dir      string
	Outcomes []Outcome
}

func (r *BatchReport) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err == nil {
			n++
		}
	}
	return n
}

func (r *BatchReport) Failed() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

// Images returns every output path across the batch in input order.
func (r *BatchReport) Images() []string {
	var out []string
	for _, o := range r.Outcomes {
		out = append(out, o.Outputs...)
	}
	return out
}

// RenderFolder renders every game file directly under dir. A failing input is
// reported in its Outcome and never stops the others; only a missing or
// unreadable dir fails the call. Inputs that would write the same output
// name fail with ErrDuplicateOutput and are not rendered.
func (s *Service) RenderFolder(ctx context.Context, dir string, finalOnly bool) (*BatchReport, error) {
	inputs, err := s.listInputs(dir)
	if err != nil {
		return nil, err
	}

	report := &BatchReport{
		RunID:    uuid.NewString(),
		Dir:      dir,
		Outcomes: make([]Outcome, len(inputs)),
	}
	s.logger.Info("folder batch started",
		zap.String("run_id", report.RunID),
		zap.String("dir", dir),
		zap.Int("inputs", len(inputs)),
		zap.Bool("final_only", finalOnly),
	)

	collisions := outputCollisions(inputs)

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i, path := range inputs {
		if others, ok := collisions[i]; ok {
			err := fmt.Errorf("%w: %s shares output name %q with %s", ErrDuplicateOutput, path, baseName(path), strings.Join(others, ", "))
			report.Outcomes[i] = Outcome{Input: path, Err: err}
			s.record(ctx, report.RunID, ModeFolder, path, nil, err, time.Now())
			continue
		}
		g.Go(func() error {
			start := time.Now()
			outputs, err := s.renderGameFile(ctx, path, finalOnly, BatchBase(baseName(path), finalOnly))
			report.Outcomes[i] = Outcome{Input: path, Outputs: outputs, Err: err}
			s.record(ctx, report.RunID, ModeFolder, path, outputs, err, start)
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("folder batch finished",
		zap.String("run_id", report.RunID),
		zap.Int("succeeded", report.Succeeded()),
		zap.Int("failed", len(report.Failed())),
	)
	return report, nil
}

// outputCollisions maps the index of every input whose output base name is
// shared with another input to the paths of those other inputs. Names are
// compared case-insensitively so case-folding filesystems cannot merge them.
func outputCollisions(inputs []string) map[int][]string {
	byName := make(map[string][]int, len(inputs))
	for i, path := range inputs {
		key := strings.ToLower(baseName(path))
		byName[key] = append(byName[key], i)
	}
	collisions := make(map[int][]string)
	for _, idx := range byName {
		if len(idx) < 2 {
			continue
		}
		for _, i := range idx {
			for _, j := range idx {
				if j != i {
					collisions[i] = append(collisions[i], inputs[j])
				}
			}
		}
	}
	return collisions
}

// listInputs returns the matching regular files of dir sorted by name.
// Subdirectories are not descended into.
func (s *Service) listInputs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, dir)
	}
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var inputs []string
	for _, e := range entries {
		if e.IsDir() || !s.matchesExtension(e.Name()) {
			continue
		}
		inputs = append(inputs, filepath.Join(dir, e.Name()))
	}
	sort.Strings(inputs)
	return inputs, nil
}

func (s *Service) matchesExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range s.cfg.Extensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}
