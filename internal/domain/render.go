package domain

import "time"

// RenderRecord is one ledger row: a single input and what became of it.
type RenderRecord struct {
	ID        int64
	RunID     string
	Mode      string
	Input     string
	Theme     string
	Outputs   []string
	Error     string
	Duration  time.Duration
	CreatedAt time.Time
}

func (r *RenderRecord) Failed() bool { return r != nil && r.Error != "" }
