package chessdto

import "time"

type HealthResponse struct {
	Status string `json:"status"`
	Theme  string `json:"theme"`
}

type Outcome struct {
	Input   string   `json:"input"`
	Outputs []string `json:"outputs"`
	Error   string   `json:"error,omitempty"`
}

type BatchReport struct {
	RunID     string    `json:"runId"`
	Dir       string    `json:"dir"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Outcomes  []Outcome `json:"outcomes"`
}

type RenderRecord struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"runId"`
	Mode       string    `json:"mode"`
	Input      string    `json:"input"`
	Theme      string    `json:"theme"`
	Outputs    []string  `json:"outputs"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"durationMs"`
	CreatedAt  time.Time `json:"createdAt"`
}
