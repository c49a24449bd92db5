package usage

import "time"

// Log is one append-only telemetry row per pipeline invocation,
// written on success and failure alike.
type Log struct {
	ID         int64     `json:"id"`
	UserID     *int64    `json:"userId,omitempty"`
	Endpoint   string    `json:"endpoint"`
	TokensUsed int       `json:"tokensUsed"`
	Cost       float64   `json:"cost"`
	LatencyMS  int64     `json:"latencyMs"`
	Success    bool      `json:"success"`
	ErrorKind  string    `json:"errorKind,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Summary aggregates usage rows over a window
type Summary struct {
	Invocations int64   `json:"invocations"`
	Failures    int64   `json:"failures"`
	TokensUsed  int64   `json:"tokensUsed"`
	TotalCost   float64 `json:"totalCost"`
}
