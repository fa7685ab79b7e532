package domain

import "time"

// CallStatus indicates how a coordinator API call ended.
type CallStatus string

const (
	CallStatusOK    CallStatus = "ok"
	CallStatusError CallStatus = "error"
)

// CallTrace records one logical coordinator API call (including all its
// internal retries) for operator observability. Traces are call metadata,
// not job state: the pipeline never reads them back.
type CallTrace struct {
	ID         string     `json:"id"`
	Method     string     `json:"method"`
	Endpoint   string     `json:"endpoint"`
	Status     CallStatus `json:"status"`
	HTTPStatus int        `json:"http_status,omitempty"`
	Attempts   int        `json:"attempts"`
	Error      string     `json:"error,omitempty"`
	StartTime  time.Time  `json:"start_time"`
	DurationMs int64      `json:"duration_ms"`
}
