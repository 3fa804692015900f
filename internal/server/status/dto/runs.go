package dto

import "time"

const (
	DefaultRunsLimit = 20
	MaxRunsLimit     = 500
)

type ListRunsRequest struct {
	Limit int `query:"limit" validate:"omitempty,min=1,max=500" example:"20"`
}

type RunResponse struct {
	ID         string     `json:"id" example:"8f14e45f-ceea-467f-a0e6-5a1d2f8b9c3e"`
	Command    string     `json:"command" example:"npm run deploy"`
	BodyBytes  int        `json:"body_bytes" example:"512"`
	StartedAt  time.Time  `json:"started_at" example:"2026-01-27T12:30:45Z"`
	FinishedAt *time.Time `json:"finished_at,omitempty" example:"2026-01-27T12:30:52Z"`
	ExitCode   *int       `json:"exit_code,omitempty" example:"0"`
	Error      string     `json:"error,omitempty"`
	Succeeded  bool       `json:"succeeded" example:"true"`
}

type ListRunsResponse struct {
	Runs  []RunResponse `json:"runs"`
	Count int           `json:"count" example:"1"`
}
