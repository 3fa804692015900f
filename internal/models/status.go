package models

import "time"

// Loop states as reported by the status API.
const (
	StateIdle           = "idle"
	StateCommandRunning = "command_running"
	StateAuthRefreshing = "auth_refreshing"
)

// WatchStatus is a point-in-time copy of the watch loop state.
type WatchStatus struct {
	URI            string     `json:"uri"`
	State          string     `json:"state"`
	CommandRunning bool       `json:"command_running"`
	AuthRefreshing bool       `json:"auth_refreshing"`
	HasToken       bool       `json:"has_token"`
	Ticks          uint64     `json:"ticks"`
	SkippedTicks   uint64     `json:"skipped_ticks"`
	Fetches        uint64     `json:"fetches"`
	Changes        uint64     `json:"changes"`
	LastStatusCode int        `json:"last_status_code,omitempty"`
	LastSuccessAt  *time.Time `json:"last_success_at,omitempty"`
	LastChangeAt   *time.Time `json:"last_change_at,omitempty"`
	CurrentRunID   string     `json:"current_run_id,omitempty"`
}
