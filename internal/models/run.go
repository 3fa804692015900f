package models

import "time"

// Run is one execution of the change command.
type Run struct {
	ID         string     `gorm:"primaryKey;column:id" json:"id"`
	URI        string     `gorm:"column:uri" json:"uri"`
	Command    string     `gorm:"column:command" json:"command"`
	BodyBytes  int        `gorm:"column:body_bytes" json:"body_bytes"`
	StartedAt  time.Time  `gorm:"column:started_at;index" json:"started_at"`
	FinishedAt *time.Time `gorm:"column:finished_at" json:"finished_at,omitempty"`
	ExitCode   *int       `gorm:"column:exit_code" json:"exit_code,omitempty"`
	Error      string     `gorm:"column:error" json:"error,omitempty"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime" json:"-"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"-"`
}

func (Run) TableName() string {
	return "runs"
}

// Succeeded reports whether the run finished with exit code 0.
func (r *Run) Succeeded() bool {
	return r.Error == "" && r.ExitCode != nil && *r.ExitCode == 0
}
