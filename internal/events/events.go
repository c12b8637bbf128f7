package events

import "time"

// Routing keys on the events exchange.
const (
	ProgressChanged    = "progress.changed"
	MilestoneCompleted = "milestone.completed"
)

type ProgressChangedPayload struct {
	CompanyID int64  `json:"company_id"`
	StepID    string `json:"step_id"`
	Status    string `json:"status"`
	TraceID   string `json:"trace_id,omitempty"`
}

type MilestoneCompletedPayload struct {
	CompanyID     int64     `json:"company_id"`
	PhaseID       string    `json:"phase_id"`
	MilestoneName string    `json:"milestone_name"`
	CompletedAt   time.Time `json:"completed_at"`
	TraceID       string    `json:"trace_id,omitempty"`
}
