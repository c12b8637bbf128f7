package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInconsistentSnapshot is returned when input data already violates an
// invariant (duplicate order indices, a record referencing an unknown step).
// Callers should abort rather than silently repair, since a violated input
// invariant usually means a concurrent-write bug upstream.
var ErrInconsistentSnapshot = errors.New("inconsistent snapshot")

type ProgressStatus string

const (
	StatusNotStarted ProgressStatus = "not_started"
	StatusInProgress ProgressStatus = "in_progress"
	StatusCompleted  ProgressStatus = "completed"
	StatusSkipped    ProgressStatus = "skipped"
)

func (s ProgressStatus) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted, StatusSkipped:
		return true
	}
	return false
}

// ProgressRecord tracks one (company, step) pair.
//
// Invariant: CompletedAt is non-nil iff Status is completed, and
// CompletionPercentage is 100 iff Status is completed.
type ProgressRecord struct {
	CompanyID            int64          `json:"company_id"`
	StepID               string         `json:"step_id"`
	Status               ProgressStatus `json:"status"`
	CompletionPercentage int            `json:"completion_percentage"`
	Notes                string         `json:"notes"`
	StartedAt            *time.Time     `json:"started_at,omitempty"`
	CompletedAt          *time.Time     `json:"completed_at,omitempty"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// ApplyStatus transitions the record to the given status at time now,
// keeping the completion invariant. Transitioning away from completed
// clears CompletedAt; transitioning to completed forces the percentage
// to 100 and stamps CompletedAt.
func (r *ProgressRecord) ApplyStatus(status ProgressStatus, percentage int, notes string, now time.Time) error {
	if !status.Valid() {
		return fmt.Errorf("invalid progress status %q", status)
	}
	if percentage < 0 || percentage > 100 {
		return fmt.Errorf("completion percentage %d out of range [0,100]", percentage)
	}

	switch status {
	case StatusCompleted:
		r.CompletionPercentage = 100
		if r.CompletedAt == nil {
			t := now
			r.CompletedAt = &t
		}
		if r.StartedAt == nil {
			t := now
			r.StartedAt = &t
		}
	case StatusInProgress:
		r.CompletedAt = nil
		if percentage == 100 {
			percentage = 99
		}
		r.CompletionPercentage = percentage
		if r.StartedAt == nil {
			t := now
			r.StartedAt = &t
		}
	default:
		r.CompletedAt = nil
		if percentage == 100 {
			percentage = 0
		}
		r.CompletionPercentage = percentage
	}

	r.Status = status
	r.Notes = notes
	r.UpdatedAt = now
	return nil
}

// CheckInvariant validates the completed_at / percentage coupling.
func (r *ProgressRecord) CheckInvariant() error {
	if (r.Status == StatusCompleted) != (r.CompletedAt != nil) {
		return fmt.Errorf("%w: step %s: completed_at set does not match status %s",
			ErrInconsistentSnapshot, r.StepID, r.Status)
	}
	if r.Status == StatusCompleted && r.CompletionPercentage != 100 {
		return fmt.Errorf("%w: step %s: completed with percentage %d",
			ErrInconsistentSnapshot, r.StepID, r.CompletionPercentage)
	}
	return nil
}
