package model

import "time"

// Arrangement is a named, per-(company,user) ordered view over a subset of
// steps. Version is bumped on every persisted reorder and backs the
// optimistic concurrency check.
type Arrangement struct {
	ID        int64     `json:"id"`
	CompanyID int64     `json:"company_id"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ArrangementEntry places one step inside an arrangement.
//
// Invariant: order indices within one arrangement are exactly {0..n-1},
// no duplicates, no gaps.
type ArrangementEntry struct {
	ArrangementID int64   `json:"arrangement_id"`
	StepID        string  `json:"step_id"`
	OrderIndex    int     `json:"order_index"`
	CustomPhaseID *string `json:"custom_phase_id,omitempty"`
	Notes         string  `json:"notes,omitempty"`
}

// IndexUpdate is one target state of a reorder batch, persisted atomically
// by the storage layer.
type IndexUpdate struct {
	ArrangementID int64  `json:"arrangement_id"`
	StepID        string `json:"step_id"`
	NewOrderIndex int    `json:"new_order_index"`
}
