package model

import "time"

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ScoredStep wraps a candidate step with its relevance score, reasoning and
// derived priority. Ephemeral, never persisted.
type ScoredStep struct {
	Step                  Step     `json:"step"`
	Score                 float64  `json:"score"`
	Priority              Priority `json:"priority"`
	Reasoning             []string `json:"reasoning"`
	UnmetPrerequisites    []string `json:"unmet_prerequisites"`
	CommunityAdoptionRate *float64 `json:"community_adoption_rate,omitempty"`
	ExpertEndorsed        bool     `json:"expert_endorsed,omitempty"`
}

// RecommendationSet is the categorizer output. Buckets are independent
// views over the same scored set and may overlap; empty buckets are empty
// slices, never nil.
type RecommendationSet struct {
	NextSteps          []ScoredStep `json:"next_steps"`
	QuickWins          []ScoredStep `json:"quick_wins"`
	StrategicSteps     []ScoredStep `json:"strategic_steps"`
	CommunityFavorites []ScoredStep `json:"community_favorites"`
	ExpertRecommended  []ScoredStep `json:"expert_recommended"`
}

// ProgressAnalytics summarizes a company's progress snapshot.
type ProgressAnalytics struct {
	TotalSteps              int     `json:"total_steps"`
	CompletedSteps          int     `json:"completed_steps"`
	InProgressSteps         int     `json:"in_progress_steps"`
	BlockedSteps            int     `json:"blocked_steps"`
	CompletionRate          float64 `json:"completion_rate"`
	CurrentPhase            string  `json:"current_phase"`
	AverageTimePerStep      float64 `json:"average_time_per_step_days"`
	EstimatedCompletionDays float64 `json:"estimated_completion_days"`
}

// MilestoneState is the derived "all steps in phase P completed" condition.
type MilestoneState struct {
	PhaseID         string     `json:"phase_id"`
	MilestoneName   string     `json:"milestone_name"`
	RequiredStepIDs []string   `json:"required_step_ids"`
	Completed       bool       `json:"completed"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// MilestoneEvent is emitted exactly once per incomplete -> complete
// transition. Delivery is the notification collaborator's concern.
type MilestoneEvent struct {
	CompanyID     int64     `json:"company_id"`
	PhaseID       string    `json:"phase_id"`
	MilestoneName string    `json:"milestone_name"`
	CompletedAt   time.Time `json:"completed_at"`
}
