package model

// Step is one unit of startup-building work from the canonical catalogue.
type Step struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	PhaseID             string   `json:"phase_id"`
	DomainID            string   `json:"domain_id"`
	Difficulty          int      `json:"difficulty"` // 1 (easy) .. 5 (very hard)
	EstimatedMinMinutes int      `json:"estimated_min_minutes"`
	EstimatedMaxMinutes int      `json:"estimated_max_minutes"`
	PrerequisiteIDs     []string `json:"prerequisite_ids"`
	ApplicableStages    []string `json:"applicable_stages"`
}

// Phase is an ordered grouping of steps.
type Phase struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	OrderIndex int    `json:"order_index"`
	Active     bool   `json:"active"`
}
