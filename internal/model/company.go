package model

import "time"

type Company struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Context CompanyContext `json:"context"`
}

// CompanyContext carries the profile fields the scoring engine personalizes
// on. Everything except MaturityScore is optional.
type CompanyContext struct {
	MaturityScore int      `json:"maturity_score"`
	IndustryID    string   `json:"industry_id,omitempty"`
	BusinessModel string   `json:"business_model,omitempty"`
	FocusAreas    []string `json:"focus_areas,omitempty"`
	LearningStyle string   `json:"learning_style,omitempty"`
}

// Normalized returns a copy with defaults applied.
func (c CompanyContext) Normalized() CompanyContext {
	if c.MaturityScore <= 0 {
		c.MaturityScore = 1
	}
	return c
}
