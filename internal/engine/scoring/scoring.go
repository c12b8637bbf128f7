package scoring

import (
	"math"

	"journeytracker/internal/model"
)

const (
	baseScore = 5.0
	minScore  = 1.0
	maxScore  = 10.0

	// quickWinMaxMinutes bounds the estimated max effort for the quick-win
	// bonus (4 hours).
	quickWinMaxMinutes = 240

	defaultReasoning = "Based on your company profile"
)

// Priority thresholds on the clamped [1,10] score scale.
const (
	urgentThreshold = 9.0
	highThreshold   = 7.0
	mediumThreshold = 4.0
)

// PriorityForScore derives the priority tier from a clamped score.
func PriorityForScore(score float64) model.Priority {
	switch {
	case score > urgentThreshold:
		return model.PriorityUrgent
	case score > highThreshold:
		return model.PriorityHigh
	case score > mediumThreshold:
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}

// Input is one scoring request. Community adoption rates and expert
// endorsements are explicit inputs so the engine stays pure; it never
// consults a clock or a random source.
type Input struct {
	Candidates        []model.Step
	Context           model.CompanyContext
	CompletedStepIDs  map[string]bool
	InProgressStepIDs map[string]bool
	AdoptionRates     map[string]float64
	ExpertEndorsed    map[string]bool
}

type Engine struct {
	lookup RelevanceLookup
}

func NewEngine(lookup RelevanceLookup) *Engine {
	return &Engine{lookup: lookup}
}

// Score computes a relevance score and reasoning for every candidate.
// Output order follows input order; identical inputs yield identical
// output. Never fails for well-formed input; an empty candidate list
// yields an empty result.
func (e *Engine) Score(in Input) []model.ScoredStep {
	ctx := in.Context.Normalized()

	scored := make([]model.ScoredStep, 0, len(in.Candidates))
	for _, step := range in.Candidates {
		scored = append(scored, e.scoreStep(step, ctx, in))
	}
	return scored
}

func (e *Engine) scoreStep(step model.Step, ctx model.CompanyContext, in Input) model.ScoredStep {
	score := baseScore
	var reasoning []string

	// Difficulty vs maturity fit.
	switch gap := int(math.Abs(float64(step.Difficulty - ctx.MaturityScore))); {
	case gap <= 1:
		score += 2
		reasoning = append(reasoning, "Well suited to your company's maturity")
	case gap <= 2:
		score += 1
		reasoning = append(reasoning, "A manageable stretch at your maturity level")
	case gap <= 3:
		// neutral
	default:
		score -= 1
		reasoning = append(reasoning, "Significantly beyond your current maturity")
	}

	if step.EstimatedMaxMinutes > 0 && step.EstimatedMaxMinutes < quickWinMaxMinutes {
		score += 1
		reasoning = append(reasoning, "Quick win: takes under four hours")
	}

	if e.lookup.IndustryRelevant(step.ID, ctx.IndustryID) {
		score += 2
		reasoning = append(reasoning, "Highly relevant to your industry")
	}

	if e.lookup.BusinessModelAligned(step.ID, ctx.BusinessModel) {
		score += 1.5
		reasoning = append(reasoning, "Aligns with your business model")
	}

	if e.lookup.LearningStyleMatch(step, ctx.LearningStyle) {
		score += 1
		reasoning = append(reasoning, "Matches your preferred learning style")
	}

	if e.lookup.FocusAreaMatch(step, ctx.FocusAreas) {
		score += 2
		reasoning = append(reasoning, "In one of your focus areas")
	}

	unmet := unmetPrerequisites(step, in.CompletedStepIDs)
	if len(unmet) == 0 {
		score += 2
		reasoning = append(reasoning, "All prerequisites are complete")
	}

	if in.InProgressStepIDs[step.ID] {
		score += 3
		reasoning = append(reasoning, "Already in progress, finish it to keep momentum")
	}

	if len(reasoning) == 0 {
		reasoning = append(reasoning, defaultReasoning)
	}

	score = clamp(score, minScore, maxScore)

	result := model.ScoredStep{
		Step:               step,
		Score:              score,
		Priority:           PriorityForScore(score),
		Reasoning:          reasoning,
		UnmetPrerequisites: unmet,
		ExpertEndorsed:     in.ExpertEndorsed[step.ID],
	}
	if rate, ok := in.AdoptionRates[step.ID]; ok {
		r := rate
		result.CommunityAdoptionRate = &r
	}
	return result
}

// unmetPrerequisites returns prerequisite ids not yet completed, in the
// step's declared order. An empty prerequisite list is trivially satisfied.
func unmetPrerequisites(step model.Step, completed map[string]bool) []string {
	unmet := []string{}
	for _, id := range step.PrerequisiteIDs {
		if !completed[id] {
			unmet = append(unmet, id)
		}
	}
	return unmet
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
