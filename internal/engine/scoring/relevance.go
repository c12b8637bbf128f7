package scoring

import "journeytracker/internal/model"

// RelevanceLookup answers the personalization predicates the scorer keys
// on. Implementations must be deterministic for identical inputs.
type RelevanceLookup interface {
	IndustryRelevant(stepID, industryID string) bool
	BusinessModelAligned(stepID, businessModel string) bool
	LearningStyleMatch(step model.Step, learningStyle string) bool
	FocusAreaMatch(step model.Step, focusAreas []string) bool
}

// StaticLookup is a map-backed RelevanceLookup. Industry and
// business-model relevance come from curated (stepID -> tag set) tables;
// learning-style and focus-area matching compare against the step's
// domain and applicable stages.
type StaticLookup struct {
	IndustryTags      map[string][]string // stepID -> industry ids
	BusinessModelTags map[string][]string // stepID -> business models
	LearningStyles    map[string][]string // domainID -> learning styles served
}

func (l StaticLookup) IndustryRelevant(stepID, industryID string) bool {
	if industryID == "" {
		return false
	}
	return contains(l.IndustryTags[stepID], industryID)
}

func (l StaticLookup) BusinessModelAligned(stepID, businessModel string) bool {
	if businessModel == "" {
		return false
	}
	return contains(l.BusinessModelTags[stepID], businessModel)
}

func (l StaticLookup) LearningStyleMatch(step model.Step, learningStyle string) bool {
	if learningStyle == "" {
		return false
	}
	return contains(l.LearningStyles[step.DomainID], learningStyle)
}

func (l StaticLookup) FocusAreaMatch(step model.Step, focusAreas []string) bool {
	for _, area := range focusAreas {
		if step.DomainID == area || contains(step.ApplicableStages, area) {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
