package recommend

import (
	"sort"

	"journeytracker/internal/model"
)

// Bucket thresholds, expressed on the clamped [1,10] score scale.
const (
	nextStepsLimit = 5
	quickWinsLimit = 3
	strategicLimit = 4
	communityLimit = 5
	expertLimit    = 3

	quickWinScoreFloor  = 6.0
	strategicScoreFloor = 7.0

	quickWinMaxEffortMinutes  = 3 * 24 * 60 // 3 days
	strategicMinEffortMinutes = 7 * 24 * 60 // 7 days

	communityAdoptionFloor = 0.6
)

// Categorize partitions a scored set into the five recommendation buckets.
// Buckets are not mutually exclusive; each is an independent filter + sort +
// truncate over the full input. Empty buckets are empty slices, never nil.
func Categorize(scored []model.ScoredStep) model.RecommendationSet {
	return model.RecommendationSet{
		NextSteps: topByScore(filter(scored, func(s model.ScoredStep) bool {
			return len(s.UnmetPrerequisites) == 0 &&
				(s.Priority == model.PriorityHigh || s.Priority == model.PriorityUrgent)
		}), nextStepsLimit),

		QuickWins: topByScore(filter(scored, func(s model.ScoredStep) bool {
			return s.Step.EstimatedMaxMinutes <= quickWinMaxEffortMinutes &&
				s.Score > quickWinScoreFloor
		}), quickWinsLimit),

		StrategicSteps: topByScore(filter(scored, func(s model.ScoredStep) bool {
			return s.Step.EstimatedMaxMinutes > strategicMinEffortMinutes &&
				s.Score > strategicScoreFloor
		}), strategicLimit),

		CommunityFavorites: topByAdoption(filter(scored, func(s model.ScoredStep) bool {
			return s.CommunityAdoptionRate != nil &&
				*s.CommunityAdoptionRate > communityAdoptionFloor
		}), communityLimit),

		ExpertRecommended: topByScore(filter(scored, func(s model.ScoredStep) bool {
			return s.ExpertEndorsed
		}), expertLimit),
	}
}

func filter(scored []model.ScoredStep, keep func(model.ScoredStep) bool) []model.ScoredStep {
	out := []model.ScoredStep{}
	for _, s := range scored {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

// topByScore sorts descending by score (stable, so ties keep input order)
// and truncates.
func topByScore(scored []model.ScoredStep, limit int) []model.ScoredStep {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

func topByAdoption(scored []model.ScoredStep, limit int) []model.ScoredStep {
	sort.SliceStable(scored, func(i, j int) bool {
		return *scored[i].CommunityAdoptionRate > *scored[j].CommunityAdoptionRate
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}
