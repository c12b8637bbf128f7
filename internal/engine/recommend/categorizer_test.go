package recommend

import (
	"testing"

	"journeytracker/internal/model"
)

func scoredStep(id string, score float64, maxMinutes int) model.ScoredStep {
	return model.ScoredStep{
		Step:               model.Step{ID: id, EstimatedMaxMinutes: maxMinutes},
		Score:              score,
		Priority:           priorityFor(score),
		UnmetPrerequisites: []string{},
	}
}

func priorityFor(score float64) model.Priority {
	switch {
	case score > 9:
		return model.PriorityUrgent
	case score > 7:
		return model.PriorityHigh
	case score > 4:
		return model.PriorityMedium
	}
	return model.PriorityLow
}

func rate(v float64) *float64 { return &v }

func TestCategorize_EmptyInputYieldsEmptyBuckets(t *testing.T) {
	set := Categorize(nil)
	for name, bucket := range map[string][]model.ScoredStep{
		"next_steps":          set.NextSteps,
		"quick_wins":          set.QuickWins,
		"strategic_steps":     set.StrategicSteps,
		"community_favorites": set.CommunityFavorites,
		"expert_recommended":  set.ExpertRecommended,
	} {
		if bucket == nil {
			t.Fatalf("bucket %s is nil, want empty slice", name)
		}
		if len(bucket) != 0 {
			t.Fatalf("bucket %s not empty: %v", name, bucket)
		}
	}
}

func TestCategorize_NextStepsRequiresMetPrerequisites(t *testing.T) {
	blocked := scoredStep("blocked", 9.5, 60)
	blocked.UnmetPrerequisites = []string{"p1"}
	ready := scoredStep("ready", 8, 60)
	lowPriority := scoredStep("low", 5, 60)

	set := Categorize([]model.ScoredStep{blocked, ready, lowPriority})

	if len(set.NextSteps) != 1 || set.NextSteps[0].Step.ID != "ready" {
		t.Fatalf("unexpected nextSteps: %v", set.NextSteps)
	}
	for _, s := range set.NextSteps {
		if len(s.UnmetPrerequisites) != 0 {
			t.Fatalf("nextSteps contains step %s with unmet prerequisites", s.Step.ID)
		}
	}
}

func TestCategorize_NextStepsTruncatedToFiveByScore(t *testing.T) {
	var scored []model.ScoredStep
	scores := []float64{8.1, 9.6, 8.4, 10, 7.5, 8.9, 9.2}
	for i, sc := range scores {
		scored = append(scored, scoredStep(string(rune('a'+i)), sc, 60))
	}

	set := Categorize(scored)
	if len(set.NextSteps) != 5 {
		t.Fatalf("expected 5 nextSteps, got %d", len(set.NextSteps))
	}
	for i := 1; i < len(set.NextSteps); i++ {
		if set.NextSteps[i].Score > set.NextSteps[i-1].Score {
			t.Fatalf("nextSteps not sorted descending at %d", i)
		}
	}
	if set.NextSteps[0].Score != 10 {
		t.Fatalf("expected top score 10, got %f", set.NextSteps[0].Score)
	}
}

func TestCategorize_QuickWins(t *testing.T) {
	shortHigh := scoredStep("short-high", 8, 2*24*60)
	shortLow := scoredStep("short-low", 5, 60)
	longHigh := scoredStep("long-high", 9, 10*24*60)

	set := Categorize([]model.ScoredStep{shortHigh, shortLow, longHigh})
	if len(set.QuickWins) != 1 || set.QuickWins[0].Step.ID != "short-high" {
		t.Fatalf("unexpected quickWins: %v", set.QuickWins)
	}
}

func TestCategorize_StrategicSteps(t *testing.T) {
	longHigh := scoredStep("long-high", 8, 10*24*60)
	longLow := scoredStep("long-low", 6, 10*24*60)
	shortHigh := scoredStep("short-high", 9, 60)

	set := Categorize([]model.ScoredStep{longHigh, longLow, shortHigh})
	if len(set.StrategicSteps) != 1 || set.StrategicSteps[0].Step.ID != "long-high" {
		t.Fatalf("unexpected strategicSteps: %v", set.StrategicSteps)
	}
}

func TestCategorize_CommunityFavoritesSortedByAdoption(t *testing.T) {
	a := scoredStep("a", 5, 60)
	a.CommunityAdoptionRate = rate(0.7)
	b := scoredStep("b", 9, 60)
	b.CommunityAdoptionRate = rate(0.9)
	c := scoredStep("c", 9, 60)
	c.CommunityAdoptionRate = rate(0.5) // below floor
	d := scoredStep("d", 9, 60) // no adoption data

	set := Categorize([]model.ScoredStep{a, b, c, d})
	if len(set.CommunityFavorites) != 2 {
		t.Fatalf("expected 2 favorites, got %d", len(set.CommunityFavorites))
	}
	if set.CommunityFavorites[0].Step.ID != "b" || set.CommunityFavorites[1].Step.ID != "a" {
		t.Fatalf("favorites not sorted by adoption: %v", set.CommunityFavorites)
	}
}

func TestCategorize_ExpertRecommendedTruncatedToThree(t *testing.T) {
	var scored []model.ScoredStep
	for i := 0; i < 5; i++ {
		s := scoredStep(string(rune('a'+i)), float64(5+i), 60)
		s.ExpertEndorsed = true
		scored = append(scored, s)
	}
	scored = append(scored, scoredStep("plain", 10, 60))

	set := Categorize(scored)
	if len(set.ExpertRecommended) != 3 {
		t.Fatalf("expected 3 expert picks, got %d", len(set.ExpertRecommended))
	}
	for _, s := range set.ExpertRecommended {
		if !s.ExpertEndorsed {
			t.Fatalf("non-endorsed step %s in expertRecommended", s.Step.ID)
		}
	}
}

func TestCategorize_StepMayAppearInMultipleBuckets(t *testing.T) {
	s := scoredStep("multi", 9, 60)
	s.ExpertEndorsed = true

	set := Categorize([]model.ScoredStep{s})
	if len(set.NextSteps) != 1 || len(set.QuickWins) != 1 || len(set.ExpertRecommended) != 1 {
		t.Fatalf("expected step in three buckets: next=%d quick=%d expert=%d",
			len(set.NextSteps), len(set.QuickWins), len(set.ExpertRecommended))
	}
}
