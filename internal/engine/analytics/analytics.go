package analytics

import (
	"fmt"
	"sort"
	"strings"

	"journeytracker/internal/model"
)

// defaultAverageStepDays is the fixed fallback used when no completion
// history exists. A placeholder, not a prediction.
const defaultAverageStepDays = 3.5

const hoursPerDay = 24

// Aggregate summarizes a company's progress snapshot. Pure: same input,
// same output. Records referencing steps absent from the catalogue or
// violating the completion invariant fail loudly.
func Aggregate(steps []model.Step, phases []model.Phase, records []model.ProgressRecord) (model.ProgressAnalytics, error) {
	stepsByID := make(map[string]model.Step, len(steps))
	for _, s := range steps {
		stepsByID[s.ID] = s
	}

	var out model.ProgressAnalytics
	out.TotalSteps = len(records)

	// phaseID -> count of open (in_progress or not_started) steps
	openByPhase := map[string]int{}
	var totalDays float64
	var timedCompletions int

	for _, rec := range records {
		step, ok := stepsByID[rec.StepID]
		if !ok {
			return model.ProgressAnalytics{}, fmt.Errorf("%w: progress record references unknown step %s",
				model.ErrInconsistentSnapshot, rec.StepID)
		}
		if err := rec.CheckInvariant(); err != nil {
			return model.ProgressAnalytics{}, err
		}

		switch rec.Status {
		case model.StatusCompleted:
			out.CompletedSteps++
			if rec.StartedAt != nil && rec.CompletedAt != nil {
				totalDays += rec.CompletedAt.Sub(*rec.StartedAt).Hours() / hoursPerDay
				timedCompletions++
			}
		case model.StatusInProgress:
			out.InProgressSteps++
			openByPhase[step.PhaseID]++
		case model.StatusNotStarted:
			if strings.Contains(strings.ToLower(rec.Notes), "blocked") {
				out.BlockedSteps++
			}
			openByPhase[step.PhaseID]++
		}
	}

	if out.TotalSteps > 0 {
		out.CompletionRate = float64(out.CompletedSteps) / float64(out.TotalSteps) * 100
	}

	out.CurrentPhase = currentPhase(phases, openByPhase)

	if timedCompletions > 0 {
		out.AverageTimePerStep = totalDays / float64(timedCompletions)
	} else {
		out.AverageTimePerStep = defaultAverageStepDays
	}
	out.EstimatedCompletionDays = float64(out.TotalSteps-out.CompletedSteps) * out.AverageTimePerStep

	return out, nil
}

// currentPhase picks the phase with the most open steps; ties break toward
// the lower canonical phase order.
func currentPhase(phases []model.Phase, openByPhase map[string]int) string {
	ordered := make([]model.Phase, len(phases))
	copy(ordered, phases)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].OrderIndex < ordered[j].OrderIndex
	})

	best := ""
	bestCount := 0
	for _, p := range ordered {
		if count := openByPhase[p.ID]; count > bestCount {
			best = p.ID
			bestCount = count
		}
	}
	return best
}
