package milestone

import (
	"fmt"
	"sort"
	"time"

	"journeytracker/internal/model"
)

// Input is one detection pass over a company's progress snapshot.
// PreviouslyComplete carries the caller's persisted "was it complete"
// knowledge per phase; the detector only reports transitions relative to
// it and never delivers notifications itself.
type Input struct {
	CompanyID          int64
	Phases             []model.Phase
	Steps              []model.Step
	Records            []model.ProgressRecord
	PreviouslyComplete map[string]bool
}

// Detect computes the milestone state of every phase and returns the
// completion events for phases that transitioned incomplete -> complete.
// A phase that reverts to incomplete only flips its state; it never
// produces an event. Re-running detection on an unchanged snapshot
// produces no new events as long as PreviouslyComplete reflects the
// prior result.
func Detect(in Input) ([]model.MilestoneState, []model.MilestoneEvent, error) {
	completedAt := make(map[string]*time.Time, len(in.Records))
	for _, rec := range in.Records {
		if err := rec.CheckInvariant(); err != nil {
			return nil, nil, err
		}
		if rec.Status == model.StatusCompleted {
			completedAt[rec.StepID] = rec.CompletedAt
		}
	}

	requiredByPhase := map[string][]string{}
	for _, s := range in.Steps {
		requiredByPhase[s.PhaseID] = append(requiredByPhase[s.PhaseID], s.ID)
	}

	phases := make([]model.Phase, len(in.Phases))
	copy(phases, in.Phases)
	sort.SliceStable(phases, func(i, j int) bool {
		return phases[i].OrderIndex < phases[j].OrderIndex
	})

	var states []model.MilestoneState
	var events []model.MilestoneEvent

	for _, phase := range phases {
		required := requiredByPhase[phase.ID]
		state := model.MilestoneState{
			PhaseID:         phase.ID,
			MilestoneName:   fmt.Sprintf("%s complete", phase.Name),
			RequiredStepIDs: required,
		}

		// A phase with zero steps never completes. An empty "all steps
		// completed" check is vacuously true, which would fire a
		// celebration event for phases that have no work in them.
		if len(required) > 0 {
			state.Completed, state.CompletedAt = phaseCompleted(required, completedAt)
		}

		if state.Completed && !in.PreviouslyComplete[phase.ID] {
			evt := model.MilestoneEvent{
				CompanyID:     in.CompanyID,
				PhaseID:       phase.ID,
				MilestoneName: state.MilestoneName,
			}
			if state.CompletedAt != nil {
				evt.CompletedAt = *state.CompletedAt
			}
			events = append(events, evt)
		}

		states = append(states, state)
	}

	return states, events, nil
}

// phaseCompleted reports whether every required step is completed and, if
// so, the latest contributing completion timestamp.
func phaseCompleted(required []string, completedAt map[string]*time.Time) (bool, *time.Time) {
	var latest *time.Time
	for _, id := range required {
		ts, ok := completedAt[id]
		if !ok {
			return false, nil
		}
		if ts != nil && (latest == nil || ts.After(*latest)) {
			latest = ts
		}
	}
	return true, latest
}
