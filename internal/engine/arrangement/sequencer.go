// Package arrangement maintains dense, zero-based order indices over the
// entries of a custom arrangement. All operations are pure: they compute a
// fresh entry slice plus the minimal batch of index reassignments, which
// the storage layer must persist in a single transaction.
package arrangement

import (
	"errors"
	"fmt"
	"sort"

	"journeytracker/internal/model"
)

// ErrInvalidIndex rejects a move/insert with an out-of-range index. The
// operation performs no mutation.
var ErrInvalidIndex = errors.New("invalid order index")

// Insert places newEntry at atIndex, shifting every entry at or after that
// position up by one. atIndex may equal len(entries) to append.
func Insert(entries []model.ArrangementEntry, newEntry model.ArrangementEntry, atIndex int) ([]model.ArrangementEntry, []model.IndexUpdate, error) {
	if err := checkDense(entries); err != nil {
		return nil, nil, err
	}
	if atIndex < 0 || atIndex > len(entries) {
		return nil, nil, fmt.Errorf("%w: insert at %d with %d entries", ErrInvalidIndex, atIndex, len(entries))
	}
	for _, e := range entries {
		if e.StepID == newEntry.StepID {
			return nil, nil, fmt.Errorf("step %s already in arrangement", newEntry.StepID)
		}
	}

	result := make([]model.ArrangementEntry, len(entries))
	copy(result, entries)

	var updates []model.IndexUpdate
	for i := range result {
		if result[i].OrderIndex >= atIndex {
			result[i].OrderIndex++
			updates = append(updates, update(result[i]))
		}
	}

	newEntry.OrderIndex = atIndex
	result = append(result, newEntry)
	updates = append(updates, update(newEntry))

	sortByIndex(result)
	return result, updates, nil
}

// Remove deletes the entry for stepID and closes the gap by decrementing
// every entry that followed it.
func Remove(entries []model.ArrangementEntry, stepID string) ([]model.ArrangementEntry, []model.IndexUpdate, error) {
	if err := checkDense(entries); err != nil {
		return nil, nil, err
	}

	removedIndex := -1
	for _, e := range entries {
		if e.StepID == stepID {
			removedIndex = e.OrderIndex
			break
		}
	}
	if removedIndex < 0 {
		return nil, nil, fmt.Errorf("step %s not in arrangement", stepID)
	}

	result := make([]model.ArrangementEntry, 0, len(entries)-1)
	var updates []model.IndexUpdate
	for _, e := range entries {
		if e.StepID == stepID {
			continue
		}
		if e.OrderIndex > removedIndex {
			e.OrderIndex--
			updates = append(updates, update(e))
		}
		result = append(result, e)
	}

	sortByIndex(result)
	return result, updates, nil
}

// Move relocates the entry at sourceIndex to destinationIndex, shifting
// everything in between by one. source == destination is a no-op. The
// whole reassignment is computed in memory; nothing is mutated on error.
func Move(entries []model.ArrangementEntry, sourceIndex, destinationIndex int) ([]model.ArrangementEntry, []model.IndexUpdate, error) {
	if err := checkDense(entries); err != nil {
		return nil, nil, err
	}
	if sourceIndex < 0 || sourceIndex >= len(entries) {
		return nil, nil, fmt.Errorf("%w: source %d with %d entries", ErrInvalidIndex, sourceIndex, len(entries))
	}
	if destinationIndex < 0 || destinationIndex >= len(entries) {
		return nil, nil, fmt.Errorf("%w: destination %d with %d entries", ErrInvalidIndex, destinationIndex, len(entries))
	}

	result := make([]model.ArrangementEntry, len(entries))
	copy(result, entries)

	if sourceIndex == destinationIndex {
		return result, []model.IndexUpdate{}, nil
	}

	var updates []model.IndexUpdate
	for i := range result {
		idx := result[i].OrderIndex
		switch {
		case idx == sourceIndex:
			result[i].OrderIndex = destinationIndex
		case sourceIndex < destinationIndex && idx > sourceIndex && idx <= destinationIndex:
			result[i].OrderIndex--
		case sourceIndex > destinationIndex && idx >= destinationIndex && idx < sourceIndex:
			result[i].OrderIndex++
		default:
			continue
		}
		updates = append(updates, update(result[i]))
	}

	sortByIndex(result)
	return result, updates, nil
}

// checkDense verifies the incoming snapshot already holds the invariant:
// indices are exactly {0..n-1}. A violated input is a concurrent-write bug
// upstream and must not be silently repaired.
func checkDense(entries []model.ArrangementEntry) error {
	seen := make([]bool, len(entries))
	for _, e := range entries {
		if e.OrderIndex < 0 || e.OrderIndex >= len(entries) {
			return fmt.Errorf("%w: step %s has order index %d with %d entries",
				model.ErrInconsistentSnapshot, e.StepID, e.OrderIndex, len(entries))
		}
		if seen[e.OrderIndex] {
			return fmt.Errorf("%w: duplicate order index %d",
				model.ErrInconsistentSnapshot, e.OrderIndex)
		}
		seen[e.OrderIndex] = true
	}
	return nil
}

func update(e model.ArrangementEntry) model.IndexUpdate {
	return model.IndexUpdate{
		ArrangementID: e.ArrangementID,
		StepID:        e.StepID,
		NewOrderIndex: e.OrderIndex,
	}
}

func sortByIndex(entries []model.ArrangementEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].OrderIndex < entries[j].OrderIndex
	})
}
