package arrangement

import (
	"errors"
	"reflect"
	"testing"

	"journeytracker/internal/model"
)

func entries(stepIDs ...string) []model.ArrangementEntry {
	out := make([]model.ArrangementEntry, len(stepIDs))
	for i, id := range stepIDs {
		out[i] = model.ArrangementEntry{ArrangementID: 1, StepID: id, OrderIndex: i}
	}
	return out
}

func assertDense(t *testing.T, got []model.ArrangementEntry) {
	t.Helper()
	seen := make([]bool, len(got))
	for _, e := range got {
		if e.OrderIndex < 0 || e.OrderIndex >= len(got) {
			t.Fatalf("index %d out of range with %d entries", e.OrderIndex, len(got))
		}
		if seen[e.OrderIndex] {
			t.Fatalf("duplicate index %d", e.OrderIndex)
		}
		seen[e.OrderIndex] = true
	}
}

func order(got []model.ArrangementEntry) []string {
	out := make([]string, len(got))
	for _, e := range got {
		out[e.OrderIndex] = e.StepID
	}
	return out
}

func TestInsert_ShiftsTail(t *testing.T) {
	got, updates, err := Insert(entries("X", "Y", "Z"), model.ArrangementEntry{ArrangementID: 1, StepID: "W"}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDense(t, got)
	if want := []string{"X", "W", "Y", "Z"}; !reflect.DeepEqual(order(got), want) {
		t.Fatalf("order = %v, want %v", order(got), want)
	}
	// Y, Z shifted plus the new entry: minimal diff, X untouched.
	if len(updates) != 3 {
		t.Fatalf("expected 3 index updates, got %d: %v", len(updates), updates)
	}
}

func TestInsert_AppendAtEnd(t *testing.T) {
	got, updates, err := Insert(entries("X"), model.ArrangementEntry{ArrangementID: 1, StepID: "Y"}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDense(t, got)
	if len(updates) != 1 || updates[0].StepID != "Y" || updates[0].NewOrderIndex != 1 {
		t.Fatalf("unexpected updates: %v", updates)
	}
}

func TestInsert_RejectsOutOfRange(t *testing.T) {
	_, _, err := Insert(entries("X"), model.ArrangementEntry{StepID: "Y"}, 3)
	if !errors.Is(err, ErrInvalidIndex) {
		t.Fatalf("expected ErrInvalidIndex, got %v", err)
	}
}

func TestInsert_RejectsDuplicateStep(t *testing.T) {
	_, _, err := Insert(entries("X"), model.ArrangementEntry{StepID: "X"}, 0)
	if err == nil {
		t.Fatalf("expected error for duplicate step")
	}
}

func TestRemove_ClosesGap(t *testing.T) {
	got, updates, err := Remove(entries("X", "Y", "Z"), "Y")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDense(t, got)
	if want := []string{"X", "Z"}; !reflect.DeepEqual(order(got), want) {
		t.Fatalf("order = %v, want %v", order(got), want)
	}
	if len(updates) != 1 || updates[0].StepID != "Z" || updates[0].NewOrderIndex != 1 {
		t.Fatalf("unexpected updates: %v", updates)
	}
}

func TestRemove_UnknownStep(t *testing.T) {
	_, _, err := Remove(entries("X"), "nope")
	if err == nil {
		t.Fatalf("expected error for unknown step")
	}
}

func TestMove_ForwardShiftsDown(t *testing.T) {
	got, updates, err := Move(entries("X", "Y", "Z"), 0, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDense(t, got)
	if want := []string{"Y", "Z", "X"}; !reflect.DeepEqual(order(got), want) {
		t.Fatalf("order = %v, want %v", order(got), want)
	}
	if len(updates) != 3 {
		t.Fatalf("expected 3 updates, got %v", updates)
	}
}

func TestMove_BackwardShiftsUp(t *testing.T) {
	got, _, err := Move(entries("X", "Y", "Z", "W"), 3, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDense(t, got)
	if want := []string{"X", "W", "Y", "Z"}; !reflect.DeepEqual(order(got), want) {
		t.Fatalf("order = %v, want %v", order(got), want)
	}
}

func TestMove_NoOpReturnsUnchanged(t *testing.T) {
	original := entries("X", "Y", "Z")
	got, updates, err := Move(original, 1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, original) {
		t.Fatalf("no-op move changed entries: %v", got)
	}
	if len(updates) != 0 {
		t.Fatalf("no-op move produced updates: %v", updates)
	}
}

func TestMove_RejectsOutOfRangeWithoutMutation(t *testing.T) {
	original := entries("X", "Y")
	for _, indices := range [][2]int{{-1, 0}, {0, 2}, {5, 0}} {
		_, _, err := Move(original, indices[0], indices[1])
		if !errors.Is(err, ErrInvalidIndex) {
			t.Fatalf("Move(%d,%d): expected ErrInvalidIndex, got %v", indices[0], indices[1], err)
		}
	}
	// Input slice untouched.
	if !reflect.DeepEqual(original, entries("X", "Y")) {
		t.Fatalf("failed move mutated input: %v", original)
	}
}

func TestOperations_RejectInconsistentSnapshot(t *testing.T) {
	dup := []model.ArrangementEntry{
		{StepID: "X", OrderIndex: 0},
		{StepID: "Y", OrderIndex: 0},
	}
	if _, _, err := Move(dup, 0, 1); !errors.Is(err, model.ErrInconsistentSnapshot) {
		t.Fatalf("expected ErrInconsistentSnapshot, got %v", err)
	}

	gap := []model.ArrangementEntry{
		{StepID: "X", OrderIndex: 0},
		{StepID: "Y", OrderIndex: 2},
	}
	if _, _, err := Remove(gap, "X"); !errors.Is(err, model.ErrInconsistentSnapshot) {
		t.Fatalf("expected ErrInconsistentSnapshot, got %v", err)
	}
}

func TestInvariantHoldsUnderOperationSequence(t *testing.T) {
	current := entries("A", "B", "C")

	var err error
	ops := []func([]model.ArrangementEntry) ([]model.ArrangementEntry, []model.IndexUpdate, error){
		func(e []model.ArrangementEntry) ([]model.ArrangementEntry, []model.IndexUpdate, error) {
			return Insert(e, model.ArrangementEntry{StepID: "D"}, 0)
		},
		func(e []model.ArrangementEntry) ([]model.ArrangementEntry, []model.IndexUpdate, error) {
			return Move(e, 3, 1)
		},
		func(e []model.ArrangementEntry) ([]model.ArrangementEntry, []model.IndexUpdate, error) {
			return Remove(e, "B")
		},
		func(e []model.ArrangementEntry) ([]model.ArrangementEntry, []model.IndexUpdate, error) {
			return Insert(e, model.ArrangementEntry{StepID: "E"}, 3)
		},
		func(e []model.ArrangementEntry) ([]model.ArrangementEntry, []model.IndexUpdate, error) {
			return Move(e, 2, 0)
		},
	}
	for i, op := range ops {
		current, _, err = op(current)
		if err != nil {
			t.Fatalf("op %d: unexpected error: %v", i, err)
		}
		assertDense(t, current)
	}
}
