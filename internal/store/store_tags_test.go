package store_test

import (
	"context"
	"errors"
	"testing"

	"salience/internal/apriltag"
	"salience/internal/store"
	"salience/internal/testsupport"
)

func TestSaveAllocationBindsPositions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	sample := testsupport.MustCreateSample(t, st, "ibuprofen", 1)
	if err := st.SaveAllocation(ctx, sample.ID, []int{42, 7, 199, 80}); err != nil {
		t.Fatalf("SaveAllocation: %v", err)
	}

	tags, err := st.SampleTags(ctx, sample.ID)
	if err != nil {
		t.Fatalf("SampleTags: %v", err)
	}
	positions := apriltag.Positions()
	if len(tags) != len(positions) {
		t.Fatalf("got %d tags, want %d", len(tags), len(positions))
	}
	// Sorted tag IDs map onto corner positions in canonical order.
	wantTags := []int{7, 42, 80, 199}
	for i, tag := range tags {
		if tag.Position != string(positions[i]) {
			t.Errorf("position[%d] = %s, want %s", i, tag.Position, positions[i])
		}
		if tag.TagID != wantTags[i] {
			t.Errorf("tag[%d] = %d, want %d", i, tag.TagID, wantTags[i])
		}
	}
}

func TestSaveAllocationRejectsDuplicate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	sample := testsupport.MustCreateSample(t, st, "ibuprofen", 1)
	if err := st.SaveAllocation(ctx, sample.ID, []int{0, 1, 2, 3}); err != nil {
		t.Fatalf("SaveAllocation: %v", err)
	}
	err := st.SaveAllocation(ctx, sample.ID, []int{4, 5, 6, 7})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	// The failed write must not leave partial rows behind.
	allocations, err := st.Allocations(ctx)
	if err != nil {
		t.Fatalf("Allocations: %v", err)
	}
	got := allocations[sample.ID]
	if len(got) != 4 || got[0] != 0 || got[3] != 3 {
		t.Fatalf("allocation corrupted after conflict: %v", got)
	}
}

func TestSaveAllocationRejectsWrongCount(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	sample := testsupport.MustCreateSample(t, st, "ibuprofen", 1)
	if err := st.SaveAllocation(context.Background(), sample.ID, []int{1, 2, 3}); err == nil {
		t.Fatal("expected error for three-tag allocation")
	}
}

func TestDeleteAllocation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.MustCreateSample(t, st, "ibuprofen", 1)
	second := testsupport.MustCreateSample(t, st, "ibuprofen", 2)
	if err := st.SaveAllocation(ctx, first.ID, []int{0, 1, 2, 3}); err != nil {
		t.Fatalf("SaveAllocation: %v", err)
	}
	if err := st.SaveAllocation(ctx, second.ID, []int{4, 5, 6, 7}); err != nil {
		t.Fatalf("SaveAllocation: %v", err)
	}

	if err := st.DeleteAllocation(ctx, first.ID); err != nil {
		t.Fatalf("DeleteAllocation: %v", err)
	}
	allocations, err := st.Allocations(ctx)
	if err != nil {
		t.Fatalf("Allocations: %v", err)
	}
	if _, ok := allocations[first.ID]; ok {
		t.Fatal("deleted allocation still present")
	}
	if _, ok := allocations[second.ID]; !ok {
		t.Fatal("unrelated allocation removed")
	}

	if err := st.DeleteAllAllocations(ctx); err != nil {
		t.Fatalf("DeleteAllAllocations: %v", err)
	}
	allocations, err = st.Allocations(ctx)
	if err != nil {
		t.Fatalf("Allocations: %v", err)
	}
	if len(allocations) != 0 {
		t.Fatalf("expected empty relation, got %v", allocations)
	}
}

func TestSamplesWithoutTags(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.MustCreateSample(t, st, "zinc", 1)
	second := testsupport.MustCreateSample(t, st, "aspirin", 2)
	third := testsupport.MustCreateSample(t, st, "aspirin", 3)
	if err := st.SaveAllocation(ctx, second.ID, []int{0, 1, 2, 3}); err != nil {
		t.Fatalf("SaveAllocation: %v", err)
	}

	missing, err := st.SamplesWithoutTags(ctx)
	if err != nil {
		t.Fatalf("SamplesWithoutTags: %v", err)
	}
	if len(missing) != 2 {
		t.Fatalf("got %d untagged samples, want 2", len(missing))
	}
	// Ascending sample ID, not display order.
	if missing[0].ID != first.ID || missing[1].ID != third.ID {
		t.Fatalf("unexpected order: %d, %d", missing[0].ID, missing[1].ID)
	}
}
