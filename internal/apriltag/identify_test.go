package apriltag_test

import (
	"testing"

	"salience/internal/apriltag"
)

func TestIdentifyAcceptsPartialDetection(t *testing.T) {
	allocations := map[int64][]int{
		1: {1, 2, 3, 4},
		2: {10, 11, 12, 13},
	}

	sample, ok := apriltag.Identify([]int{1, 2, 3}, allocations, 3)
	if !ok {
		t.Fatal("expected identification with 3 of 4 markers detected")
	}
	if sample != 1 {
		t.Fatalf("identified sample %d, want 1", sample)
	}
}

func TestIdentifyAcceptsWithNoiseTag(t *testing.T) {
	allocations := map[int64][]int{
		1: {1, 2, 3, 4},
		2: {10, 11, 12, 13},
	}

	// An extra spurious marker should not break a confident match.
	sample, ok := apriltag.Identify([]int{1, 2, 3, 4, 99}, allocations, 3)
	if !ok || sample != 1 {
		t.Fatalf("Identify = (%d, %v), want (1, true)", sample, ok)
	}
}

func TestIdentifyRejectsInsufficientDetections(t *testing.T) {
	allocations := map[int64][]int{
		1: {1, 2, 3, 4},
		2: {10, 11, 12, 13},
	}

	if sample, ok := apriltag.Identify([]int{1, 2}, allocations, 3); ok {
		t.Fatalf("expected no identification with 2 detections, got sample %d", sample)
	}
}

func TestIdentifyRejectsAmbiguousMargin(t *testing.T) {
	allocations := map[int64][]int{
		1: {1, 2, 3, 4},
		2: {1, 2, 3, 9},
	}

	// All four of sample 2's markers in view: score 4 vs 3, margin 1.
	sample, ok := apriltag.Identify([]int{1, 2, 3, 9}, allocations, 3)
	if !ok || sample != 2 {
		t.Fatalf("Identify = (%d, %v), want (2, true)", sample, ok)
	}

	// Only the shared markers in view: both score 3, margin 0.
	if sample, ok := apriltag.Identify([]int{1, 2, 3}, allocations, 3); ok {
		t.Fatalf("expected ambiguous detection to be rejected, got sample %d", sample)
	}
}

func TestIdentifyEmptyDetections(t *testing.T) {
	allocations := map[int64][]int{
		1: {1, 2, 3, 4},
	}

	if _, ok := apriltag.Identify(nil, allocations, 3); ok {
		t.Fatal("expected no identification for an empty detection set")
	}
	if _, ok := apriltag.Identify(nil, nil, 3); ok {
		t.Fatal("expected no identification for empty detections and table")
	}
}

func TestIdentifyEmptyTable(t *testing.T) {
	if sample, ok := apriltag.Identify([]int{1, 2, 3}, nil, 3); ok {
		t.Fatalf("expected no identification against an empty table, got %d", sample)
	}
}

func TestIdentifyTiedBestIsOrderIndependent(t *testing.T) {
	// Two samples tie at the top with a weaker one between them in ID
	// order; the runner-up tracking must still see the tie and reject.
	allocations := map[int64][]int{
		1: {1, 2, 3, 4},
		2: {1, 2, 100, 101},
		3: {1, 2, 3, 9},
	}

	if sample, ok := apriltag.Identify([]int{1, 2, 3}, allocations, 3); ok {
		t.Fatalf("expected tie between samples 1 and 3 to reject, got %d", sample)
	}
}

func TestIdentifyDuplicateDetectionsCountTowardThreshold(t *testing.T) {
	allocations := map[int64][]int{
		1: {1, 2, 3, 4},
		2: {10, 11, 12, 13},
	}

	// Three raw detections clear the threshold check, but only two distinct
	// markers overlap, so the score stays below min_match.
	if sample, ok := apriltag.Identify([]int{1, 1, 2}, allocations, 3); ok {
		t.Fatalf("expected duplicate-heavy detection to reject, got %d", sample)
	}
}
