package apriltag_test

import (
	"errors"
	"testing"

	"salience/internal/apriltag"
)

func sharedTags(a, b []int) int {
	set := make(map[int]struct{}, len(a))
	for _, tag := range a {
		set[tag] = struct{}{}
	}
	count := 0
	for _, tag := range b {
		if _, ok := set[tag]; ok {
			count++
		}
	}
	return count
}

func TestAllocateBatchKeepsSeparation(t *testing.T) {
	cfg := apriltag.DefaultConfig()
	allocator := apriltag.NewAllocator(cfg)

	existing := [][]int{{0, 1, 2, 3}, {0, 1, 4, 5}}
	allocated, err := allocator.Allocate(existing, 25)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if len(allocated) != 25 {
		t.Fatalf("expected 25 allocations, got %d", len(allocated))
	}

	all := append(append([][]int{}, existing...), allocated...)
	maxShared := cfg.TagsPerSample - cfg.MinDistance
	for i := range all {
		for j := i + 1; j < len(all); j++ {
			if shared := sharedTags(all[i], all[j]); shared > maxShared {
				t.Errorf("sets %v and %v share %d tags, want at most %d", all[i], all[j], shared, maxShared)
			}
		}
	}
}

func TestAllocateIsDeterministic(t *testing.T) {
	allocator := apriltag.NewAllocator(apriltag.DefaultConfig())
	existing := [][]int{{10, 20, 30, 40}, {10, 20, 50, 60}}

	first, err := allocator.Allocate(existing, 1)
	if err != nil {
		t.Fatalf("first Allocate failed: %v", err)
	}
	second, err := allocator.Allocate(existing, 1)
	if err != nil {
		t.Fatalf("second Allocate failed: %v", err)
	}

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected single allocations, got %d and %d", len(first), len(second))
	}
	for i := range first[0] {
		if first[0][i] != second[0][i] {
			t.Fatalf("allocations differ: %v vs %v", first[0], second[0])
		}
	}
}

func TestAllocateRespectsUniverseAndUniqueness(t *testing.T) {
	cfg := apriltag.DefaultConfig()
	allocator := apriltag.NewAllocator(cfg)

	allocated, err := allocator.Allocate(nil, 50)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	for _, set := range allocated {
		if len(set) != cfg.TagsPerSample {
			t.Fatalf("allocation %v has %d tags, want %d", set, len(set), cfg.TagsPerSample)
		}
		seen := make(map[int]struct{}, len(set))
		for _, tag := range set {
			if tag < 0 || tag >= cfg.TotalTags {
				t.Errorf("tag %d outside universe [0,%d)", tag, cfg.TotalTags)
			}
			if _, dup := seen[tag]; dup {
				t.Errorf("allocation %v repeats tag %d", set, tag)
			}
			seen[tag] = struct{}{}
		}
	}
}

func TestAllocateReturnsSortedSets(t *testing.T) {
	allocator := apriltag.NewAllocator(apriltag.DefaultConfig())
	allocated, err := allocator.Allocate(nil, 3)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	for _, set := range allocated {
		for i := 1; i < len(set); i++ {
			if set[i-1] >= set[i] {
				t.Fatalf("allocation %v is not sorted ascending", set)
			}
		}
	}
}

func TestAllocatePrefersUnderusedTags(t *testing.T) {
	cfg := apriltag.DefaultConfig()
	allocator := apriltag.NewAllocator(cfg)

	// Tags 0..7 are already in heavy use; a fresh allocation should draw
	// from markers with no usage at all.
	existing := [][]int{{0, 1, 2, 3}, {4, 5, 6, 7}, {0, 1, 4, 5}, {2, 3, 6, 7}}
	allocated, err := allocator.Allocate(existing, 1)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	for _, tag := range allocated[0] {
		if tag <= 7 {
			t.Fatalf("allocation %v reuses heavily used tag %d", allocated[0], tag)
		}
	}
}

func TestAllocateCapacityExhausted(t *testing.T) {
	cfg := apriltag.DefaultConfig()
	cfg.TotalTags = 4
	allocator := apriltag.NewAllocator(cfg)

	first, err := allocator.Allocate(nil, 1)
	if err != nil {
		t.Fatalf("first Allocate failed: %v", err)
	}
	want := []int{0, 1, 2, 3}
	for i, tag := range first[0] {
		if tag != want[i] {
			t.Fatalf("expected allocation %v, got %v", want, first[0])
		}
	}

	_, err = allocator.Allocate(first, 1)
	if err == nil {
		t.Fatal("expected capacity error on a full 4-tag universe")
	}
	var capErr *apriltag.CapacityError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected CapacityError, got %T: %v", err, err)
	}
	if capErr.Allocated != 1 {
		t.Fatalf("CapacityError.Allocated = %d, want 1", capErr.Allocated)
	}
}

func TestAllocateFallsBackToFullUniverse(t *testing.T) {
	cfg := apriltag.DefaultConfig()
	cfg.TotalTags = 8
	cfg.SearchPool = 3
	cfg.MinDistance = 4
	allocator := apriltag.NewAllocator(cfg)

	// The restricted pool holds fewer tags than a full quadruple needs, so
	// the allocator must fall back to enumerating the whole universe.
	existing := [][]int{{0, 1, 2, 3}}
	allocated, err := allocator.Allocate(existing, 1)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	want := []int{4, 5, 6, 7}
	for i, tag := range allocated[0] {
		if tag != want[i] {
			t.Fatalf("expected fallback allocation %v, got %v", want, allocated[0])
		}
	}
}

func TestDistance(t *testing.T) {
	cases := []struct {
		name string
		a, b []int
		want int
	}{
		{"identical", []int{1, 2, 3, 4}, []int{1, 2, 3, 4}, 0},
		{"one differs", []int{1, 2, 3, 4}, []int{1, 2, 3, 9}, 1},
		{"disjoint", []int{1, 2, 3, 4}, []int{5, 6, 7, 8}, 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := apriltag.Distance(tc.a, tc.b); got != tc.want {
				t.Fatalf("Distance(%v, %v) = %d, want %d", tc.a, tc.b, got, tc.want)
			}
		})
	}
}
