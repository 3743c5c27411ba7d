package apriltag

import (
	"fmt"
	"sort"
)

// CapacityError reports that no tag combination can satisfy the separation
// requirement against the current allocation pool. Allocated carries the pool
// size at the point of failure so operators can decide whether to move to a
// larger family or relax the minimum distance.
type CapacityError struct {
	Allocated int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf(
		"cannot allocate more tags: capacity reached with %d samples allocated; use a larger tag family or reduce min_distance",
		e.Allocated,
	)
}

// Allocator produces tag quadruples satisfying the separation requirement.
// It is stateless; every call operates on the snapshot passed in.
type Allocator struct {
	cfg Config
}

// NewAllocator returns an allocator for the given family configuration.
func NewAllocator(cfg Config) *Allocator {
	return &Allocator{cfg: cfg}
}

// Allocate returns count new tag sets, each sorted ascending and separated
// from every set in existing and from every set allocated earlier in the same
// call. The search is deterministic: tags are ranked by ascending usage (ties
// by tag ID) and combinations of the least-used SearchPool tags are tried in
// combinatorial order, falling back to the full universe before reporting
// CapacityError.
func (a *Allocator) Allocate(existing [][]int, count int) ([][]int, error) {
	pool := make([]map[int]struct{}, 0, len(existing)+count)
	for _, set := range existing {
		pool = append(pool, toSet(set))
	}

	allocated := make([][]int, 0, count)
	for i := 0; i < count; i++ {
		next, ok := a.allocateOne(pool)
		if !ok {
			return nil, &CapacityError{Allocated: len(pool)}
		}
		allocated = append(allocated, next)
		pool = append(pool, toSet(next))
	}
	return allocated, nil
}

func (a *Allocator) allocateOne(pool []map[int]struct{}) ([]int, bool) {
	ranked := a.rankByUsage(pool)

	limit := a.cfg.SearchPool
	if limit > len(ranked) {
		limit = len(ranked)
	}
	if combo, ok := a.firstSeparated(ranked[:limit], pool); ok {
		return combo, true
	}

	// Fallback: exhaustive search over the whole universe in numeric order.
	universe := make([]int, a.cfg.TotalTags)
	for i := range universe {
		universe[i] = i
	}
	return a.firstSeparated(universe, pool)
}

// rankByUsage orders all tag IDs by ascending allocation count, ties broken
// by tag ID, so new allocations draw from underused markers first.
func (a *Allocator) rankByUsage(pool []map[int]struct{}) []int {
	usage := make([]int, a.cfg.TotalTags)
	for _, set := range pool {
		for tag := range set {
			if tag >= 0 && tag < a.cfg.TotalTags {
				usage[tag]++
			}
		}
	}

	ranked := make([]int, a.cfg.TotalTags)
	for i := range ranked {
		ranked[i] = i
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return usage[ranked[i]] < usage[ranked[j]]
	})
	return ranked
}

// firstSeparated enumerates k-combinations of candidates in combinatorial
// order and returns the first one separated from every set in pool.
func (a *Allocator) firstSeparated(candidates []int, pool []map[int]struct{}) ([]int, bool) {
	k := a.cfg.TagsPerSample
	n := len(candidates)
	if k <= 0 || k > n {
		return nil, false
	}

	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	combo := make([]int, k)

	for {
		for i, j := range idx {
			combo[i] = candidates[j]
		}
		if a.separated(combo, pool) {
			result := make([]int, k)
			copy(result, combo)
			sort.Ints(result)
			return result, true
		}

		i := k - 1
		for i >= 0 && idx[i] == i+n-k {
			i--
		}
		if i < 0 {
			return nil, false
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

func (a *Allocator) separated(candidate []int, pool []map[int]struct{}) bool {
	for _, existing := range pool {
		if sharedCount(candidate, existing) > a.cfg.maxShared() {
			return false
		}
	}
	return true
}

func toSet(tags []int) map[int]struct{} {
	set := make(map[int]struct{}, len(tags))
	for _, tag := range tags {
		set[tag] = struct{}{}
	}
	return set
}
