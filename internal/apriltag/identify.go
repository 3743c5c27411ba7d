package apriltag

import "sort"

// Identify matches a detection set against the allocation table and returns
// the identified sample ID. The second return value is false when no sample
// can be claimed with confidence: too few detections, no sample reaching
// minMatch overlapping markers, or a runner-up within one point of the
// winner. Callers must treat all three the same way (prompt for manual
// selection); the result deliberately does not say which rejection applied.
//
// Samples are scanned in ascending ID order and the best/second-best scores
// are tracked in a single streaming pass, matching the shipped behavior of
// the allocation tables this reads: the runner-up score is refreshed when a
// new best displaces the old one, otherwise only when a score beats the
// current runner-up.
func Identify(detected []int, allocations map[int64][]int, minMatch int) (int64, bool) {
	// The threshold applies to the raw detection count, before duplicates
	// collapse into the set.
	if len(detected) < minMatch {
		return 0, false
	}

	detectedSet := toSet(detected)

	sampleIDs := make([]int64, 0, len(allocations))
	for id := range allocations {
		sampleIDs = append(sampleIDs, id)
	}
	sort.Slice(sampleIDs, func(i, j int) bool { return sampleIDs[i] < sampleIDs[j] })

	var bestSample int64
	bestScore := 0
	secondBestScore := 0

	for _, id := range sampleIDs {
		score := sharedCount(allocations[id], detectedSet)
		switch {
		case score > bestScore:
			secondBestScore = bestScore
			bestScore = score
			bestSample = id
		case score > secondBestScore:
			secondBestScore = score
		}
	}

	if bestScore >= minMatch && bestScore-secondBestScore >= 1 {
		return bestSample, true
	}
	return 0, false
}
