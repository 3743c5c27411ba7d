package apriltag

// FamilyName identifies the printed marker family. The tag36h11 family
// provides 587 distinct marker IDs.
const FamilyName = "tag36h11"

// Position labels one corner of a sample card. Sorted tag IDs are bound to
// positions in the canonical order returned by Positions.
type Position string

const (
	PositionTopLeft     Position = "top-left"
	PositionTopRight    Position = "top-right"
	PositionBottomLeft  Position = "bottom-left"
	PositionBottomRight Position = "bottom-right"
)

// Positions returns the corner labels in canonical order.
func Positions() []Position {
	return []Position{PositionTopLeft, PositionTopRight, PositionBottomLeft, PositionBottomRight}
}

// Config carries the tunable constants of the marker subsystem. Values are
// fixed per deployment; changing TotalTags or MinDistance after allocations
// exist invalidates the persisted table.
type Config struct {
	// TotalTags is the marker universe size; valid IDs are 0..TotalTags-1.
	TotalTags int
	// TagsPerSample is the number of markers printed on each card.
	TagsPerSample int
	// MinDistance is the minimum number of markers that must differ between
	// any two samples' tag sets.
	MinDistance int
	// SearchPool restricts the primary allocation search to the N least-used
	// tags before falling back to the full universe.
	SearchPool int
	// MinMatch is the minimum number of detected markers required before the
	// identifier will claim a match.
	MinMatch int
}

// DefaultConfig returns the tag36h11 deployment defaults.
func DefaultConfig() Config {
	return Config{
		TotalTags:     587,
		TagsPerSample: 4,
		MinDistance:   2,
		SearchPool:    100,
		MinMatch:      3,
	}
}

// maxShared is the largest number of markers two samples may have in common
// while still satisfying the separation requirement.
//
// This deliberately gates on the raw shared count (shared <= per-sample - min
// distance) rather than a symmetric-difference Hamming distance; existing
// allocation tables were produced under this exact comparison and must keep
// validating against it. Distance exists separately for reporting.
func (c Config) maxShared() int {
	return c.TagsPerSample - c.MinDistance
}

// Distance reports the number of markers by which two equal-sized tag sets
// differ (half the symmetric difference). Reporting only; allocation gating
// uses the shared-count comparison in Config.maxShared.
func Distance(a, b []int) int {
	inA := make(map[int]struct{}, len(a))
	for _, tag := range a {
		inA[tag] = struct{}{}
	}
	shared := 0
	for _, tag := range b {
		if _, ok := inA[tag]; ok {
			shared++
		}
	}
	return (len(a) + len(b) - 2*shared) / 2
}

func sharedCount(candidate []int, existing map[int]struct{}) int {
	shared := 0
	for _, tag := range candidate {
		if _, ok := existing[tag]; ok {
			shared++
		}
	}
	return shared
}
