// Package apriltag implements the fiducial-marker subsystem that makes
// physical PAD cards machine-identifiable: allocating a quadruple of
// AprilTag IDs to each sample so that any two samples stay distinguishable
// under partial detection, and matching a noisy detection set back to the
// sample in view.
//
// Both halves are pure functions over explicit snapshots. The allocator
// never touches persistence; callers read the current allocation table,
// invoke Allocate, and write the result back under their own transaction.
// The identifier only reads.
package apriltag
