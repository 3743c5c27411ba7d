// Package store persists the annotation system's entities in SQLite: users,
// samples and their AprilTag allocations, experiments, assignments, and
// annotation sessions. All methods take a context and return wrapped errors;
// ErrNotFound is returned for lookups that match nothing.
//
// The sample_tags relation has a single writer: the tag allocation service.
// Identification reads it through Allocations.
package store
