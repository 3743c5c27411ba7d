package store

import "errors"

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert or update violates a uniqueness rule,
// such as reusing an email address or assigning a specialist twice.
var ErrConflict = errors.New("conflict")
