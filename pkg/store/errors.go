package store

import "errors"

// ErrNotFound is returned when a referenced id does not exist. Callers
// must not conflate it with timeouts at the persistence boundary.
var ErrNotFound = errors.New("record not found")

// ErrInvalidTransition is returned when a status update violates the
// forward-only lifecycle.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrAlreadyExists is returned when creating a record whose id is taken.
var ErrAlreadyExists = errors.New("record already exists")

// ErrNotOpen is returned when the store is used before Open.
var ErrNotOpen = errors.New("store not opened; call store.Open first")
