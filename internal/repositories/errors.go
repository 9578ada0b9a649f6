package repositories

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrActiveEntryExists is the unique-index violation on the one
	// non-stopped entry per user.
	ErrActiveEntryExists = errors.New("a non-stopped time entry already exists for this user")

	// ErrStatusConflict means a conditional status update matched no row:
	// another writer transitioned the entry first.
	ErrStatusConflict = errors.New("time entry status changed concurrently")

	// ErrDuplicateBatch is the primary-key violation on a replayed batch id.
	ErrDuplicateBatch = errors.New("batch already processed")
)
