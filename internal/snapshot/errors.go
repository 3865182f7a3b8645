package snapshot

import "errors"

var (
	// ErrControllerNotFound is returned when a controller ID does not exist.
	ErrControllerNotFound = errors.New("controller not found")

	// ErrControllerExists is returned when creating a controller whose
	// name collides with an existing record.
	ErrControllerExists = errors.New("controller already exists")

	// ErrSnapshotNotFound is returned when a snapshot ID does not exist,
	// or a controller has no snapshots yet.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)
