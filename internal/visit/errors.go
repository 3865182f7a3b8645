package visit

import "errors"

var (
	// ErrVisitNotFound is returned when a visit ID does not exist.
	ErrVisitNotFound = errors.New("visit not found")

	// ErrItemNotFound is returned when a checklist item ID does not exist.
	ErrItemNotFound = errors.New("checklist item not found")

	// ErrTaskNotFound is returned when a task ID does not exist.
	ErrTaskNotFound = errors.New("task not found")

	// ErrProcedureNotFound is returned when a procedure ID does not exist.
	ErrProcedureNotFound = errors.New("procedure not found")

	// ErrInvalidStatus is returned for an unknown status value.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInvalidTransition is returned when a status update skips the
	// lifecycle ladder or moves backwards.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNotComplete is returned when signing off a visit that has not
	// reached complete.
	ErrNotComplete = errors.New("visit is not complete")
)
