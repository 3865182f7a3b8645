package visit

// validTransitions maps each status to the statuses it may move to.
// The ladder only moves forward; signed_off is terminal.
var validTransitions = map[Status][]Status{
	StatusPlanned:    {StatusInProgress},
	StatusInProgress: {StatusComplete},
	StatusComplete:   {StatusSignedOff},
	StatusSignedOff:  {},
}

// IsValidStatus reports whether s is a known visit status.
func IsValidStatus(s Status) bool {
	_, ok := validTransitions[s]
	return ok
}

// CanTransition reports whether a visit may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsValidTaskStatus reports whether s is a known task status.
func IsValidTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskPending, TaskDone, TaskSkipped:
		return true
	}
	return false
}
