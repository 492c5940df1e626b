package domain

// allowedTransitions is the lifecycle state machine. Completed,
// cancelled and no_show are terminal.
var allowedTransitions = map[Status][]Status{
	StatusScheduled:  {StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow},
	StatusConfirmed:  {StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted, StatusCancelled, StatusNoShow},
}

// CanTransition reports whether from → to is a legal lifecycle move.
func CanTransition(from, to Status) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Reschedulable reports whether an appointment in this status may be
// moved to a new slot.
func Reschedulable(status Status) bool {
	switch status {
	case StatusScheduled, StatusConfirmed, StatusInProgress:
		return true
	}
	return false
}
