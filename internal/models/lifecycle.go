package models

// TransitionTargets lists the statuses a participant may request through a status update.
var TransitionTargets = []string{StatusInProgress, StatusReady, StatusDelivered, StatusCompleted, StatusCancelled}

// ActiveStatuses are the states in which a writer is assigned and work may progress.
var ActiveStatuses = []string{StatusAccepted, StatusInProgress, StatusReady, StatusDelivered}

// NonTerminalStatuses are every state a request can be cancelled from.
var NonTerminalStatuses = []string{StatusOpen, StatusAccepted, StatusInProgress, StatusReady, StatusDelivered}

var strictPredecessor = map[string]string{
	StatusInProgress: StatusAccepted,
	StatusReady:      StatusInProgress,
	StatusDelivered:  StatusReady,
	StatusCompleted:  StatusDelivered,
}

// IsTerminalStatus reports whether status ends the lifecycle.
func IsTerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusCancelled
}

// IsTransitionTarget reports whether status may be requested by a participant.
func IsTransitionTarget(status string) bool {
	for _, candidate := range TransitionTargets {
		if candidate == status {
			return true
		}
	}
	return false
}

// AllowedSources returns the statuses a request must currently hold for target to apply.
// Cancellation is reachable from every non-terminal state. Other targets require an
// assigned writer; strict mode additionally requires the adjacent predecessor.
func AllowedSources(target string, strict bool) []string {
	if target == StatusCancelled {
		return NonTerminalStatuses
	}
	if strict {
		if prev, ok := strictPredecessor[target]; ok {
			return []string{prev}
		}
		return nil
	}
	if !IsTransitionTarget(target) {
		return nil
	}
	return ActiveStatuses
}

// TargetRole returns the role that must drive target in strict mode, or "" when either participant may.
func TargetRole(target string) string {
	switch target {
	case StatusInProgress, StatusReady, StatusDelivered:
		return RoleWriter
	case StatusCompleted:
		return RoleStudent
	default:
		return ""
	}
}
