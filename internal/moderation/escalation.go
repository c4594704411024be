package moderation

import "time"

// Escalation thresholds. Curse violations escalate earlier than the other
// warning categories; this asymmetry is deliberate product policy.
const (
	curseTimeoutThreshold = 2
	curseDemoteThreshold  = 6
	otherTimeoutThreshold = 5
)

// RaidTimeout is the fixed penalty applied when raid detection fires.
// It bypasses the warning ledger entirely.
const RaidTimeout = 5 * time.Minute

// Decision is the escalation outcome for one warning.
type Decision struct {
	Timeout  time.Duration // Zero when no timeout is due
	RoleSwap bool          // Swap member role for the demoted role instead of a timeout
}

// TimeoutDuration maps a warning total to a timeout length. Pure, total
// over non-negative counts, and monotonic non-decreasing.
func TimeoutDuration(count int) time.Duration {
	switch {
	case count < 2:
		return 0
	case count == 2:
		return time.Minute
	case count == 3:
		return 30 * time.Minute
	case count == 4:
		return time.Hour
	case count == 5:
		return 2 * time.Hour
	default:
		return 3 * time.Hour
	}
}

// Escalate maps a warning category and the user's updated total to an
// enforcement decision. Curse violations time out from the second warning
// and swap roles from the sixth; every other category only times out from
// the fifth. The executor falls back from a role swap to the timeout when
// the configured roles cannot be resolved.
func Escalate(category string, count int) Decision {
	duration := TimeoutDuration(count)

	if category == CategoryCurse {
		switch {
		case count >= curseDemoteThreshold:
			return Decision{Timeout: duration, RoleSwap: true}
		case count >= curseTimeoutThreshold:
			return Decision{Timeout: duration}
		default:
			return Decision{}
		}
	}

	if count >= otherTimeoutThreshold {
		return Decision{Timeout: duration}
	}
	return Decision{}
}
