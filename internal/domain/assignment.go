package domain

import "time"

// AssignmentTier names which selection rule produced an ownership decision.
type AssignmentTier string

const (
	TierIdle        AssignmentTier = "IDLE"
	TierLowPriority AssignmentTier = "LOW_PRIORITY_HOLDER"
	TierResolved    AssignmentTier = "RESOLVED_HOLDER"
	TierDeadline    AssignmentTier = "NEAREST_DEADLINE"
	TierFallback    AssignmentTier = "FALLBACK"
)

// AssignmentDecision is the ephemeral outcome of the selector; logged for
// audit but never persisted as its own entity.
type AssignmentDecision struct {
	CoordinatorID string
	Tier          AssignmentTier
}

// CoordinatorWorkload captures the per-coordinator facts the selector ranks
// on. NearestClosing is the soonest auto-close deadline among the
// coordinator's RESOLVED tickets, nil when they hold none.
type CoordinatorWorkload struct {
	ActiveCount    int
	HasLowPriority bool
	HasResolved    bool
	NearestClosing *time.Time
}
