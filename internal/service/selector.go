package service

import (
	"sync"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// AssignmentSelector picks one coordinator from a roster using four ordered
// tiers: idle first, then holders of a low-priority ticket, then holders of
// a resolved ticket, then whoever is closest to freeing capacity via the
// auto-close timer. Random tie-breaks go through the injected source so
// tests can seed deterministically.
type AssignmentSelector struct {
	mu   sync.Mutex
	intn domain.IntnFunc
}

// NewAssignmentSelector constructs a selector around a random source.
func NewAssignmentSelector(intn domain.IntnFunc) *AssignmentSelector {
	return &AssignmentSelector{intn: intn}
}

// Select returns the chosen coordinator and the tier that produced the
// choice, or false when the roster is empty. Coordinators missing from
// facts are treated as idle.
func (s *AssignmentSelector) Select(roster []domain.Coordinator, facts map[string]domain.CoordinatorWorkload) (domain.AssignmentDecision, bool) {
	if len(roster) == 0 {
		return domain.AssignmentDecision{}, false
	}

	var idle, lowHolders, resolvedHolders []string
	for _, coord := range roster {
		load := facts[coord.ID]
		switch {
		case load.ActiveCount == 0:
			idle = append(idle, coord.ID)
		case load.HasLowPriority:
			lowHolders = append(lowHolders, coord.ID)
		case load.HasResolved:
			resolvedHolders = append(resolvedHolders, coord.ID)
		}
	}

	if len(idle) > 0 {
		return domain.AssignmentDecision{CoordinatorID: s.pick(idle), Tier: domain.TierIdle}, true
	}
	if len(lowHolders) > 0 {
		return domain.AssignmentDecision{CoordinatorID: s.pick(lowHolders), Tier: domain.TierLowPriority}, true
	}
	if len(resolvedHolders) > 0 {
		return domain.AssignmentDecision{CoordinatorID: s.pick(resolvedHolders), Tier: domain.TierResolved}, true
	}

	// Tier 4: soonest auto-close deadline, first encountered wins ties.
	var nearestID string
	for _, coord := range roster {
		load := facts[coord.ID]
		if load.NearestClosing == nil {
			continue
		}
		if nearestID == "" || load.NearestClosing.Before(*facts[nearestID].NearestClosing) {
			nearestID = coord.ID
		}
	}
	if nearestID != "" {
		return domain.AssignmentDecision{CoordinatorID: nearestID, Tier: domain.TierDeadline}, true
	}

	ids := make([]string, len(roster))
	for i, coord := range roster {
		ids[i] = coord.ID
	}
	return domain.AssignmentDecision{CoordinatorID: s.pick(ids), Tier: domain.TierFallback}, true
}

func (s *AssignmentSelector) pick(ids []string) string {
	if len(ids) == 1 {
		return ids[0]
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return ids[s.intn(len(ids))]
}
