package service

import (
	"context"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// WorkloadAggregator derives per-coordinator workload facts from the ticket
// store. Pure reads, no side effects.
type WorkloadAggregator struct {
	tickets repository.TicketRepository
}

// NewWorkloadAggregator constructs the aggregator.
func NewWorkloadAggregator(tickets repository.TicketRepository) *WorkloadAggregator {
	return &WorkloadAggregator{tickets: tickets}
}

// Collect returns workload facts for every given coordinator, computed from
// a single active-tickets query. Coordinators owning nothing get a zero
// entry (idle).
func (a *WorkloadAggregator) Collect(ctx context.Context, coordinatorIDs []string) (map[string]domain.CoordinatorWorkload, error) {
	facts := make(map[string]domain.CoordinatorWorkload, len(coordinatorIDs))
	for _, id := range coordinatorIDs {
		facts[id] = domain.CoordinatorWorkload{}
	}
	if len(coordinatorIDs) == 0 {
		return facts, nil
	}

	active, err := a.tickets.ListActiveByOwners(ctx, coordinatorIDs)
	if err != nil {
		return nil, err
	}

	for i := range active {
		ticket := &active[i]
		if ticket.OwnerID == nil {
			continue
		}
		entry, ok := facts[*ticket.OwnerID]
		if !ok {
			continue
		}
		entry.ActiveCount++
		if ticket.Priority == domain.TicketPriorityLow {
			entry.HasLowPriority = true
		}
		if ticket.Status == domain.TicketStatusResolved {
			entry.HasResolved = true
			if deadline := ticket.ClosingDeadline(); deadline != nil {
				if entry.NearestClosing == nil || deadline.Before(*entry.NearestClosing) {
					entry.NearestClosing = deadline
				}
			}
		}
		facts[*ticket.OwnerID] = entry
	}
	return facts, nil
}
