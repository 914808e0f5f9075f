package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// AssignmentService resolves a ticket owner at approval time. Directory and
// workload reads are bounded and best-effort: a degraded lookup yields "no
// owner" instead of failing the approval that triggered it.
type AssignmentService struct {
	directory  repository.CoordinatorDirectory
	workload   *WorkloadAggregator
	selector   *AssignmentSelector
	tickets    repository.TicketRepository
	staff      repository.StaffRepository
	history    repository.TicketHistoryRepository
	dispatcher events.Dispatcher
	timeout    time.Duration
	logger     *zap.Logger
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	Directory        repository.CoordinatorDirectory
	Workload         *WorkloadAggregator
	Selector         *AssignmentSelector
	TicketRepo       repository.TicketRepository
	StaffRepo        repository.StaffRepository
	HistoryRepo      repository.TicketHistoryRepository
	Dispatcher       events.Dispatcher
	DirectoryTimeout time.Duration
	Logger           *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	timeout := deps.DirectoryTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		directory:  deps.Directory,
		workload:   deps.Workload,
		selector:   deps.Selector,
		tickets:    deps.TicketRepo,
		staff:      deps.StaffRepo,
		history:    deps.HistoryRepo,
		dispatcher: deps.Dispatcher,
		timeout:    timeout,
		logger:     logger,
	}
}

// PickOwner chooses a coordinator for a newly approved ticket, excluding
// excludeID (the approver) when given. A roster emptied by the exclusion is
// retried once unfiltered. Returns nil when no coordinator is available;
// that is not an error for the caller.
func (s *AssignmentService) PickOwner(ctx context.Context, excludeID *string) *domain.AssignmentDecision {
	lookupCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	roster, err := s.directory.ListCoordinators(lookupCtx)
	if err != nil {
		s.logger.Warn("coordinator directory unavailable, leaving ticket unassigned", zap.Error(err))
		return nil
	}
	if len(roster) == 0 {
		return nil
	}

	candidates := roster
	if excludeID != nil {
		filtered := make([]domain.Coordinator, 0, len(roster))
		for _, coord := range roster {
			if coord.ID != *excludeID {
				filtered = append(filtered, coord)
			}
		}
		// The approver may be the only coordinator; retry unfiltered
		// rather than giving up.
		if len(filtered) > 0 {
			candidates = filtered
		}
	}

	ids := make([]string, len(candidates))
	for i, coord := range candidates {
		ids[i] = coord.ID
	}
	facts, err := s.workload.Collect(lookupCtx, ids)
	if err != nil {
		s.logger.Warn("workload aggregation failed, selecting from full roster", zap.Error(err))
		facts = map[string]domain.CoordinatorWorkload{}
	}

	decision, ok := s.selector.Select(candidates, facts)
	if !ok {
		return nil
	}
	s.logger.Info("owner selected",
		zap.String("coordinator_id", decision.CoordinatorID),
		zap.String("tier", string(decision.Tier)))
	return &decision
}

// Reassign hands ticket ownership to a specific coordinator, the explicit
// out-of-band path for tickets the selector left unassigned or that need a
// different owner.
func (s *AssignmentService) Reassign(ctx context.Context, actor *domain.StaffMember, ticketNo, coordinatorID string) (*domain.Ticket, error) {
	if actor == nil || !actor.Role.CanModerate() {
		return nil, apperrors.NewForbidden("coordinator role required")
	}

	assignee, err := s.staff.GetByID(ctx, coordinatorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("coordinator", map[string]any{"coordinator_id": coordinatorID})
		}
		return nil, apperrors.MapError(err)
	}
	if !assignee.Active || assignee.Role != domain.StaffRoleCoordinator {
		return nil, apperrors.NewValidationError("assignee is not an active coordinator", map[string]any{"coordinator_id": coordinatorID})
	}

	ticket, err := s.tickets.GetByTicketNo(ctx, ticketNo)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_no": ticketNo})
		}
		return nil, apperrors.MapError(err)
	}
	if ticket.Status.IsTerminal() {
		return nil, apperrors.NewInvalidState("terminal tickets cannot be reassigned", map[string]any{
			"ticket_no": ticket.TicketNo,
			"status":    ticket.Status,
		})
	}

	oldOwner := ticket.OwnerID
	ticket.OwnerID = &assignee.ID
	if err := s.tickets.UpdateGuarded(ctx, ticket, ticket.Status); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return nil, apperrors.NewConflict("ticket was modified concurrently", map[string]any{"ticket_no": ticket.TicketNo})
		}
		return nil, apperrors.MapError(err)
	}

	if s.history != nil {
		entry := &domain.TicketHistory{
			TicketID:      ticket.ID,
			ChangedByType: domain.AuthorTypeStaff,
			ChangedByID:   &actor.ID,
			ChangeType:    domain.ChangeTypeOwner,
			OldValue:      map[string]any{"owner_id": oldOwner},
			NewValue:      map[string]any{"owner_id": ticket.OwnerID},
		}
		if err := s.history.Create(ctx, entry); err != nil {
			s.logger.Warn("history append failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
	}

	if s.dispatcher != nil {
		event := events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventTicketAssigned,
			TicketNo:  ticket.TicketNo,
			Actor:     events.Actor{Type: domain.AuthorTypeStaff, StaffID: &actor.ID, Name: actor.Name},
			Timestamp: time.Now(),
			Payload:   events.TicketAssignedPayload{OwnerID: ticket.OwnerID},
		}
		_ = s.dispatcher.Publish(ctx, event)
	}
	return ticket, nil
}
