package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// LifecycleService enforces the ticket state machine: which transitions are
// legal, their preconditions, and their side effects (timestamps, ownership
// assignment, audit comments, notification events). Notification emission
// and audit appends are best-effort; they never roll back a status write.
type LifecycleService struct {
	tickets     repository.TicketRepository
	comments    repository.TicketCommentRepository
	history     repository.TicketHistoryRepository
	departments repository.DepartmentRepository
	assigner    *AssignmentService
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	nowFn       func() time.Time
}

// LifecycleDependencies bundles collaborators for the lifecycle controller.
type LifecycleDependencies struct {
	TicketRepo     repository.TicketRepository
	CommentRepo    repository.TicketCommentRepository
	HistoryRepo    repository.TicketHistoryRepository
	DepartmentRepo repository.DepartmentRepository
	Assigner       *AssignmentService
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	Now            func() time.Time
}

// NewLifecycleService constructs the controller.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	nowFn := deps.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LifecycleService{
		tickets:     deps.TicketRepo,
		comments:    deps.CommentRepo,
		history:     deps.HistoryRepo,
		departments: deps.DepartmentRepo,
		assigner:    deps.Assigner,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
		nowFn:       nowFn,
	}
}

// updateStatusTransitions lists the transitions UpdateStatus may perform.
// NEW and PENDING tickets move only through Approve/Reject/Withdraw, and
// terminal statuses accept nothing.
var updateStatusTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:       {domain.TicketStatusInProgress, domain.TicketStatusOnHold, domain.TicketStatusResolved, domain.TicketStatusClosed, domain.TicketStatusRejected},
	domain.TicketStatusInProgress: {domain.TicketStatusOnHold, domain.TicketStatusResolved, domain.TicketStatusClosed, domain.TicketStatusRejected},
	domain.TicketStatusOnHold:     {domain.TicketStatusInProgress, domain.TicketStatusResolved, domain.TicketStatusClosed, domain.TicketStatusRejected},
	domain.TicketStatusResolved:   {domain.TicketStatusClosed},
}

func isAllowedStatusUpdate(current, next domain.TicketStatus) bool {
	for _, candidate := range updateStatusTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Approve moves a NEW or PENDING ticket to OPEN, fixes its priority and
// department, and asks the assignment service for an owner. A degraded
// directory leaves ownership unset without failing the approval.
func (s *LifecycleService) Approve(ctx context.Context, staff *domain.StaffMember, ticketNo string, priority domain.TicketPriority, department string) (*domain.Ticket, error) {
	if staff == nil || !staff.Role.CanModerate() {
		return nil, apperrors.NewForbidden("coordinator role required")
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": priority})
	}
	dept, err := s.departments.GetByName(ctx, strings.TrimSpace(department))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewValidationError("unknown department", map[string]any{"department": department})
		}
		return nil, apperrors.MapError(err)
	}
	if !dept.IsActive {
		return nil, apperrors.NewValidationError("department inactive", map[string]any{"department": dept.Name})
	}

	ticket, err := s.getTicket(ctx, ticketNo)
	if err != nil {
		return nil, err
	}
	if ticket.Status != domain.TicketStatusNew && ticket.Status != domain.TicketStatusPending {
		return nil, s.invalidState(ticket, "only new or pending tickets can be approved")
	}

	// Owner selection runs before the write transaction so a slow or
	// failing directory never holds the ticket row.
	decision := s.assigner.PickOwner(ctx, &staff.ID)

	now := s.nowFn()
	prev := ticket.Status
	ticket.Status = domain.TicketStatusOpen
	ticket.Priority = priority
	ticket.Department = &dept.Name
	ticket.ApprovedByID = &staff.ID
	ticket.StatusChangedAt = now
	if decision != nil {
		ticket.OwnerID = &decision.CoordinatorID
	}

	if err := s.writeGuarded(ctx, ticket, prev); err != nil {
		return nil, err
	}

	ownerNote := "no coordinator available, ownership unset"
	if decision != nil {
		ownerNote = fmt.Sprintf("owner %s via %s tier", decision.CoordinatorID, decision.Tier)
	}
	s.appendSystemComment(ctx, ticket.ID,
		fmt.Sprintf("Ticket approved by %s. Priority %s, department %s. %s.", staff.Name, priority, dept.Name, ownerNote))
	s.recordStatusChange(ctx, domain.AuthorTypeStaff, &staff.ID, ticket.ID, prev, ticket.Status, "approved")

	s.publish(ctx, events.Event{
		Type:     events.EventTicketApproved,
		TicketNo: ticket.TicketNo,
		Actor:    staffActor(staff),
		Payload: events.TicketApprovedPayload{
			Priority:   priority,
			Department: dept.Name,
			OwnerID:    ticket.OwnerID,
		},
	})
	if decision != nil {
		s.publish(ctx, events.Event{
			Type:     events.EventTicketAssigned,
			TicketNo: ticket.TicketNo,
			Actor:    staffActor(staff),
			Payload: events.TicketAssignedPayload{
				OwnerID: ticket.OwnerID,
				Tier:    decision.Tier,
			},
		})
	}
	return ticket, nil
}

// Reject refuses a NEW ticket with a mandatory reason.
func (s *LifecycleService) Reject(ctx context.Context, staff *domain.StaffMember, ticketNo, reason string) (*domain.Ticket, error) {
	if staff == nil || !staff.Role.CanModerate() {
		return nil, apperrors.NewForbidden("coordinator role required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.NewValidationError("rejection reason required", nil)
	}

	ticket, err := s.getTicket(ctx, ticketNo)
	if err != nil {
		return nil, err
	}
	if ticket.Status != domain.TicketStatusNew {
		return nil, s.invalidState(ticket, "only new tickets can be rejected")
	}

	prev := ticket.Status
	ticket.Status = domain.TicketStatusRejected
	ticket.RejectReason = &reason
	ticket.StatusChangedAt = s.nowFn()

	if err := s.writeGuarded(ctx, ticket, prev); err != nil {
		return nil, err
	}

	s.appendSystemComment(ctx, ticket.ID, fmt.Sprintf("Ticket rejected by %s: %s", staff.Name, reason))
	s.recordStatusChange(ctx, domain.AuthorTypeStaff, &staff.ID, ticket.ID, prev, ticket.Status, reason)
	s.publish(ctx, events.Event{
		Type:     events.EventTicketRejected,
		TicketNo: ticket.TicketNo,
		Actor:    staffActor(staff),
		Payload:  events.TicketRejectedPayload{Reason: reason},
	})
	return ticket, nil
}

// Claim puts an OPEN, unclaimed ticket in progress under the claimant. Two
// racing claims resolve through the guarded write: exactly one wins, the
// other gets a conflict.
func (s *LifecycleService) Claim(ctx context.Context, staff *domain.StaffMember, ticketNo string) (*domain.Ticket, error) {
	if staff == nil || !staff.Role.CanModerate() {
		return nil, apperrors.NewForbidden("coordinator role required")
	}

	ticket, err := s.getTicket(ctx, ticketNo)
	if err != nil {
		return nil, err
	}
	if ticket.Status != domain.TicketStatusOpen || ticket.AgentID != nil {
		return nil, apperrors.NewConflict("ticket is not open for claiming", map[string]any{
			"ticket_no": ticket.TicketNo,
			"status":    ticket.Status,
		})
	}

	prev := ticket.Status
	ticket.Status = domain.TicketStatusInProgress
	ticket.AgentID = &staff.ID
	ticket.StatusChangedAt = s.nowFn()

	if err := s.writeGuarded(ctx, ticket, prev); err != nil {
		return nil, err
	}

	s.appendSystemComment(ctx, ticket.ID, fmt.Sprintf("Ticket claimed by %s.", staff.Name))
	s.recordStatusChange(ctx, domain.AuthorTypeStaff, &staff.ID, ticket.ID, prev, ticket.Status, "claimed")
	s.publish(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketNo: ticket.TicketNo,
		Actor:    staffActor(staff),
		Payload: events.TicketStatusChangedPayload{
			OldStatus: prev,
			NewStatus: ticket.Status,
			Comment:   "claimed",
		},
	})
	return ticket, nil
}

// UpdateStatus performs a staff-driven transition within the state machine.
func (s *LifecycleService) UpdateStatus(ctx context.Context, staff *domain.StaffMember, ticketNo string, newStatus domain.TicketStatus, comment string) (*domain.Ticket, error) {
	if staff == nil || !staff.Role.CanModerate() {
		return nil, apperrors.NewForbidden("coordinator role required")
	}
	return s.applyStatusUpdate(ctx, ticketNo, newStatus, comment, staffActor(staff))
}

// CloseAsRequester lets the ticket's requester close their own RESOLVED
// ticket, the only generic transition a requester may perform.
func (s *LifecycleService) CloseAsRequester(ctx context.Context, subject domain.SubjectType, requesterID, ticketNo string) (*domain.Ticket, error) {
	ticket, err := s.getTicket(ctx, ticketNo)
	if err != nil {
		return nil, err
	}
	if !s.isRequester(ticket, subject, requesterID) {
		return nil, apperrors.NewForbidden("only the requester may close this ticket")
	}
	if ticket.Status != domain.TicketStatusResolved {
		return nil, s.invalidState(ticket, "only resolved tickets can be closed by the requester")
	}
	return s.applyStatusUpdate(ctx, ticketNo, domain.TicketStatusClosed, "closed by requester", requesterActor(subject, requesterID))
}

func (s *LifecycleService) applyStatusUpdate(ctx context.Context, ticketNo string, newStatus domain.TicketStatus, comment string, actor events.Actor) (*domain.Ticket, error) {
	switch newStatus {
	case domain.TicketStatusOpen, domain.TicketStatusInProgress, domain.TicketStatusResolved,
		domain.TicketStatusClosed, domain.TicketStatusOnHold, domain.TicketStatusRejected:
	default:
		return nil, apperrors.NewValidationError("status not settable through update", map[string]any{"status": newStatus})
	}

	ticket, err := s.getTicket(ctx, ticketNo)
	if err != nil {
		return nil, err
	}
	if !isAllowedStatusUpdate(ticket.Status, newStatus) {
		return nil, s.invalidState(ticket, fmt.Sprintf("cannot move %s ticket to %s", ticket.Status, newStatus))
	}

	now := s.nowFn()
	prev := ticket.Status
	ticket.Status = newStatus
	ticket.StatusChangedAt = now
	switch newStatus {
	case domain.TicketStatusResolved:
		ticket.ResolvedAt = &now
	case domain.TicketStatusClosed:
		s.stampClosure(ticket, now)
	}

	if err := s.writeGuarded(ctx, ticket, prev); err != nil {
		return nil, err
	}

	body := fmt.Sprintf("Status changed from %s to %s.", prev, newStatus)
	if strings.TrimSpace(comment) != "" {
		body += " " + strings.TrimSpace(comment)
	}
	s.appendSystemComment(ctx, ticket.ID, body)
	s.recordStatusChange(ctx, actor.Type, actorID(actor), ticket.ID, prev, newStatus, comment)

	// OPEN/REJECTED/NEW have dedicated emitters elsewhere.
	if newStatus != domain.TicketStatusOpen && newStatus != domain.TicketStatusRejected && newStatus != domain.TicketStatusNew {
		s.publish(ctx, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketNo: ticket.TicketNo,
			Actor:    actor,
			Payload: events.TicketStatusChangedPayload{
				OldStatus: prev,
				NewStatus: newStatus,
				Comment:   comment,
			},
		})
	}
	return ticket, nil
}

// Withdraw lets the requester abandon a ticket that has not yet reached a
// resolved or terminal state.
func (s *LifecycleService) Withdraw(ctx context.Context, subject domain.SubjectType, requesterID, ticketNo, reason string) (*domain.Ticket, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.NewValidationError("withdrawal reason required", nil)
	}

	ticket, err := s.getTicket(ctx, ticketNo)
	if err != nil {
		return nil, err
	}
	if !s.isRequester(ticket, subject, requesterID) {
		return nil, apperrors.NewForbidden("only the requester may withdraw this ticket")
	}
	switch ticket.Status {
	case domain.TicketStatusClosed, domain.TicketStatusWithdrawn, domain.TicketStatusResolved, domain.TicketStatusRejected:
		return nil, s.invalidState(ticket, "ticket can no longer be withdrawn")
	}

	now := s.nowFn()
	prev := ticket.Status
	ticket.Status = domain.TicketStatusWithdrawn
	ticket.WithdrawReason = &reason
	ticket.StatusChangedAt = now
	ticket.TimeClosed = &now
	if ticket.ResolutionSecs == nil {
		secs := int64(now.Sub(ticket.SubmittedAt).Seconds())
		ticket.ResolutionSecs = &secs
	}

	if err := s.writeGuarded(ctx, ticket, prev); err != nil {
		return nil, err
	}

	actor := requesterActor(subject, requesterID)
	s.appendSystemComment(ctx, ticket.ID, fmt.Sprintf("Ticket withdrawn by requester: %s", reason))
	s.recordStatusChange(ctx, actor.Type, actorID(actor), ticket.ID, prev, ticket.Status, reason)
	s.publish(ctx, events.Event{
		Type:     events.EventTicketWithdrawn,
		TicketNo: ticket.TicketNo,
		Actor:    actor,
		Payload:  events.TicketWithdrawnPayload{Reason: reason},
	})
	return ticket, nil
}

// SubmitCSAT records the requester's satisfaction rating on a CLOSED
// ticket. Overwrites are allowed; the latest rating wins.
func (s *LifecycleService) SubmitCSAT(ctx context.Context, subject domain.SubjectType, requesterID, ticketNo string, rating int, feedback string) (*domain.Ticket, error) {
	if rating < 1 || rating > 5 {
		return nil, apperrors.NewValidationError("rating must be between 1 and 5", map[string]any{"rating": rating})
	}

	ticket, err := s.getTicket(ctx, ticketNo)
	if err != nil {
		return nil, err
	}
	if !s.isRequester(ticket, subject, requesterID) {
		return nil, apperrors.NewForbidden("only the requester may rate this ticket")
	}
	if ticket.Status != domain.TicketStatusClosed {
		return nil, s.invalidState(ticket, "only closed tickets can be rated")
	}

	ticket.CSATRating = &rating
	feedback = strings.TrimSpace(feedback)
	if feedback != "" {
		ticket.CSATFeedback = &feedback
	}

	if err := s.writeGuarded(ctx, ticket, domain.TicketStatusClosed); err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketRated,
		TicketNo: ticket.TicketNo,
		Actor:    requesterActor(subject, requesterID),
		Payload:  events.TicketRatedPayload{Rating: rating},
	})
	return ticket, nil
}

// AutoClose applies the sweeper's RESOLVED to CLOSED transition. Losing a
// race to a concurrent transition is a no-op, which keeps repeated sweeps
// idempotent. CSAT fields stay untouched.
func (s *LifecycleService) AutoClose(ctx context.Context, ticketNo string) (*domain.Ticket, error) {
	ticket, err := s.getTicket(ctx, ticketNo)
	if err != nil {
		return nil, err
	}
	if ticket.Status != domain.TicketStatusResolved {
		return ticket, nil
	}

	now := s.nowFn()
	prev := ticket.Status
	ticket.Status = domain.TicketStatusClosed
	ticket.StatusChangedAt = now
	s.stampClosure(ticket, now)

	if err := s.tickets.UpdateGuarded(ctx, ticket, prev); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return ticket, nil
		}
		return nil, apperrors.MapError(err)
	}

	s.appendSystemComment(ctx, ticket.ID,
		fmt.Sprintf("Ticket closed automatically after %s in resolved state.", domain.AutoCloseDwell))
	s.recordStatusChange(ctx, domain.AuthorTypeSystem, nil, ticket.ID, prev, ticket.Status, "auto-closed")
	s.publish(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketNo: ticket.TicketNo,
		Actor:    events.Actor{Type: domain.AuthorTypeSystem, Name: "auto-close"},
		Payload: events.TicketStatusChangedPayload{
			OldStatus: prev,
			NewStatus: ticket.Status,
			Comment:   "auto-closed",
		},
	})
	return ticket, nil
}

func (s *LifecycleService) stampClosure(ticket *domain.Ticket, now time.Time) {
	ticket.TimeClosed = &now
	ticket.DateCompleted = &now
	if ticket.ResolutionSecs == nil {
		secs := int64(now.Sub(ticket.SubmittedAt).Seconds())
		ticket.ResolutionSecs = &secs
	}
}

func (s *LifecycleService) getTicket(ctx context.Context, ticketNo string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByTicketNo(ctx, ticketNo)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_no": ticketNo})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *LifecycleService) writeGuarded(ctx context.Context, ticket *domain.Ticket, expected domain.TicketStatus) error {
	if err := s.tickets.UpdateGuarded(ctx, ticket, expected); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return apperrors.NewConflict("ticket was modified concurrently", map[string]any{"ticket_no": ticket.TicketNo})
		}
		return apperrors.MapError(err)
	}
	return nil
}

func (s *LifecycleService) invalidState(ticket *domain.Ticket, message string) error {
	return apperrors.NewInvalidState(message, map[string]any{
		"ticket_no": ticket.TicketNo,
		"status":    ticket.Status,
	})
}

func (s *LifecycleService) isRequester(ticket *domain.Ticket, subject domain.SubjectType, id string) bool {
	switch subject {
	case domain.SubjectTypeUser:
		return ticket.RequestedByUser(id)
	case domain.SubjectTypeStaff:
		return ticket.RequestedByStaff(id)
	}
	return false
}

func (s *LifecycleService) appendSystemComment(ctx context.Context, ticketID, body string) {
	if s.comments == nil {
		return
	}
	comment := &domain.TicketComment{
		TicketID:    ticketID,
		AuthorType:  domain.AuthorTypeSystem,
		CommentType: domain.CommentTypeSystemEvent,
		Body:        body,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		s.logger.Warn("audit comment append failed", zap.String("ticket_id", ticketID), zap.Error(err))
	}
}

func (s *LifecycleService) recordStatusChange(ctx context.Context, actorType domain.CommentAuthorType, actorID *string, ticketID string, oldStatus, newStatus domain.TicketStatus, comment string) {
	if s.history == nil {
		return
	}
	entry := &domain.TicketHistory{
		TicketID:      ticketID,
		ChangedByType: actorType,
		ChangedByID:   actorID,
		ChangeType:    domain.ChangeTypeStatus,
		OldValue: map[string]any{
			"status": oldStatus,
		},
		NewValue: map[string]any{
			"status":  newStatus,
			"comment": comment,
		},
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Warn("history append failed", zap.String("ticket_id", ticketID), zap.Error(err))
	}
}

func (s *LifecycleService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.nowFn()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func staffActor(staff *domain.StaffMember) events.Actor {
	return events.Actor{
		Type:    domain.AuthorTypeStaff,
		StaffID: &staff.ID,
		Name:    staff.Name,
	}
}

func requesterActor(subject domain.SubjectType, id string) events.Actor {
	if subject == domain.SubjectTypeStaff {
		idCopy := id
		return events.Actor{Type: domain.AuthorTypeStaff, StaffID: &idCopy}
	}
	idCopy := id
	return events.Actor{Type: domain.AuthorTypeUser, UserID: &idCopy}
}

func actorID(actor events.Actor) *string {
	if actor.StaffID != nil {
		return actor.StaffID
	}
	return actor.UserID
}
