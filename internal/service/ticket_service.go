package service

import (
	"context"
	"errors"
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

// TicketService covers ticket submission, listing, and the comment thread.
// Lifecycle transitions live in LifecycleService.
type TicketService struct {
	tickets     repository.TicketRepository
	comments    repository.TicketCommentRepository
	attachments repository.AttachmentRepository
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	intn        domain.IntnFunc
	nowFn       func() time.Time
}

// TicketDependencies bundles repositories for the ticket service.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	CommentRepo    repository.TicketCommentRepository
	AttachmentRepo repository.AttachmentRepository
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	Intn           domain.IntnFunc
	Now            func() time.Time
}

// TicketSubmitInput describes a submission payload.
type TicketSubmitInput struct {
	Subject     string
	Description string
}

// TicketListFilter describes staff listing filters.
type TicketListFilter struct {
	Department    *string
	OwnerID       *string
	Statuses      []domain.TicketStatus
	Priorities    []domain.TicketPriority
	SearchTerm    *string
	SubmittedFrom *time.Time
	SubmittedTo   *time.Time
	Limit         int
	Offset        int
}

// CommentAttachmentInput defines attachment metadata.
type CommentAttachmentInput struct {
	StorageKey string
	FileName   string
	MimeType   string
	SizeBytes  int64
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	nowFn := deps.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:     deps.TicketRepo,
		comments:    deps.CommentRepo,
		attachments: deps.AttachmentRepo,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
		intn:        deps.Intn,
		nowFn:       nowFn,
	}
}

// Submit creates a NEW ticket for the given requester (external user or
// internal employee).
func (s *TicketService) Submit(ctx context.Context, subject domain.SubjectType, requesterID string, input TicketSubmitInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Subject)
	if title == "" {
		return nil, apperrors.NewValidationError("subject required", nil)
	}

	ticketNo, err := domain.NewTicketNo(s.nowFn(), s.intn, func(candidate string) (bool, error) {
		return s.tickets.TicketNoExists(ctx, candidate)
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	ticket := &domain.Ticket{
		TicketNo:    ticketNo,
		Subject:     title,
		Description: strings.TrimSpace(input.Description),
		Status:      domain.TicketStatusNew,
	}
	switch subject {
	case domain.SubjectTypeUser:
		ticket.RequesterUserID = &requesterID
	case domain.SubjectTypeStaff:
		ticket.RequesterStaffID = &requesterID
	default:
		return nil, apperrors.NewValidationError("unknown requester subject", nil)
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketSubmitted,
		TicketNo: ticket.TicketNo,
		Actor:    requesterActor(subject, requesterID),
		Payload:  events.TicketSubmittedPayload{Subject: ticket.Subject},
	})
	return ticket, nil
}

// ListRequesterTickets returns paginated tickets for a requester.
func (s *TicketService) ListRequesterTickets(ctx context.Context, subject domain.SubjectType, requesterID string, limit, offset int) ([]domain.Ticket, error) {
	filter := repository.TicketFilter{Limit: limit, Offset: offset}
	switch subject {
	case domain.SubjectTypeUser:
		filter.RequesterUserID = &requesterID
	case domain.SubjectTypeStaff:
		filter.RequesterStaffID = &requesterID
	default:
		return nil, apperrors.NewValidationError("unknown requester subject", nil)
	}
	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// GetTicketForRequester fetches a ticket with requester-visible comments,
// enforcing ownership.
func (s *TicketService) GetTicketForRequester(ctx context.Context, subject domain.SubjectType, requesterID, ticketNo string) (*domain.Ticket, []domain.TicketComment, error) {
	ticket, err := s.getByNo(ctx, ticketNo)
	if err != nil {
		return nil, nil, err
	}
	if !requesterOwnsTicket(ticket, subject, requesterID) {
		return nil, nil, apperrors.NewForbidden("access denied")
	}
	all, err := s.commentsWithAttachments(ctx, ticket.ID)
	if err != nil {
		return nil, nil, err
	}
	visible := make([]domain.TicketComment, 0, len(all))
	for _, comment := range all {
		if comment.IsVisibleToRequester() {
			visible = append(visible, comment)
		}
	}
	return ticket, visible, nil
}

// ListStaffTickets returns tickets matching the staff filter.
func (s *TicketService) ListStaffTickets(ctx context.Context, staff *domain.StaffMember, filter TicketListFilter) ([]domain.Ticket, error) {
	if staff == nil || !staff.Role.CanModerate() {
		return nil, apperrors.NewForbidden("coordinator role required")
	}
	repoFilter := repository.TicketFilter{
		Department:    filter.Department,
		OwnerID:       filter.OwnerID,
		Statuses:      filter.Statuses,
		Priorities:    filter.Priorities,
		SearchTerm:    filter.SearchTerm,
		SubmittedFrom: filter.SubmittedFrom,
		SubmittedTo:   filter.SubmittedTo,
		Limit:         filter.Limit,
		Offset:        filter.Offset,
	}
	tickets, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// GetTicketForStaff fetches a ticket with the full comment thread.
func (s *TicketService) GetTicketForStaff(ctx context.Context, staff *domain.StaffMember, ticketNo string) (*domain.Ticket, []domain.TicketComment, error) {
	if staff == nil || !staff.Role.CanModerate() {
		return nil, nil, apperrors.NewForbidden("coordinator role required")
	}
	ticket, err := s.getByNo(ctx, ticketNo)
	if err != nil {
		return nil, nil, err
	}
	comments, err := s.commentsWithAttachments(ctx, ticket.ID)
	if err != nil {
		return nil, nil, err
	}
	return ticket, comments, nil
}

// AddComment appends a reply or internal note to a ticket thread.
func (s *TicketService) AddComment(ctx context.Context, subject domain.SubjectType, actorID string, staff *domain.StaffMember, ticketNo string, commentType domain.TicketCommentType, body string, attachments []CommentAttachmentInput) (*domain.TicketComment, error) {
	if strings.TrimSpace(body) == "" {
		return nil, apperrors.NewValidationError("comment body required", nil)
	}

	ticket, err := s.getByNo(ctx, ticketNo)
	if err != nil {
		return nil, err
	}

	comment := &domain.TicketComment{
		TicketID:    ticket.ID,
		CommentType: commentType,
		Body:        strings.TrimSpace(body),
	}
	switch subject {
	case domain.SubjectTypeUser:
		if !ticket.RequestedByUser(actorID) {
			return nil, apperrors.NewForbidden("access denied")
		}
		if commentType != domain.CommentTypePublicReply {
			return nil, apperrors.NewValidationError("requesters can only post public replies", nil)
		}
		comment.AuthorType = domain.AuthorTypeUser
		id := actorID
		comment.AuthorID = &id
	case domain.SubjectTypeStaff:
		if staff != nil && staff.Role.CanModerate() {
			if commentType != domain.CommentTypePublicReply && commentType != domain.CommentTypeInternalNote {
				return nil, apperrors.NewValidationError("invalid comment type for staff", nil)
			}
		} else {
			// Employees comment only on their own tickets.
			if !ticket.RequestedByStaff(actorID) {
				return nil, apperrors.NewForbidden("access denied")
			}
			if commentType != domain.CommentTypePublicReply {
				return nil, apperrors.NewValidationError("requesters can only post public replies", nil)
			}
		}
		comment.AuthorType = domain.AuthorTypeStaff
		id := actorID
		comment.AuthorID = &id
	default:
		return nil, apperrors.NewValidationError("unknown actor", nil)
	}

	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}
	for _, att := range attachments {
		record := &domain.AttachmentReference{
			TicketCommentID: comment.ID,
			StorageKey:      att.StorageKey,
			FileName:        att.FileName,
			MimeType:        att.MimeType,
			SizeBytes:       att.SizeBytes,
		}
		if err := s.attachments.Create(ctx, record); err != nil {
			return nil, apperrors.MapError(err)
		}
		comment.Attachments = append(comment.Attachments, *record)
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketCommentAdded,
		TicketNo: ticket.TicketNo,
		Actor:    requesterActor(subject, actorID),
		Payload: events.TicketCommentAddedPayload{
			CommentID:   comment.ID,
			CommentType: comment.CommentType,
			AuthorType:  comment.AuthorType,
			AuthorID:    comment.AuthorID,
			BodyPreview: stringPreview(comment.Body, 120),
		},
	})
	return comment, nil
}

func (s *TicketService) getByNo(ctx context.Context, ticketNo string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByTicketNo(ctx, ticketNo)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_no": ticketNo})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *TicketService) commentsWithAttachments(ctx context.Context, ticketID string) ([]domain.TicketComment, error) {
	comments, err := s.comments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if s.attachments == nil {
		return comments, nil
	}
	for i := range comments {
		attachments, err := s.attachments.ListByComment(ctx, comments[i].ID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		comments[i].Attachments = attachments
	}
	return comments, nil
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
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

func requesterOwnsTicket(ticket *domain.Ticket, subject domain.SubjectType, id string) bool {
	switch subject {
	case domain.SubjectTypeUser:
		return ticket.RequestedByUser(id)
	case domain.SubjectTypeStaff:
		return ticket.RequestedByStaff(id)
	}
	return false
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
