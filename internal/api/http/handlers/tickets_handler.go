package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/presence"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// TicketsHandler manages requester-facing ticket endpoints. Requesters are
// external users or internal employees submitting on their own behalf.
type TicketsHandler struct {
	tickets   *service.TicketService
	lifecycle *service.LifecycleService
	typing    *presence.TypingTracker
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, lifecycle *service.LifecycleService, typing *presence.TypingTracker) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, lifecycle: lifecycle, typing: typing}
}

// SubmitTicket POST /tickets.
func (h *TicketsHandler) SubmitTicket(c *fiber.Ctx) error {
	subject, requesterID, err := requesterIdentity(c)
	if err != nil {
		return err
	}
	var req dto.SubmitTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Subject) == "" || strings.TrimSpace(req.Description) == "" {
		return apperrors.NewValidationError("subject and description required", nil)
	}

	ticket, err := h.tickets.Submit(c.Context(), subject, requesterID, service.TicketSubmitInput{
		Subject:     req.Subject,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	subject, requesterID, err := requesterIdentity(c)
	if err != nil {
		return err
	}
	limit, offset := parsePagination(c)
	tickets, err := h.tickets.ListRequesterTickets(c.Context(), subject, requesterID, limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:ticket_no.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	subject, requesterID, err := requesterIdentity(c)
	if err != nil {
		return err
	}
	ticket, comments, err := h.tickets.GetTicketForRequester(c.Context(), subject, requesterID, c.Params("ticket_no"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket, comments, nil)})
}

// AddComment POST /tickets/:ticket_no/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	subject, requesterID, err := requesterIdentity(c)
	if err != nil {
		return err
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	comment, err := h.tickets.AddComment(c.Context(), subject, requesterID, nil, c.Params("ticket_no"),
		domain.CommentTypePublicReply, req.Body, attachmentInputs(req.Attachments))
	if err != nil {
		return err
	}
	h.clearTyping(c, requesterID)
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": commentResponse(comment)})
}

// WithdrawTicket POST /tickets/:ticket_no/withdraw.
func (h *TicketsHandler) WithdrawTicket(c *fiber.Ctx) error {
	subject, requesterID, err := requesterIdentity(c)
	if err != nil {
		return err
	}
	var req dto.WithdrawTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.lifecycle.Withdraw(c.Context(), subject, requesterID, c.Params("ticket_no"), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// CloseTicket POST /tickets/:ticket_no/close.
func (h *TicketsHandler) CloseTicket(c *fiber.Ctx) error {
	subject, requesterID, err := requesterIdentity(c)
	if err != nil {
		return err
	}
	ticket, err := h.lifecycle.CloseAsRequester(c.Context(), subject, requesterID, c.Params("ticket_no"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// RateTicket POST /tickets/:ticket_no/csat.
func (h *TicketsHandler) RateTicket(c *fiber.Ctx) error {
	subject, requesterID, err := requesterIdentity(c)
	if err != nil {
		return err
	}
	var req dto.CSATRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.lifecycle.SubmitCSAT(c.Context(), subject, requesterID, c.Params("ticket_no"), req.Rating, req.Feedback)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket, nil, nil)})
}

// SignalTyping POST /tickets/:ticket_no/typing.
func (h *TicketsHandler) SignalTyping(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.typing.Signal(c.Context(), c.Params("ticket_no"), principal.SubjectID(), principal.DisplayName()); err != nil {
		return apperrors.NewDependencyUnavailable("presence store unavailable")
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListTyping GET /tickets/:ticket_no/typing.
func (h *TicketsHandler) ListTyping(c *fiber.Ctx) error {
	typists, err := h.typing.ActiveTypists(c.Context(), c.Params("ticket_no"))
	if err != nil {
		return apperrors.NewDependencyUnavailable("presence store unavailable")
	}
	if typists == nil {
		typists = []presence.Typist{}
	}
	return c.JSON(fiber.Map{"data": typists})
}

func (h *TicketsHandler) clearTyping(c *fiber.Ctx, actorID string) {
	_ = h.typing.Clear(c.Context(), c.Params("ticket_no"), actorID)
}

func requesterIdentity(c *fiber.Ctx) (domain.SubjectType, string, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return "", "", apperrors.NewUnauthorized("authentication required")
	}
	id := principal.SubjectID()
	if id == "" {
		return "", "", apperrors.NewUnauthorized("unknown subject")
	}
	return principal.SubjectType, id, nil
}

func attachmentInputs(reqs []dto.AttachmentRequest) []service.CommentAttachmentInput {
	inputs := make([]service.CommentAttachmentInput, 0, len(reqs))
	for _, att := range reqs {
		inputs = append(inputs, service.CommentAttachmentInput{
			StorageKey: att.StorageKey,
			FileName:   att.FileName,
			MimeType:   att.MimeType,
			SizeBytes:  att.SizeBytes,
		})
	}
	return inputs
}

func parsePagination(c *fiber.Ctx) (limit, offset int) {
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	return pageSize, (page - 1) * pageSize
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		TicketNo:    ticket.TicketNo,
		Subject:     ticket.Subject,
		Status:      ticket.Status,
		Priority:    ticket.Priority,
		Department:  ticket.Department,
		OwnerID:     ticket.OwnerID,
		AgentID:     ticket.AgentID,
		SubmittedAt: ticket.SubmittedAt,
		UpdatedAt:   ticket.UpdatedAt,
	}
}

func ticketDetail(ticket *domain.Ticket, comments []domain.TicketComment, history []domain.TicketHistory) dto.TicketDetailResponse {
	commentItems := make([]dto.TicketCommentResponse, 0, len(comments))
	for i := range comments {
		commentItems = append(commentItems, commentResponse(&comments[i]))
	}
	return dto.TicketDetailResponse{
		TicketNo:       ticket.TicketNo,
		Subject:        ticket.Subject,
		Description:    ticket.Description,
		Status:         ticket.Status,
		Priority:       ticket.Priority,
		Department:     ticket.Department,
		OwnerID:        ticket.OwnerID,
		AgentID:        ticket.AgentID,
		ApprovedByID:   ticket.ApprovedByID,
		RejectReason:   ticket.RejectReason,
		WithdrawReason: ticket.WithdrawReason,
		CSATRating:     ticket.CSATRating,
		CSATFeedback:   ticket.CSATFeedback,
		SubmittedAt:    ticket.SubmittedAt,
		UpdatedAt:      ticket.UpdatedAt,
		ResolvedAt:     ticket.ResolvedAt,
		TimeClosed:     ticket.TimeClosed,
		ResolutionSecs: ticket.ResolutionSecs,
		Comments:       commentItems,
		History:        historyResponses(history),
	}
}

func commentResponse(comment *domain.TicketComment) dto.TicketCommentResponse {
	attachments := make([]dto.AttachmentResponse, 0, len(comment.Attachments))
	for _, att := range comment.Attachments {
		attachments = append(attachments, dto.AttachmentResponse{
			ID:        att.ID,
			FileName:  att.FileName,
			MimeType:  att.MimeType,
			SizeBytes: att.SizeBytes,
		})
	}
	return dto.TicketCommentResponse{
		ID:          comment.ID,
		CommentType: comment.CommentType,
		AuthorType:  comment.AuthorType,
		AuthorID:    comment.AuthorID,
		Body:        comment.Body,
		Attachments: attachments,
		CreatedAt:   comment.CreatedAt,
	}
}

func historyResponses(entries []domain.TicketHistory) []dto.TicketHistoryResponse {
	if len(entries) == 0 {
		return nil
	}
	resp := make([]dto.TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.TicketHistoryResponse{
			ID:            entry.ID,
			ChangeType:    entry.ChangeType,
			ChangedByType: entry.ChangedByType,
			ChangedByID:   entry.ChangedByID,
			OldValue:      entry.OldValue,
			NewValue:      entry.NewValue,
			CreatedAt:     entry.CreatedAt,
		})
	}
	return resp
}
