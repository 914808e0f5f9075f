package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// StaffTicketsHandler manages coordinator-facing ticket endpoints.
type StaffTicketsHandler struct {
	tickets    *service.TicketService
	lifecycle  *service.LifecycleService
	assignment *service.AssignmentService
	history    repository.TicketHistoryRepository
}

// NewStaffTicketsHandler constructs handler.
func NewStaffTicketsHandler(tickets *service.TicketService, lifecycle *service.LifecycleService, assignment *service.AssignmentService, history repository.TicketHistoryRepository) *StaffTicketsHandler {
	return &StaffTicketsHandler{tickets: tickets, lifecycle: lifecycle, assignment: assignment, history: history}
}

// ListTickets GET /staff/tickets.
func (h *StaffTicketsHandler) ListTickets(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	filter := parseStaffTicketQuery(c)
	tickets, err := h.tickets.ListStaffTickets(c.Context(), staff, filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /staff/tickets/:ticket_no.
func (h *StaffTicketsHandler) GetTicket(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	ticket, comments, err := h.tickets.GetTicketForStaff(c.Context(), staff, c.Params("ticket_no"))
	if err != nil {
		return err
	}
	history, err := h.history.ListByTicket(c.Context(), ticket.ID, parseInt(c.Query("history_limit"), 100), 0)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket, comments, history)})
}

// Approve POST /staff/tickets/:ticket_no/approve.
func (h *StaffTicketsHandler) Approve(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ApproveTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.lifecycle.Approve(c.Context(), staff, c.Params("ticket_no"), req.Priority, req.Department)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// Reject POST /staff/tickets/:ticket_no/reject.
func (h *StaffTicketsHandler) Reject(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.RejectTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.lifecycle.Reject(c.Context(), staff, c.Params("ticket_no"), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// Claim POST /staff/tickets/:ticket_no/claim.
func (h *StaffTicketsHandler) Claim(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	ticket, err := h.lifecycle.Claim(c.Context(), staff, c.Params("ticket_no"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// UpdateStatus PATCH /staff/tickets/:ticket_no/status.
func (h *StaffTicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.lifecycle.UpdateStatus(c.Context(), staff, c.Params("ticket_no"), req.Status, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// Reassign PUT /staff/tickets/:ticket_no/owner.
func (h *StaffTicketsHandler) Reassign(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ReassignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.CoordinatorID) == "" {
		return apperrors.NewValidationError("coordinator_id required", nil)
	}

	ticket, err := h.assignment.Reassign(c.Context(), staff, c.Params("ticket_no"), req.CoordinatorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// AddComment POST /staff/tickets/:ticket_no/comments.
func (h *StaffTicketsHandler) AddComment(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	commentType := domain.CommentTypePublicReply
	if req.CommentType != nil {
		commentType = *req.CommentType
	}

	comment, err := h.tickets.AddComment(c.Context(), domain.SubjectTypeStaff, staff.ID, staff, c.Params("ticket_no"),
		commentType, req.Body, attachmentInputs(req.Attachments))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": commentResponse(comment)})
}

func staffPrincipal(c *fiber.Ctx) (*domain.StaffMember, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return nil, apperrors.NewUnauthorized("staff authentication required")
	}
	return principal.Staff, nil
}

func parseStaffTicketQuery(c *fiber.Ctx) service.TicketListFilter {
	filter := service.TicketListFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		for _, part := range strings.Split(priorityStr, ",") {
			filter.Priorities = append(filter.Priorities, domain.TicketPriority(strings.TrimSpace(part)))
		}
	}
	if dept := c.Query("department"); dept != "" {
		filter.Department = &dept
	}
	if owner := c.Query("owner_id"); owner != "" {
		filter.OwnerID = &owner
	}
	if term := c.Query("q"); term != "" {
		filter.SearchTerm = &term
	}
	if from := parseTime(c.Query("submitted_from")); from != nil {
		filter.SubmittedFrom = from
	}
	if to := parseTime(c.Query("submitted_to")); to != nil {
		filter.SubmittedTo = to
	}
	filter.Limit, filter.Offset = parsePagination(c)
	return filter
}
