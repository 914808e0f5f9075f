package events

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketSubmitted     EventType = "ticket_submitted"
	EventTicketApproved      EventType = "ticket_approved"
	EventTicketRejected      EventType = "ticket_rejected"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketWithdrawn     EventType = "ticket_withdrawn"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketCommentAdded  EventType = "ticket_comment_added"
	EventTicketRated         EventType = "ticket_rated"
)

// Actor encapsulates actor metadata for an event. A nil/zero actor means
// the system itself (e.g. the auto-close sweeper).
type Actor struct {
	Type    domain.CommentAuthorType `json:"type"`
	UserID  *string                  `json:"user_id,omitempty"`
	StaffID *string                  `json:"staff_id,omitempty"`
	Name    string                   `json:"name,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketNo  string      `json:"ticket_no"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketSubmittedPayload payload.
type TicketSubmittedPayload struct {
	Subject string `json:"subject"`
}

// TicketApprovedPayload payload.
type TicketApprovedPayload struct {
	Priority   domain.TicketPriority `json:"priority"`
	Department string                `json:"department"`
	OwnerID    *string               `json:"owner_id,omitempty"`
}

// TicketRejectedPayload payload.
type TicketRejectedPayload struct {
	Reason string `json:"reason"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Comment   string              `json:"comment,omitempty"`
}

// TicketWithdrawnPayload payload.
type TicketWithdrawnPayload struct {
	Reason string `json:"reason"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	OwnerID *string               `json:"owner_id,omitempty"`
	Tier    domain.AssignmentTier `json:"tier,omitempty"`
}

// TicketCommentAddedPayload payload.
type TicketCommentAddedPayload struct {
	CommentID   string                   `json:"comment_id"`
	CommentType domain.TicketCommentType `json:"comment_type"`
	AuthorType  domain.CommentAuthorType `json:"author_type"`
	AuthorID    *string                  `json:"author_id,omitempty"`
	BodyPreview string                   `json:"body_preview"`
}

// TicketRatedPayload payload.
type TicketRatedPayload struct {
	Rating int `json:"rating"`
}
