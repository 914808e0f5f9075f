package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// SubmitTicketRequest payload.
type SubmitTicketRequest struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
}

// ApproveTicketRequest payload for moving NEW tickets into the queue.
type ApproveTicketRequest struct {
	Priority   domain.TicketPriority `json:"priority"`
	Department string                `json:"department"`
}

// RejectTicketRequest payload.
type RejectTicketRequest struct {
	Reason string `json:"reason"`
}

// UpdateStatusRequest payload for staff-driven transitions.
type UpdateStatusRequest struct {
	Status  domain.TicketStatus `json:"status"`
	Comment string              `json:"comment"`
}

// WithdrawTicketRequest payload.
type WithdrawTicketRequest struct {
	Reason string `json:"reason"`
}

// CSATRequest payload for rating a closed ticket.
type CSATRequest struct {
	Rating   int    `json:"rating"`
	Feedback string `json:"feedback"`
}

// ReassignRequest payload for moving ownership to another coordinator.
type ReassignRequest struct {
	CoordinatorID string `json:"coordinator_id"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Body        string                    `json:"body"`
	CommentType *domain.TicketCommentType `json:"comment_type,omitempty"`
	Attachments []AttachmentRequest       `json:"attachments"`
}

// AttachmentRequest describes attachment input.
type AttachmentRequest struct {
	StorageKey string `json:"storage_key"`
	FileName   string `json:"file_name"`
	MimeType   string `json:"mime_type"`
	SizeBytes  int64  `json:"size_bytes"`
}

// TicketSummary response.
type TicketSummary struct {
	TicketNo    string                `json:"ticket_no"`
	Subject     string                `json:"subject"`
	Status      domain.TicketStatus   `json:"status"`
	Priority    domain.TicketPriority `json:"priority,omitempty"`
	Department  *string               `json:"department"`
	OwnerID     *string               `json:"owner_id"`
	AgentID     *string               `json:"agent_id"`
	SubmittedAt time.Time             `json:"submitted_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketNo       string                  `json:"ticket_no"`
	Subject        string                  `json:"subject"`
	Description    string                  `json:"description"`
	Status         domain.TicketStatus     `json:"status"`
	Priority       domain.TicketPriority   `json:"priority,omitempty"`
	Department     *string                 `json:"department"`
	OwnerID        *string                 `json:"owner_id"`
	AgentID        *string                 `json:"agent_id"`
	ApprovedByID   *string                 `json:"approved_by_id"`
	RejectReason   *string                 `json:"reject_reason,omitempty"`
	WithdrawReason *string                 `json:"withdraw_reason,omitempty"`
	CSATRating     *int                    `json:"csat_rating,omitempty"`
	CSATFeedback   *string                 `json:"csat_feedback,omitempty"`
	SubmittedAt    time.Time               `json:"submitted_at"`
	UpdatedAt      time.Time               `json:"updated_at"`
	ResolvedAt     *time.Time              `json:"resolved_at,omitempty"`
	TimeClosed     *time.Time              `json:"time_closed,omitempty"`
	ResolutionSecs *int64                  `json:"resolution_secs,omitempty"`
	Comments       []TicketCommentResponse `json:"comments"`
	History        []TicketHistoryResponse `json:"history,omitempty"`
}

// TicketCommentResponse represents a thread entry.
type TicketCommentResponse struct {
	ID          string                   `json:"id"`
	CommentType domain.TicketCommentType `json:"comment_type"`
	AuthorType  domain.CommentAuthorType `json:"author_type"`
	AuthorID    *string                  `json:"author_id"`
	Body        string                   `json:"body"`
	Attachments []AttachmentResponse     `json:"attachments"`
	CreatedAt   time.Time                `json:"created_at"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID        string `json:"id"`
	FileName  string `json:"file_name"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
}

// TicketHistoryResponse represents an audit trail entry.
type TicketHistoryResponse struct {
	ID            string                   `json:"id"`
	ChangeType    domain.TicketChangeType  `json:"change_type"`
	ChangedByType domain.CommentAuthorType `json:"changed_by_type"`
	ChangedByID   *string                  `json:"changed_by_id"`
	OldValue      map[string]any           `json:"old_value"`
	NewValue      map[string]any           `json:"new_value"`
	CreatedAt     time.Time                `json:"created_at"`
}

// DepartmentResponse lists a recognized ticket category.
type DepartmentResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
