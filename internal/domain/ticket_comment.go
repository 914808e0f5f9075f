package domain

import "time"

// CommentAuthorType indicates who authored a comment.
type CommentAuthorType string

const (
	AuthorTypeUser   CommentAuthorType = "USER"
	AuthorTypeStaff  CommentAuthorType = "STAFF"
	AuthorTypeSystem CommentAuthorType = "SYSTEM"
)

// TicketCommentType differentiates replies, internal notes, and the
// system-authored audit trail.
type TicketCommentType string

const (
	CommentTypePublicReply  TicketCommentType = "PUBLIC_REPLY"
	CommentTypeInternalNote TicketCommentType = "INTERNAL_NOTE"
	CommentTypeSystemEvent  TicketCommentType = "SYSTEM_EVENT"
)

// TicketComment captures communications and audit entries in a ticket
// thread. Lifecycle transitions append SYSTEM_EVENT comments.
type TicketComment struct {
	ID          string
	TicketID    string
	AuthorType  CommentAuthorType
	AuthorID    *string
	CommentType TicketCommentType
	Body        string
	Attachments []AttachmentReference
	CreatedAt   time.Time
}

// IsVisibleToRequester reports whether the requester may see the comment.
func (c *TicketComment) IsVisibleToRequester() bool {
	return c.CommentType != CommentTypeInternalNote
}

// AttachmentReference stores metadata for ticket comment attachments. File
// bodies live in external storage; only the key is recorded here.
type AttachmentReference struct {
	ID              string
	TicketCommentID string
	StorageKey      string
	FileName        string
	MimeType        string
	SizeBytes       int64
	CreatedAt       time.Time
}
