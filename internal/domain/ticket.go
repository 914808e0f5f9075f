package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew        TicketStatus = "NEW"
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusOnHold     TicketStatus = "ON_HOLD"
	TicketStatusPending    TicketStatus = "PENDING"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusRejected   TicketStatus = "REJECTED"
	TicketStatusWithdrawn  TicketStatus = "WITHDRAWN"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// TicketPriority enumerates urgency, set at approval time.
type TicketPriority string

const (
	TicketPriorityCritical TicketPriority = "CRITICAL"
	TicketPriorityHigh     TicketPriority = "HIGH"
	TicketPriorityMedium   TicketPriority = "MEDIUM"
	TicketPriorityLow      TicketPriority = "LOW"
)

// AutoCloseDwell is how long a ticket may sit in RESOLVED before the
// sweeper closes it.
const AutoCloseDwell = 72 * time.Hour

// Ticket is the aggregate for support requests. Requester identity is
// exactly one of RequesterUserID (external account) or RequesterStaffID
// (internal employee).
type Ticket struct {
	ID               string
	TicketNo         string
	RequesterUserID  *string
	RequesterStaffID *string
	Department       *string
	OwnerID          *string
	AgentID          *string
	ApprovedByID     *string
	Subject          string
	Description      string
	Status           TicketStatus
	Priority         TicketPriority
	RejectReason     *string
	WithdrawReason   *string
	CSATRating       *int
	CSATFeedback     *string
	SubmittedAt      time.Time
	UpdatedAt        time.Time
	StatusChangedAt  time.Time
	ResolvedAt       *time.Time
	TimeClosed       *time.Time
	DateCompleted    *time.Time
	ResolutionSecs   *int64
}

// IsTerminal reports whether the status accepts no further transitions.
func (s TicketStatus) IsTerminal() bool {
	switch s {
	case TicketStatusClosed, TicketStatusWithdrawn, TicketStatusRejected:
		return true
	}
	return false
}

// IsActive reports whether a ticket in this status counts toward a
// coordinator's workload.
func (s TicketStatus) IsActive() bool {
	return !s.IsTerminal()
}

// Valid reports whether the value belongs to the closed status set.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusNew, TicketStatusOpen, TicketStatusInProgress,
		TicketStatusOnHold, TicketStatusPending, TicketStatusResolved,
		TicketStatusRejected, TicketStatusWithdrawn, TicketStatusClosed:
		return true
	}
	return false
}

// Valid reports whether the value belongs to the closed priority set.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityCritical, TicketPriorityHigh, TicketPriorityMedium, TicketPriorityLow:
		return true
	}
	return false
}

// TerminalStatuses lists the statuses excluded from active workload.
func TerminalStatuses() []TicketStatus {
	return []TicketStatus{TicketStatusClosed, TicketStatusWithdrawn, TicketStatusRejected}
}

// RequestedByUser reports whether the given external user owns the request.
func (t *Ticket) RequestedByUser(userID string) bool {
	return t.RequesterUserID != nil && *t.RequesterUserID == userID
}

// RequestedByStaff reports whether the given employee owns the request.
func (t *Ticket) RequestedByStaff(staffID string) bool {
	return t.RequesterStaffID != nil && *t.RequesterStaffID == staffID
}

// ClosingDeadline returns when the auto-close sweeper would pick the ticket
// up, or nil when the ticket is not RESOLVED.
func (t *Ticket) ClosingDeadline() *time.Time {
	if t.Status != TicketStatusResolved {
		return nil
	}
	deadline := t.StatusChangedAt.Add(AutoCloseDwell)
	return &deadline
}
