package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// ErrStatusChanged reports that a guarded status write lost the race: the
// ticket's status was no longer the expected one at write time.
var ErrStatusChanged = errors.New("ticket status changed concurrently")

// TicketFilter captures staff search parameters.
type TicketFilter struct {
	RequesterUserID  *string
	RequesterStaffID *string
	Department       *string
	OwnerID          *string
	Statuses         []domain.TicketStatus
	Priorities       []domain.TicketPriority
	SearchTerm       *string
	SubmittedFrom    *time.Time
	SubmittedTo      *time.Time
	Limit            int
	Offset           int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	// UpdateGuarded writes the ticket only while its stored status still
	// equals expected, making precondition check and status write atomic
	// with respect to concurrent writers on the same row.
	UpdateGuarded(ctx context.Context, ticket *domain.Ticket, expected domain.TicketStatus) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByTicketNo(ctx context.Context, ticketNo string) (*domain.Ticket, error)
	TicketNoExists(ctx context.Context, ticketNo string) (bool, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// ListActiveByOwners returns, in one query, every non-terminal ticket
	// owned by any of the given coordinators.
	ListActiveByOwners(ctx context.Context, ownerIDs []string) ([]domain.Ticket, error)
	// ListResolvedBefore returns tickets sitting in RESOLVED whose last
	// status change happened at or before cutoff.
	ListResolvedBefore(ctx context.Context, cutoff time.Time) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, ticket_no, requester_user_id, requester_staff_id, department,
               owner_id, agent_id, approved_by_id, subject, description, status, priority,
               reject_reason, withdraw_reason, csat_rating, csat_feedback,
               submitted_at, updated_at, status_changed_at, resolved_at,
               time_closed, date_completed, resolution_secs`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (ticket_no, requester_user_id, requester_staff_id, department,
            owner_id, agent_id, approved_by_id, subject, description, status, priority, status_changed_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NOW())
        RETURNING id, submitted_at, updated_at, status_changed_at`
	return r.pool.QueryRow(ctx, query,
		ticket.TicketNo,
		ticket.RequesterUserID,
		ticket.RequesterStaffID,
		ticket.Department,
		ticket.OwnerID,
		ticket.AgentID,
		ticket.ApprovedByID,
		ticket.Subject,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
	).Scan(&ticket.ID, &ticket.SubmittedAt, &ticket.UpdatedAt, &ticket.StatusChangedAt)
}

const ticketUpdateSet = `department=$1, owner_id=$2, agent_id=$3, approved_by_id=$4,
            status=$5, priority=$6, reject_reason=$7, withdraw_reason=$8,
            csat_rating=$9, csat_feedback=$10, status_changed_at=$11, resolved_at=$12,
            time_closed=$13, date_completed=$14, resolution_secs=$15, updated_at=NOW()`

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	query := fmt.Sprintf(`UPDATE tickets SET %s WHERE id=$16`, ticketUpdateSet)
	cmd, err := r.pool.Exec(ctx, query, r.updateArgs(ticket)...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) UpdateGuarded(ctx context.Context, ticket *domain.Ticket, expected domain.TicketStatus) error {
	query := fmt.Sprintf(`UPDATE tickets SET %s WHERE id=$16 AND status=$17`, ticketUpdateSet)
	args := append(r.updateArgs(ticket), expected)
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		// Distinguish a missing row from a lost race.
		if _, getErr := r.GetByID(ctx, ticket.ID); getErr != nil {
			return getErr
		}
		return ErrStatusChanged
	}
	return nil
}

func (r *ticketRepository) updateArgs(ticket *domain.Ticket) []any {
	return []any{
		ticket.Department,
		ticket.OwnerID,
		ticket.AgentID,
		ticket.ApprovedByID,
		ticket.Status,
		ticket.Priority,
		ticket.RejectReason,
		ticket.WithdrawReason,
		ticket.CSATRating,
		ticket.CSATFeedback,
		ticket.StatusChangedAt,
		ticket.ResolvedAt,
		ticket.TimeClosed,
		ticket.DateCompleted,
		ticket.ResolutionSecs,
		ticket.ID,
	}
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByTicketNo(ctx context.Context, ticketNo string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE ticket_no=$1`, ticketColumns)
	return r.fetchSingle(ctx, query, ticketNo)
}

func (r *ticketRepository) TicketNoExists(ctx context.Context, ticketNo string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM tickets WHERE ticket_no=$1)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, ticketNo).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, arg).Scan(ticketScanDest(&ticket)...); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := fmt.Sprintf(`SELECT %s FROM tickets`, ticketColumns)
	clauses := []string{"1=1"}
	args := []any{}

	if filter.RequesterUserID != nil {
		args = append(args, *filter.RequesterUserID)
		clauses = append(clauses, fmt.Sprintf("requester_user_id=$%d", len(args)))
	}
	if filter.RequesterStaffID != nil {
		args = append(args, *filter.RequesterStaffID)
		clauses = append(clauses, fmt.Sprintf("requester_staff_id=$%d", len(args)))
	}
	if filter.Department != nil {
		args = append(args, *filter.Department)
		clauses = append(clauses, fmt.Sprintf("department=$%d", len(args)))
	}
	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		clauses = append(clauses, fmt.Sprintf("owner_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.SubmittedFrom != nil {
		args = append(args, *filter.SubmittedFrom)
		clauses = append(clauses, fmt.Sprintf("submitted_at >= $%d", len(args)))
	}
	if filter.SubmittedTo != nil {
		args = append(args, *filter.SubmittedTo)
		clauses = append(clauses, fmt.Sprintf("submitted_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(subject) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListActiveByOwners(ctx context.Context, ownerIDs []string) ([]domain.Ticket, error) {
	if len(ownerIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM tickets
             WHERE owner_id = ANY($1) AND NOT (status = ANY($2))`, ticketColumns)
	rows, err := r.pool.Query(ctx, query, ownerIDs, terminalStatusStrings())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListResolvedBefore(ctx context.Context, cutoff time.Time) ([]domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets
             WHERE status=$1 AND status_changed_at <= $2
             ORDER BY status_changed_at ASC`, ticketColumns)
	rows, err := r.pool.Query(ctx, query, domain.TicketStatusResolved, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func terminalStatusStrings() []string {
	statuses := domain.TerminalStatuses()
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func ticketScanDest(ticket *domain.Ticket) []any {
	return []any{
		&ticket.ID,
		&ticket.TicketNo,
		&ticket.RequesterUserID,
		&ticket.RequesterStaffID,
		&ticket.Department,
		&ticket.OwnerID,
		&ticket.AgentID,
		&ticket.ApprovedByID,
		&ticket.Subject,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.RejectReason,
		&ticket.WithdrawReason,
		&ticket.CSATRating,
		&ticket.CSATFeedback,
		&ticket.SubmittedAt,
		&ticket.UpdatedAt,
		&ticket.StatusChangedAt,
		&ticket.ResolvedAt,
		&ticket.TimeClosed,
		&ticket.DateCompleted,
		&ticket.ResolutionSecs,
	}
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(ticketScanDest(&ticket)...); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
