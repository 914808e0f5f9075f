package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

type sweepTickets struct {
	mu      sync.Mutex
	seq     int
	byID    map[string]*domain.Ticket
	listErr error
	// getErr fails GetByTicketNo for the given ticket number, simulating a
	// transient read failure on a single candidate.
	getErr map[string]error
}

func newSweepTickets() *sweepTickets {
	return &sweepTickets{byID: map[string]*domain.Ticket{}, getErr: map[string]error{}}
}

func (m *sweepTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	ticket.ID = fmt.Sprintf("t-%d", m.seq)
	if ticket.SubmittedAt.IsZero() {
		ticket.SubmittedAt = time.Now()
	}
	if ticket.StatusChangedAt.IsZero() {
		ticket.StatusChangedAt = time.Now()
	}
	stored := *ticket
	m.byID[ticket.ID] = &stored
	return nil
}

func (m *sweepTickets) Update(_ context.Context, ticket *domain.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	stored := *ticket
	m.byID[ticket.ID] = &stored
	return nil
}

func (m *sweepTickets) UpdateGuarded(_ context.Context, ticket *domain.Ticket, expected domain.TicketStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.byID[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if current.Status != expected {
		return repository.ErrStatusChanged
	}
	stored := *ticket
	m.byID[ticket.ID] = &stored
	return nil
}

func (m *sweepTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *stored
	return &copied, nil
}

func (m *sweepTickets) GetByTicketNo(_ context.Context, ticketNo string) (*domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.getErr[ticketNo]; ok {
		return nil, err
	}
	for _, stored := range m.byID {
		if stored.TicketNo == ticketNo {
			copied := *stored
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *sweepTickets) TicketNoExists(_ context.Context, ticketNo string) (bool, error) {
	_, err := m.GetByTicketNo(context.Background(), ticketNo)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (m *sweepTickets) ListWithFilter(_ context.Context, _ repository.TicketFilter) ([]domain.Ticket, error) {
	return nil, nil
}

func (m *sweepTickets) ListActiveByOwners(_ context.Context, _ []string) ([]domain.Ticket, error) {
	return nil, nil
}

func (m *sweepTickets) ListResolvedBefore(_ context.Context, cutoff time.Time) ([]domain.Ticket, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Ticket
	for _, stored := range m.byID {
		if stored.Status == domain.TicketStatusResolved && !stored.StatusChangedAt.After(cutoff) {
			out = append(out, *stored)
		}
	}
	return out, nil
}

type sweepComments struct {
	mu       sync.Mutex
	seq      int
	byTicket map[string][]domain.TicketComment
}

func newSweepComments() *sweepComments {
	return &sweepComments{byTicket: map[string][]domain.TicketComment{}}
}

func (m *sweepComments) Create(_ context.Context, comment *domain.TicketComment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	comment.ID = fmt.Sprintf("c-%d", m.seq)
	m.byTicket[comment.TicketID] = append(m.byTicket[comment.TicketID], *comment)
	return nil
}

func (m *sweepComments) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketComment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.TicketComment{}, m.byTicket[ticketID]...), nil
}

func newSweeperUnderTest(tickets *sweepTickets, comments *sweepComments, now time.Time) *AutoCloseSweeper {
	lifecycle := service.NewLifecycleService(service.LifecycleDependencies{
		TicketRepo:  tickets,
		CommentRepo: comments,
		Now:         func() time.Time { return now },
	})
	sweeper := NewAutoCloseSweeper(tickets, lifecycle, time.Minute, zap.NewNop())
	sweeper.nowFn = func() time.Time { return now }
	return sweeper
}

func seedResolved(t *testing.T, tickets *sweepTickets, ticketNo string, resolvedAgo time.Duration, now time.Time) *domain.Ticket {
	t.Helper()
	userID := "u1"
	resolvedAt := now.Add(-resolvedAgo)
	ticket := &domain.Ticket{
		TicketNo:        ticketNo,
		RequesterUserID: &userID,
		Subject:         "stale",
		Status:          domain.TicketStatusResolved,
		SubmittedAt:     now.Add(-resolvedAgo - 24*time.Hour),
		StatusChangedAt: resolvedAt,
		ResolvedAt:      &resolvedAt,
	}
	require.NoError(t, tickets.Create(context.Background(), ticket))
	return ticket
}

func TestSweepOnceClosesOverdueResolvedTickets(t *testing.T) {
	now := time.Now()
	tickets := newSweepTickets()
	comments := newSweepComments()
	overdue := seedResolved(t, tickets, "HD-old", 73*time.Hour, now)
	fresh := seedResolved(t, tickets, "HD-fresh", time.Hour, now)

	sweeper := newSweeperUnderTest(tickets, comments, now)
	closed, err := sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	stored, err := tickets.GetByTicketNo(context.Background(), overdue.TicketNo)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, stored.Status)
	require.NotNil(t, stored.TimeClosed)
	require.NotNil(t, stored.ResolutionSecs)
	assert.Nil(t, stored.CSATRating)

	thread, err := comments.ListByTicket(context.Background(), stored.ID)
	require.NoError(t, err)
	require.Len(t, thread, 1)
	assert.Equal(t, domain.CommentTypeSystemEvent, thread[0].CommentType)
	assert.Contains(t, thread[0].Body, "automatically")

	untouched, err := tickets.GetByTicketNo(context.Background(), fresh.TicketNo)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, untouched.Status)
}

func TestSweepOnceIsIdempotent(t *testing.T) {
	now := time.Now()
	tickets := newSweepTickets()
	comments := newSweepComments()
	ticket := seedResolved(t, tickets, "HD-old", 100*time.Hour, now)

	sweeper := newSweeperUnderTest(tickets, comments, now)
	closed, err := sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	closed, err = sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, closed)

	thread, err := comments.ListByTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Len(t, thread, 1)
}

func TestSweepOnceContinuesPastFailingTicket(t *testing.T) {
	now := time.Now()
	tickets := newSweepTickets()
	comments := newSweepComments()
	seedResolved(t, tickets, "HD-a", 80*time.Hour, now)
	seedResolved(t, tickets, "HD-b", 80*time.Hour, now)
	seedResolved(t, tickets, "HD-c", 80*time.Hour, now)
	tickets.getErr["HD-b"] = errors.New("connection reset")

	sweeper := newSweeperUnderTest(tickets, comments, now)
	closed, err := sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, closed)

	broken, err := tickets.GetByTicketNo(context.Background(), "HD-a")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, broken.Status)
}

func TestSweepOncePropagatesListError(t *testing.T) {
	tickets := newSweepTickets()
	tickets.listErr = errors.New("db down")

	sweeper := newSweeperUnderTest(tickets, newSweepComments(), time.Now())
	_, err := sweeper.SweepOnce(context.Background())
	assert.Error(t, err)
}
