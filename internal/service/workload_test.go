package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

func ownedTicket(tickets *memTickets, ownerID string, status domain.TicketStatus, priority domain.TicketPriority, changedAt time.Time) {
	ticket := &domain.Ticket{
		TicketNo:        "HD" + ownerID + string(status) + changedAt.Format("150405.000000"),
		OwnerID:         &ownerID,
		Subject:         "x",
		Status:          status,
		Priority:        priority,
		StatusChangedAt: changedAt,
	}
	userID := "requester"
	ticket.RequesterUserID = &userID
	_ = tickets.Create(context.Background(), ticket)
	// Create stamps StatusChangedAt when zero; force the test value.
	stored, _ := tickets.GetByTicketNo(context.Background(), ticket.TicketNo)
	stored.StatusChangedAt = changedAt
	_ = tickets.Update(context.Background(), stored)
}

func TestCollectZeroFactsForIdleCoordinators(t *testing.T) {
	agg := NewWorkloadAggregator(newMemTickets())
	facts, err := agg.Collect(context.Background(), []string{"c1", "c2"})
	require.NoError(t, err)
	assert.Len(t, facts, 2)
	assert.Equal(t, domain.CoordinatorWorkload{}, facts["c1"])
	assert.Equal(t, domain.CoordinatorWorkload{}, facts["c2"])
}

func TestCollectAggregatesFacts(t *testing.T) {
	tickets := newMemTickets()
	now := time.Now()

	ownedTicket(tickets, "c1", domain.TicketStatusInProgress, domain.TicketPriorityHigh, now)
	ownedTicket(tickets, "c1", domain.TicketStatusOpen, domain.TicketPriorityLow, now)
	ownedTicket(tickets, "c2", domain.TicketStatusResolved, domain.TicketPriorityMedium, now.Add(-time.Hour))
	ownedTicket(tickets, "c2", domain.TicketStatusResolved, domain.TicketPriorityMedium, now.Add(-3*time.Hour))
	// Terminal tickets never count.
	ownedTicket(tickets, "c1", domain.TicketStatusClosed, domain.TicketPriorityLow, now)

	agg := NewWorkloadAggregator(tickets)
	facts, err := agg.Collect(context.Background(), []string{"c1", "c2", "c3"})
	require.NoError(t, err)

	c1 := facts["c1"]
	assert.Equal(t, 2, c1.ActiveCount)
	assert.True(t, c1.HasLowPriority)
	assert.False(t, c1.HasResolved)
	assert.Nil(t, c1.NearestClosing)

	c2 := facts["c2"]
	assert.Equal(t, 2, c2.ActiveCount)
	assert.False(t, c2.HasLowPriority)
	assert.True(t, c2.HasResolved)
	require.NotNil(t, c2.NearestClosing)
	// The older resolved ticket closes sooner.
	expected := now.Add(-3 * time.Hour).Add(domain.AutoCloseDwell)
	assert.WithinDuration(t, expected, *c2.NearestClosing, time.Second)

	assert.Equal(t, domain.CoordinatorWorkload{}, facts["c3"])
}

func TestCollectIgnoresForeignOwners(t *testing.T) {
	tickets := newMemTickets()
	ownedTicket(tickets, "other", domain.TicketStatusOpen, domain.TicketPriorityHigh, time.Now())

	agg := NewWorkloadAggregator(tickets)
	facts, err := agg.Collect(context.Background(), []string{"c1"})
	require.NoError(t, err)
	assert.Equal(t, domain.CoordinatorWorkload{}, facts["c1"])
}

func TestCollectPropagatesStoreError(t *testing.T) {
	tickets := newMemTickets()
	tickets.listErr = errors.New("db down")

	agg := NewWorkloadAggregator(tickets)
	_, err := agg.Collect(context.Background(), []string{"c1"})
	assert.Error(t, err)
}

func TestCollectEmptyInputSkipsQuery(t *testing.T) {
	tickets := newMemTickets()
	tickets.listErr = errors.New("should not be called")

	agg := NewWorkloadAggregator(tickets)
	facts, err := agg.Collect(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, facts)
}
