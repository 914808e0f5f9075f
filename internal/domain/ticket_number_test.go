package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedIntn(values ...int) IntnFunc {
	i := 0
	return func(n int) int {
		v := values[i%len(values)]
		i++
		return v % n
	}
}

func TestNewTicketNoFormat(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	no, err := NewTicketNo(now, fixedIntn(42), func(string) (bool, error) { return false, nil })
	require.NoError(t, err)
	assert.Equal(t, "HD20250314000042", no)
	assert.Len(t, no, 16)
}

func TestNewTicketNoUsesUTCDate(t *testing.T) {
	// 01:30 in UTC+5 is still the previous day in UTC.
	loc := time.FixedZone("plus5", 5*3600)
	now := time.Date(2025, 1, 1, 1, 30, 0, 0, loc)
	no, err := NewTicketNo(now, fixedIntn(7), func(string) (bool, error) { return false, nil })
	require.NoError(t, err)
	assert.Equal(t, "HD20241231000007", no)
}

func TestNewTicketNoRetriesOnCollision(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	taken := map[string]bool{
		"HD20250601000001": true,
		"HD20250601000002": true,
	}
	no, err := NewTicketNo(now, fixedIntn(1, 2, 3), func(candidate string) (bool, error) {
		return taken[candidate], nil
	})
	require.NoError(t, err)
	assert.Equal(t, "HD20250601000003", no)
}

func TestNewTicketNoWidensAfterExhaustedAttempts(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	no, err := NewTicketNo(now, fixedIntn(5), func(candidate string) (bool, error) {
		calls++
		// Every 6-digit candidate collides; the first widened one is free.
		return len(candidate) == len("HD20250601000005"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "HD20250601000000005", no)
	assert.Equal(t, 11, calls)
}

func TestNewTicketNoExhausted(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err := NewTicketNo(now, fixedIntn(5), func(string) (bool, error) { return true, nil })
	assert.ErrorIs(t, err, ErrTicketNoExhausted)
}

func TestNewTicketNoPropagatesExistsError(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	boom := errors.New("db down")
	_, err := NewTicketNo(now, fixedIntn(5), func(string) (bool, error) { return false, boom })
	assert.ErrorIs(t, err, boom)
}
