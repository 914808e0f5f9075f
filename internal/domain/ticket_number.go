package domain

import (
	"errors"
	"fmt"
	"time"
)

const (
	ticketNoPrefix   = "HD"
	ticketNoAttempts = 10
)

// ErrTicketNoExhausted is returned when even the widened suffix keeps
// colliding, which in practice means the uniqueness check is broken.
var ErrTicketNoExhausted = errors.New("ticket number space exhausted")

// IntnFunc returns a non-negative pseudo-random number in [0,n). Injected so
// callers can seed deterministically in tests.
type IntnFunc func(n int) int

// NewTicketNo builds a ticket number of the form HD<YYYYMMDD><6 digits>,
// using the UTC date of now. The exists check guards global uniqueness: on
// collision the 6-digit suffix is re-rolled up to ticketNoAttempts times,
// after which the suffix widens to 9 digits.
func NewTicketNo(now time.Time, intn IntnFunc, exists func(string) (bool, error)) (string, error) {
	date := now.UTC().Format("20060102")

	for attempt := 0; attempt < ticketNoAttempts; attempt++ {
		candidate := fmt.Sprintf("%s%s%06d", ticketNoPrefix, date, intn(1000000))
		taken, err := exists(candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}

	// Widened fallback suffix.
	for attempt := 0; attempt < ticketNoAttempts; attempt++ {
		candidate := fmt.Sprintf("%s%s%09d", ticketNoPrefix, date, intn(1000000000))
		taken, err := exists(candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", ErrTicketNoExhausted
}
