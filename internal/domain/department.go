package domain

import "time"

// Department is a recognized ticket category. Approval rejects departments
// that are unknown or inactive.
type Department struct {
	ID          string
	Name        string
	Description string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
