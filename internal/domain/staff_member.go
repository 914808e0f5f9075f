package domain

import "time"

// StaffRole enumerates internal operator roles. Employees submit tickets on
// their own behalf; coordinators own and drive tickets; admins additionally
// manage rosters and departments.
type StaffRole string

const (
	StaffRoleEmployee    StaffRole = "EMPLOYEE"
	StaffRoleCoordinator StaffRole = "COORDINATOR"
	StaffRoleAdmin       StaffRole = "ADMIN"
)

// CanModerate reports whether the role may run lifecycle operations
// (approve, reject, claim, update status).
func (r StaffRole) CanModerate() bool {
	return r == StaffRoleCoordinator || r == StaffRoleAdmin
}

// StaffMember models an internal employee, coordinator, or administrator.
type StaffMember struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         StaffRole
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Coordinator is the directory view of a staff member eligible to own
// tickets. The engine reads it on demand and never persists it.
type Coordinator struct {
	ID    string
	Name  string
	Email string
}
