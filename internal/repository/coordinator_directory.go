package repository

import (
	"context"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CoordinatorDirectory supplies the roster of coordinators eligible to own
// tickets. Read-only; lookups may fail or time out, and callers degrade to
// an empty roster rather than failing their own operation.
type CoordinatorDirectory interface {
	ListCoordinators(ctx context.Context) ([]domain.Coordinator, error)
}

type staffCoordinatorDirectory struct {
	staff StaffRepository
}

// NewCoordinatorDirectory exposes active COORDINATOR staff as the roster.
func NewCoordinatorDirectory(staff StaffRepository) CoordinatorDirectory {
	return &staffCoordinatorDirectory{staff: staff}
}

func (d *staffCoordinatorDirectory) ListCoordinators(ctx context.Context) ([]domain.Coordinator, error) {
	role := domain.StaffRoleCoordinator
	active := true
	members, err := d.staff.List(ctx, StaffFilter{Role: &role, Active: &active, Limit: 1000})
	if err != nil {
		return nil, err
	}
	roster := make([]domain.Coordinator, 0, len(members))
	for _, m := range members {
		roster = append(roster, domain.Coordinator{ID: m.ID, Name: m.Name, Email: m.Email})
	}
	return roster, nil
}
