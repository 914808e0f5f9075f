package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// In-memory repository fakes. They return copies from reads so guarded
// writes observe the stored status, not the caller's mutation.

type memTickets struct {
	mu      sync.Mutex
	seq     int
	byID    map[string]*domain.Ticket
	listErr error
}

func newMemTickets() *memTickets {
	return &memTickets{byID: map[string]*domain.Ticket{}}
}

func (m *memTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	ticket.ID = fmt.Sprintf("t-%d", m.seq)
	now := time.Now()
	if ticket.SubmittedAt.IsZero() {
		ticket.SubmittedAt = now
	}
	ticket.UpdatedAt = now
	if ticket.StatusChangedAt.IsZero() {
		ticket.StatusChangedAt = now
	}
	stored := *ticket
	m.byID[ticket.ID] = &stored
	return nil
}

func (m *memTickets) Update(_ context.Context, ticket *domain.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	stored := *ticket
	m.byID[ticket.ID] = &stored
	return nil
}

func (m *memTickets) UpdateGuarded(_ context.Context, ticket *domain.Ticket, expected domain.TicketStatus) error {
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
	stored.UpdatedAt = time.Now()
	m.byID[ticket.ID] = &stored
	return nil
}

func (m *memTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *stored
	return &copied, nil
}

func (m *memTickets) GetByTicketNo(_ context.Context, ticketNo string) (*domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, stored := range m.byID {
		if stored.TicketNo == ticketNo {
			copied := *stored
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memTickets) TicketNoExists(_ context.Context, ticketNo string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, stored := range m.byID {
		if stored.TicketNo == ticketNo {
			return true, nil
		}
	}
	return false, nil
}

func (m *memTickets) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Ticket
	for _, stored := range m.byID {
		if filter.RequesterUserID != nil && (stored.RequesterUserID == nil || *stored.RequesterUserID != *filter.RequesterUserID) {
			continue
		}
		if filter.RequesterStaffID != nil && (stored.RequesterStaffID == nil || *stored.RequesterStaffID != *filter.RequesterStaffID) {
			continue
		}
		if filter.OwnerID != nil && (stored.OwnerID == nil || *stored.OwnerID != *filter.OwnerID) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, stored.Status) {
			continue
		}
		out = append(out, *stored)
	}
	return out, nil
}

func (m *memTickets) ListActiveByOwners(_ context.Context, ownerIDs []string) ([]domain.Ticket, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	owners := map[string]bool{}
	for _, id := range ownerIDs {
		owners[id] = true
	}
	var out []domain.Ticket
	for _, stored := range m.byID {
		if stored.OwnerID == nil || !owners[*stored.OwnerID] {
			continue
		}
		if stored.Status.IsTerminal() {
			continue
		}
		out = append(out, *stored)
	}
	return out, nil
}

func (m *memTickets) ListResolvedBefore(_ context.Context, cutoff time.Time) ([]domain.Ticket, error) {
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

func containsStatus(statuses []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

type memComments struct {
	mu       sync.Mutex
	seq      int
	byTicket map[string][]domain.TicketComment
	failErr  error
}

func newMemComments() *memComments {
	return &memComments{byTicket: map[string][]domain.TicketComment{}}
}

func (m *memComments) Create(_ context.Context, comment *domain.TicketComment) error {
	if m.failErr != nil {
		return m.failErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	comment.ID = fmt.Sprintf("c-%d", m.seq)
	comment.CreatedAt = time.Now()
	m.byTicket[comment.TicketID] = append(m.byTicket[comment.TicketID], *comment)
	return nil
}

func (m *memComments) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketComment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.TicketComment{}, m.byTicket[ticketID]...), nil
}

type memHistory struct {
	mu       sync.Mutex
	seq      int
	byTicket map[string][]domain.TicketHistory
}

func newMemHistory() *memHistory {
	return &memHistory{byTicket: map[string][]domain.TicketHistory{}}
}

func (m *memHistory) Create(_ context.Context, entry *domain.TicketHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	entry.ID = fmt.Sprintf("h-%d", m.seq)
	entry.CreatedAt = time.Now()
	m.byTicket[entry.TicketID] = append(m.byTicket[entry.TicketID], *entry)
	return nil
}

func (m *memHistory) ListByTicket(_ context.Context, ticketID string, limit, offset int) ([]domain.TicketHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.byTicket[ticketID]
	if offset >= len(entries) {
		return nil, nil
	}
	entries = entries[offset:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return append([]domain.TicketHistory{}, entries...), nil
}

type memAttachments struct {
	mu        sync.Mutex
	seq       int
	byComment map[string][]domain.AttachmentReference
}

func newMemAttachments() *memAttachments {
	return &memAttachments{byComment: map[string][]domain.AttachmentReference{}}
}

func (m *memAttachments) Create(_ context.Context, att *domain.AttachmentReference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	att.ID = fmt.Sprintf("a-%d", m.seq)
	att.CreatedAt = time.Now()
	m.byComment[att.TicketCommentID] = append(m.byComment[att.TicketCommentID], *att)
	return nil
}

func (m *memAttachments) ListByComment(_ context.Context, commentID string) ([]domain.AttachmentReference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.AttachmentReference{}, m.byComment[commentID]...), nil
}

type memDepartments struct {
	mu   sync.Mutex
	seq  int
	byID map[string]*domain.Department
}

func newMemDepartments(names ...string) *memDepartments {
	m := &memDepartments{byID: map[string]*domain.Department{}}
	for _, name := range names {
		_ = m.Create(context.Background(), &domain.Department{Name: name, IsActive: true})
	}
	return m
}

func (m *memDepartments) Create(_ context.Context, dept *domain.Department) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	dept.ID = fmt.Sprintf("d-%d", m.seq)
	stored := *dept
	m.byID[dept.ID] = &stored
	return nil
}

func (m *memDepartments) Update(_ context.Context, dept *domain.Department) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[dept.ID]; !ok {
		return pgx.ErrNoRows
	}
	stored := *dept
	m.byID[dept.ID] = &stored
	return nil
}

func (m *memDepartments) GetByID(_ context.Context, id string) (*domain.Department, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *stored
	return &copied, nil
}

func (m *memDepartments) GetByName(_ context.Context, name string) (*domain.Department, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, stored := range m.byID {
		if strings.EqualFold(stored.Name, name) {
			copied := *stored
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memDepartments) ListActive(_ context.Context) ([]domain.Department, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Department
	for _, stored := range m.byID {
		if stored.IsActive {
			out = append(out, *stored)
		}
	}
	return out, nil
}

type memStaff struct {
	mu   sync.Mutex
	byID map[string]*domain.StaffMember
}

func newMemStaff(members ...*domain.StaffMember) *memStaff {
	m := &memStaff{byID: map[string]*domain.StaffMember{}}
	for _, member := range members {
		stored := *member
		m.byID[member.ID] = &stored
	}
	return m
}

func (m *memStaff) Create(_ context.Context, staff *domain.StaffMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *staff
	m.byID[staff.ID] = &stored
	return nil
}

func (m *memStaff) Update(_ context.Context, staff *domain.StaffMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[staff.ID]; !ok {
		return pgx.ErrNoRows
	}
	stored := *staff
	m.byID[staff.ID] = &stored
	return nil
}

func (m *memStaff) GetByID(_ context.Context, id string) (*domain.StaffMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *stored
	return &copied, nil
}

func (m *memStaff) GetByEmail(_ context.Context, email string) (*domain.StaffMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, stored := range m.byID {
		if stored.Email == email {
			copied := *stored
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memStaff) List(_ context.Context, filter repository.StaffFilter) ([]domain.StaffMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.StaffMember
	for _, stored := range m.byID {
		if filter.Role != nil && stored.Role != *filter.Role {
			continue
		}
		if filter.Active != nil && stored.Active != *filter.Active {
			continue
		}
		out = append(out, *stored)
	}
	return out, nil
}

type stubDirectory struct {
	roster []domain.Coordinator
	err    error
}

func (s *stubDirectory) ListCoordinators(_ context.Context) ([]domain.Coordinator, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]domain.Coordinator{}, s.roster...), nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) byType(eventType events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []events.Event
	for _, event := range d.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}
