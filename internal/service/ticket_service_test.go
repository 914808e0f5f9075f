package service

import (
	"context"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

type ticketFixture struct {
	tickets     *memTickets
	comments    *memComments
	attachments *memAttachments
	dispatcher  *recordingDispatcher
	service     *TicketService
}

func newTicketFixture(t *testing.T) *ticketFixture {
	t.Helper()
	tickets := newMemTickets()
	comments := newMemComments()
	attachments := newMemAttachments()
	dispatcher := &recordingDispatcher{}
	service := NewTicketService(TicketDependencies{
		TicketRepo:     tickets,
		CommentRepo:    comments,
		AttachmentRepo: attachments,
		Dispatcher:     dispatcher,
		Intn:           rand.New(rand.NewSource(3)).Intn,
	})
	return &ticketFixture{
		tickets:     tickets,
		comments:    comments,
		attachments: attachments,
		dispatcher:  dispatcher,
		service:     service,
	}
}

func TestSubmitCreatesNewTicket(t *testing.T) {
	f := newTicketFixture(t)

	ticket, err := f.service.Submit(context.Background(), domain.SubjectTypeUser, "u1", TicketSubmitInput{
		Subject:     "  vpn broken  ",
		Description: "cannot connect since monday",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusNew, ticket.Status)
	assert.Equal(t, "vpn broken", ticket.Subject)
	require.NotNil(t, ticket.RequesterUserID)
	assert.Equal(t, "u1", *ticket.RequesterUserID)
	assert.Nil(t, ticket.RequesterStaffID)
	assert.True(t, strings.HasPrefix(ticket.TicketNo, "HD"))
	assert.Len(t, ticket.TicketNo, 16)

	assert.Len(t, f.dispatcher.byType(events.EventTicketSubmitted), 1)
}

func TestSubmitByEmployee(t *testing.T) {
	f := newTicketFixture(t)

	ticket, err := f.service.Submit(context.Background(), domain.SubjectTypeStaff, "emp1", TicketSubmitInput{
		Subject:     "badge reader",
		Description: "door 3 reader dead",
	})
	require.NoError(t, err)
	assert.Nil(t, ticket.RequesterUserID)
	require.NotNil(t, ticket.RequesterStaffID)
	assert.Equal(t, "emp1", *ticket.RequesterStaffID)
}

func TestSubmitValidation(t *testing.T) {
	f := newTicketFixture(t)

	_, err := f.service.Submit(context.Background(), domain.SubjectTypeUser, "u1", TicketSubmitInput{Subject: "   "})
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestSubmitRerollsCollidingNumbers(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()

	first, err := f.service.Submit(ctx, domain.SubjectTypeUser, "u1", TicketSubmitInput{Subject: "a", Description: "a"})
	require.NoError(t, err)
	second, err := f.service.Submit(ctx, domain.SubjectTypeUser, "u1", TicketSubmitInput{Subject: "b", Description: "b"})
	require.NoError(t, err)
	assert.NotEqual(t, first.TicketNo, second.TicketNo)
}

func TestGetTicketForRequesterHidesInternalNotes(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()

	ticket, err := f.service.Submit(ctx, domain.SubjectTypeUser, "u1", TicketSubmitInput{Subject: "s", Description: "d"})
	require.NoError(t, err)

	staffID := "c1"
	for _, comment := range []*domain.TicketComment{
		{TicketID: ticket.ID, AuthorType: domain.AuthorTypeStaff, AuthorID: &staffID, CommentType: domain.CommentTypePublicReply, Body: "looking into it"},
		{TicketID: ticket.ID, AuthorType: domain.AuthorTypeStaff, AuthorID: &staffID, CommentType: domain.CommentTypeInternalNote, Body: "user seems confused"},
		{TicketID: ticket.ID, AuthorType: domain.AuthorTypeSystem, CommentType: domain.CommentTypeSystemEvent, Body: "Status changed."},
	} {
		require.NoError(t, f.comments.Create(ctx, comment))
	}

	_, visible, err := f.service.GetTicketForRequester(ctx, domain.SubjectTypeUser, "u1", ticket.TicketNo)
	require.NoError(t, err)
	require.Len(t, visible, 2)
	for _, comment := range visible {
		assert.NotEqual(t, domain.CommentTypeInternalNote, comment.CommentType)
	}

	_, _, err = f.service.GetTicketForRequester(ctx, domain.SubjectTypeUser, "stranger", ticket.TicketNo)
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
}

func TestAddCommentPermissions(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()

	ticket, err := f.service.Submit(ctx, domain.SubjectTypeUser, "u1", TicketSubmitInput{Subject: "s", Description: "d"})
	require.NoError(t, err)

	// Requester posts a public reply.
	comment, err := f.service.AddComment(ctx, domain.SubjectTypeUser, "u1", nil, ticket.TicketNo, domain.CommentTypePublicReply, "any update?", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.AuthorTypeUser, comment.AuthorType)

	// Requesters cannot write internal notes.
	_, err = f.service.AddComment(ctx, domain.SubjectTypeUser, "u1", nil, ticket.TicketNo, domain.CommentTypeInternalNote, "sneaky", nil)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	// Strangers get nothing.
	_, err = f.service.AddComment(ctx, domain.SubjectTypeUser, "u2", nil, ticket.TicketNo, domain.CommentTypePublicReply, "hi", nil)
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))

	// Coordinators may add internal notes on any ticket.
	coord := coordinatorStaff("c1")
	note, err := f.service.AddComment(ctx, domain.SubjectTypeStaff, coord.ID, coord, ticket.TicketNo, domain.CommentTypeInternalNote, "check router logs", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.CommentTypeInternalNote, note.CommentType)

	// Staff cannot forge system events.
	_, err = f.service.AddComment(ctx, domain.SubjectTypeStaff, coord.ID, coord, ticket.TicketNo, domain.CommentTypeSystemEvent, "x", nil)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	// Empty bodies rejected.
	_, err = f.service.AddComment(ctx, domain.SubjectTypeUser, "u1", nil, ticket.TicketNo, domain.CommentTypePublicReply, "  ", nil)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestAddCommentByEmployeeRequester(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()

	ticket, err := f.service.Submit(ctx, domain.SubjectTypeStaff, "emp1", TicketSubmitInput{Subject: "s", Description: "d"})
	require.NoError(t, err)

	employee := &domain.StaffMember{ID: "emp1", Role: domain.StaffRoleEmployee, Active: true}
	comment, err := f.service.AddComment(ctx, domain.SubjectTypeStaff, employee.ID, employee, ticket.TicketNo, domain.CommentTypePublicReply, "still broken", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.AuthorTypeStaff, comment.AuthorType)

	// Employees cannot touch other people's tickets.
	other := &domain.StaffMember{ID: "emp2", Role: domain.StaffRoleEmployee, Active: true}
	_, err = f.service.AddComment(ctx, domain.SubjectTypeStaff, other.ID, other, ticket.TicketNo, domain.CommentTypePublicReply, "me too", nil)
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
}

func TestAddCommentStoresAttachments(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()

	ticket, err := f.service.Submit(ctx, domain.SubjectTypeUser, "u1", TicketSubmitInput{Subject: "s", Description: "d"})
	require.NoError(t, err)

	comment, err := f.service.AddComment(ctx, domain.SubjectTypeUser, "u1", nil, ticket.TicketNo, domain.CommentTypePublicReply, "screenshot attached", []CommentAttachmentInput{
		{StorageKey: "s3://bucket/scr.png", FileName: "scr.png", MimeType: "image/png", SizeBytes: 1024},
	})
	require.NoError(t, err)
	require.Len(t, comment.Attachments, 1)
	assert.Equal(t, "scr.png", comment.Attachments[0].FileName)

	stored, err := f.attachments.ListByComment(ctx, comment.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestListStaffTicketsRequiresModerator(t *testing.T) {
	f := newTicketFixture(t)

	employee := &domain.StaffMember{ID: "emp", Role: domain.StaffRoleEmployee, Active: true}
	_, err := f.service.ListStaffTickets(context.Background(), employee, TicketListFilter{})
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))

	_, err = f.service.ListStaffTickets(context.Background(), coordinatorStaff("c1"), TicketListFilter{})
	assert.NoError(t, err)
}

func TestListRequesterTicketsScopesToRequester(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()

	_, err := f.service.Submit(ctx, domain.SubjectTypeUser, "u1", TicketSubmitInput{Subject: "a", Description: "x"})
	require.NoError(t, err)
	_, err = f.service.Submit(ctx, domain.SubjectTypeUser, "u2", TicketSubmitInput{Subject: "b", Description: "x"})
	require.NoError(t, err)
	_, err = f.service.Submit(ctx, domain.SubjectTypeStaff, "u1", TicketSubmitInput{Subject: "c", Description: "x"})
	require.NoError(t, err)

	mine, err := f.service.ListRequesterTickets(ctx, domain.SubjectTypeUser, "u1", 50, 0)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "a", mine[0].Subject)
}
