package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Staff          *handlers.StaffHandler
	Tickets        *handlers.TicketsHandler
	StaffTickets   *handlers.StaffTicketsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/users/register", cfg.Users.Register)
	authGroup.Post("/users/login", cfg.Users.Login)

	authGroup.Post("/staff/login", cfg.Staff.Login)
	authGroup.Post("/password/reset/request", cfg.Staff.RequestPasswordReset)
	authGroup.Post("/password/reset/confirm", cfg.Staff.ConfirmPasswordReset)

	protectedAuth := authGroup.Group("", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	protectedAuth.Post("/password/change", cfg.Staff.ChangePassword)

	// Requester surface: external users and internal employees acting on
	// their own tickets.
	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	tickets.Post("", cfg.Tickets.SubmitTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:ticket_no", cfg.Tickets.GetTicket)
	tickets.Post("/:ticket_no/comments", cfg.Tickets.AddComment)
	tickets.Post("/:ticket_no/withdraw", cfg.Tickets.WithdrawTicket)
	tickets.Post("/:ticket_no/close", cfg.Tickets.CloseTicket)
	tickets.Post("/:ticket_no/csat", cfg.Tickets.RateTicket)
	tickets.Post("/:ticket_no/typing", cfg.Tickets.SignalTyping)
	tickets.Get("/:ticket_no/typing", cfg.Tickets.ListTyping)

	departments := app.Group("/departments", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	departments.Get("", cfg.Staff.ListDepartments)

	// Coordinator surface.
	staff := app.Group("/staff", cfg.AuthMiddleware.Handle,
		auth.RequireStaffRole(domain.StaffRoleCoordinator, domain.StaffRoleAdmin))
	staff.Get("/tickets", cfg.StaffTickets.ListTickets)
	staff.Get("/tickets/:ticket_no", cfg.StaffTickets.GetTicket)
	staff.Post("/tickets/:ticket_no/approve", cfg.StaffTickets.Approve)
	staff.Post("/tickets/:ticket_no/reject", cfg.StaffTickets.Reject)
	staff.Post("/tickets/:ticket_no/claim", cfg.StaffTickets.Claim)
	staff.Patch("/tickets/:ticket_no/status", cfg.StaffTickets.UpdateStatus)
	staff.Put("/tickets/:ticket_no/owner", cfg.StaffTickets.Reassign)
	staff.Post("/tickets/:ticket_no/comments", cfg.StaffTickets.AddComment)
	staff.Post("/tickets/:ticket_no/typing", cfg.Tickets.SignalTyping)
	staff.Get("/tickets/:ticket_no/typing", cfg.Tickets.ListTyping)
	staff.Post("/departments", cfg.Staff.CreateDepartment)
}
