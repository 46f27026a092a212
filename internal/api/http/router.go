package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spot-sort/issue-service/internal/api/http/handlers"
	"github.com/spot-sort/issue-service/internal/auth"
	"github.com/spot-sort/issue-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Issues         *handlers.IssuesHandler
	Authority      *handlers.AuthorityHandler
	Admin          *handlers.AdminHandler
	Uploads        *handlers.UploadsHandler
	AuthMiddleware *auth.AuthMiddleware
	// OTPLimiter throttles endpoints that email a verification code.
	OTPLimiter RateLimiter
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)
	app.Get("/uploads/:ref", cfg.Uploads.Serve)

	api := app.Group("/api")
	otpLimit := RateLimit(cfg.OTPLimiter)
	bearer := cfg.AuthMiddleware.Handle
	staff := auth.RequireRole(domain.RoleAuthority, domain.RoleAdmin)

	authGroup := api.Group("/auth")
	authGroup.Post("/signup", otpLimit, cfg.Auth.Signup)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/otp/request", otpLimit, cfg.Auth.RequestOTP)
	authGroup.Post("/otp/verify", cfg.Auth.VerifyOTP)

	issues := api.Group("/issues")
	issues.Post("/otp-send", otpLimit, cfg.Issues.SendOTP)
	issues.Post("/anonymous", cfg.Issues.ConfirmAnonymous)
	issues.Get("/track/:ticketId", cfg.Issues.Track)

	issues.Post("/", bearer, auth.RequireRole(domain.RoleCitizen, domain.RoleAdmin), cfg.Issues.Create)
	issues.Get("/", bearer, auth.RequireAnyRole(), cfg.Issues.List)
	issues.Get("/authority/dashboard", bearer, staff, cfg.Authority.Dashboard)
	issues.Get("/:ticketId", bearer, auth.RequireAnyRole(), cfg.Issues.Get)
	issues.Put("/:ticketId/status", bearer, staff, cfg.Authority.UpdateStatus)
	issues.Put("/:ticketId/assign", bearer, staff, cfg.Authority.Assign)
	issues.Put("/:ticketId/resolve", bearer, staff, cfg.Authority.Resolve)
	issues.Put("/:ticketId/verify", bearer, auth.RequireRole(domain.RoleCitizen, domain.RoleAdmin), cfg.Issues.Verify)

	admin := api.Group("/admin", bearer, auth.RequireRole(domain.RoleAdmin))
	admin.Post("/accounts", cfg.Admin.CreateAccount)
}
