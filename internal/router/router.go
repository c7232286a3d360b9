package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gradehub-api/internal/config"
	"github.com/noah-isme/gradehub-api/internal/handler"
	"github.com/noah-isme/gradehub-api/internal/middleware"
	"github.com/noah-isme/gradehub-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	CourseHandler     *handler.CourseHandler
	AssignmentHandler *handler.AssignmentHandler
	IntakeHandler     *handler.IntakeHandler
	SubmissionHandler *handler.SubmissionHandler
	GradingHandler    *handler.GradingHandler
	AnalysisHandler   *handler.AnalysisHandler
	AuditHandler      *handler.AuditHandler
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	protected := api.Group("", jwtMiddleware)

	if deps.CourseHandler != nil {
		deps.CourseHandler.Register(protected)
	}
	if deps.AssignmentHandler != nil {
		deps.AssignmentHandler.Register(protected)
	}
	if deps.IntakeHandler != nil {
		deps.IntakeHandler.Register(protected)
	}
	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.Register(protected)
		deps.SubmissionHandler.RegisterAdmin(protected, middleware.RequireRole("admin"))
	}
	if deps.GradingHandler != nil {
		deps.GradingHandler.Register(protected)
	}
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.Register(protected)
	}
	if deps.AuditHandler != nil {
		deps.AuditHandler.Register(protected)
	}
}
