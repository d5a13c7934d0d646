package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pathshala-labs/pathshala-api/internal/config"
	"github.com/pathshala-labs/pathshala-api/internal/handler"
	"github.com/pathshala-labs/pathshala-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	CourseHandler       *handler.CourseHandler
	ProgressHandler     *handler.ProgressHandler
	QuizHandler         *handler.QuizHandler
	NotificationHandler *handler.NotificationHandler
	JWTMiddleware       fiber.Handler
	QuizRateLimit       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
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

	if deps.CourseHandler != nil {
		courses := app.Group("/api/v1/courses", jwtMiddleware)
		deps.CourseHandler.Register(courses)
	}

	if deps.ProgressHandler != nil {
		progress := app.Group("/api/v1/progress", jwtMiddleware)
		deps.ProgressHandler.Register(progress)
	}

	if deps.QuizHandler != nil {
		// Quiz generation is an expensive model call, so the group is throttled.
		quizzes := app.Group("/api/v1/quizzes", jwtMiddleware)
		if deps.QuizRateLimit != nil {
			quizzes.Use(deps.QuizRateLimit)
		}
		deps.QuizHandler.Register(quizzes)
	}

	if deps.NotificationHandler != nil {
		notifications := app.Group("/api/v1/notifications", jwtMiddleware)
		deps.NotificationHandler.Register(notifications)
	}
}
