package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/helphub-go-api/internal/config"
	"github.com/noah-isme/helphub-go-api/internal/handler"
	"github.com/noah-isme/helphub-go-api/internal/middleware"
	"github.com/noah-isme/helphub-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	RequestHandler      *handler.RequestHandler
	ChatHandler         *handler.ChatHandler
	NotificationHandler *handler.NotificationHandler
	AdminHandler        *handler.AdminHandler
	JWTMiddleware       fiber.Handler
	PresenceMiddleware  fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api", func(c *fiber.Ctx) error {
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
	presence := deps.PresenceMiddleware
	if presence == nil {
		presence = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.RequestHandler != nil {
		requests := app.Group("/api/requests", jwtMiddleware, presence,
			middleware.RateLimit("requests", cfg.RequestRateLimit, cfg.RequestRateWindow))
		deps.RequestHandler.Register(requests)
	}

	if deps.ChatHandler != nil {
		chat := app.Group("/api/chat", jwtMiddleware, presence,
			middleware.RateLimit("chat", cfg.RequestRateLimit, cfg.RequestRateWindow))
		deps.ChatHandler.Register(chat)
	}

	if deps.NotificationHandler != nil {
		notifications := app.Group("/api/notifications", jwtMiddleware, presence)
		deps.NotificationHandler.Register(notifications)
	}

	if deps.AdminHandler != nil {
		admin := app.Group("/api/admin", jwtMiddleware, presence)
		deps.AdminHandler.Register(admin)
	}
}
