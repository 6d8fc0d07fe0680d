package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"crm-sync/internal/config"
	"crm-sync/internal/delivery/http/handler"
)

type Router struct {
	app           *fiber.App
	config        *config.Config
	healthHandler *handler.HealthHandler
	oauthHandler  *handler.OAuthHandler
	syncHandler   *handler.SyncHandler
	logHandler    *handler.LogHandler
}

func NewRouter(
	cfg *config.Config,
	healthHandler *handler.HealthHandler,
	oauthHandler *handler.OAuthHandler,
	syncHandler *handler.SyncHandler,
	logHandler *handler.LogHandler,
) *Router {
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  cfg.App.ReadTimeout,
		WriteTimeout: cfg.App.WriteTimeout,
		IdleTimeout:  cfg.App.IdleTimeout,
		ErrorHandler: customErrorHandler,
	})

	return &Router{
		app:           app,
		config:        cfg,
		healthHandler: healthHandler,
		oauthHandler:  oauthHandler,
		syncHandler:   syncHandler,
		logHandler:    logHandler,
	}
}

func (r *Router) Setup() *fiber.App {
	// Middleware
	r.app.Use(recover.New())
	r.app.Use(requestid.New())
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	if r.config.IsDevelopment() {
		r.app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
		}))
	}

	// Health check and metrics
	r.app.Get("/health", r.healthHandler.Health)
	r.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// OAuth callback route (must be at root level for redirect)
	r.app.Get("/redirect/teamleader", r.oauthHandler.Callback)

	// API v1 routes
	api := r.app.Group("/api/v1")
	{
		teamleader := api.Group("/teamleader")
		{
			oauth := teamleader.Group("/oauth")
			oauth.Get("/authorize", r.oauthHandler.Authorize)
			oauth.Get("/status", r.oauthHandler.Status)
			oauth.Delete("/token", r.oauthHandler.Revoke)

			sync := teamleader.Group("/sync")
			sync.Post("/companies", r.syncHandler.SyncCompanies)
			sync.Post("/custom-fields", r.syncHandler.SyncCustomFields)
			sync.Get("/status", r.syncHandler.Status)
		}

		// Log routes
		api.Get("/logs", r.logHandler.GetLogs)
	}

	return r.app
}

func (r *Router) GetApp() *fiber.App {
	return r.app
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"message": err.Error(),
		"error": fiber.Map{
			"code":    code,
			"message": err.Error(),
		},
	})
}
