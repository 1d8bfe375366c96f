package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/memberkeeper/internal/server/models"
)

// multipartOverhead is headroom over the image limit for form boundaries
// and the other request parts.
const multipartOverhead = 64 << 10

// NewApp builds the fiber application with every route registered.
func NewApp(h *Handler) *fiber.App {
	cfg := fiber.Config{
		AppName:               "memberkeeper",
		ErrorHandler:          h.ErrorHandler,
		DisableStartupMessage: true,
	}
	if h.maxImageBytes > 0 {
		cfg.BodyLimit = int(h.maxImageBytes) + multipartOverhead
	}

	app := fiber.New(cfg)
	app.Use(TracingMiddleware())
	app.Use(PrometheusMiddleware())

	app.Get("/health", h.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/v1")

	authRoutes := v1.Group("/auth")
	authRoutes.Post("/register", h.Register)
	authRoutes.Post("/login", h.Login)

	me := v1.Group("/users/me", h.RequireAuth())
	me.Get("/", h.GetMe)
	me.Patch("/", h.UpdateMe)
	me.Patch("/password", h.ChangePassword)
	me.Put("/avatar", h.ReplaceAvatar)

	admin := v1.Group("/admin", h.RequireAuth(), h.RequireRole(models.RoleAdmin))
	admin.Post("/users", h.CreateUser)
	admin.Patch("/users/:id/role", h.SetRole)

	return app
}
