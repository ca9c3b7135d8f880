package internal

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"caudal/internal/http"
)

// publicCORSConfig is the CORS configuration for the dashboard API. The
// frontend is served from its own origin, so the API stays permissive.
var publicCORSConfig = cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,GET,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Authorization",
}

// MountRoutes mounts all application routes on the fiber app.
func MountRoutes(app *fiber.App, handler *http.Handler) {
	app.Use(recover.New())
	app.Use(cors.New(publicCORSConfig))

	// Health check endpoint
	app.Get("/_health", handler.HealthAction)
	app.Head("/_health", handler.HealthAction)

	api := app.Group("/api")

	// === AUTHENTICATION ===
	api.Post("/auth/upload-key", handler.UploadKeyAction)
	api.Post("/auth/revoke", handler.RevokeTokenAction)

	// === HISTORICAL JOBS ===
	api.Post("/historical/jobs", handler.CreateHistoricalJobAction)
	api.Get("/historical/jobs", handler.ListHistoricalJobsAction)
	api.Post("/historical/inspect-data", handler.InspectDataAction)

	// === PROPERTIES ===
	api.Get("/properties", handler.PropertiesIndexAction)
	api.Get("/properties/:id/bigquery-status", handler.PropertyBigQueryStatusAction)
	api.Get("/properties/:id/ga4-status", handler.PropertyGA4StatusAction)
	api.Get("/properties/:id/verify", handler.PropertyVerifyAction)

	// === REALTIME ===
	api.Get("/realtime", handler.RealtimeAction)
	api.Get("/realtime/ecommerce-funnel", handler.EcommerceFunnelAction)
	api.Get("/realtime/monthly-dashboard", handler.MonthlyDashboardAction)
}
