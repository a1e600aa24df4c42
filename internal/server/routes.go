package server

import "github.com/gofiber/fiber/v2"

// RegisterRoutes mounts the triage API on the app.
func RegisterRoutes(app *fiber.App, h *Handler) {
	app.Get("/healthz", h.Health)

	api := app.Group("/api")
	api.Get("/export", h.BulkExport)

	docs := api.Group("/documents")
	docs.Post("/", h.Upload)
	docs.Get("/", h.List)
	docs.Get("/:id", h.Get)
	docs.Patch("/:id", h.Patch)
	docs.Delete("/:id", h.Delete)
	docs.Post("/:id/retry", h.Retry)
	docs.Post("/:id/approve", h.Approve)
	docs.Post("/:id/reject", h.Reject)
	docs.Get("/:id/export", h.SingleExport)
}
