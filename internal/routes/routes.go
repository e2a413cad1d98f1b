package routes

import (
	"github.com/arnold/mandala-api/internal/handlers"
	"github.com/arnold/mandala-api/internal/telemetry"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/websocket/v2"
)

func Setup(app *fiber.App, h *handlers.Handler, hub *handlers.Hub, metrics *telemetry.Collector) {
	api := app.Group("/api")

	api.Get("/tree", h.GetTree)

	nodes := api.Group("/nodes")
	nodes.Get("/:id", h.GetNode)
	nodes.Put("/:id", h.UpdateNode)
	nodes.Put("/:id/check", h.SetCheck)
	nodes.Put("/:id/percent", h.SetPercent)
	nodes.Get("/:id/checkpoint", h.GetCheckpoint)
	nodes.Post("/:id/checkpoint", h.SaveCheckpoint)

	yearly := api.Group("/metrics")
	yearly.Get("/planned", h.GetPlannedMetrics)
	yearly.Put("/planned/:year", h.PutPlannedMetrics)
	yearly.Get("/actual", h.GetActualMetrics)
	yearly.Put("/actual/:year", h.PutActualMetrics)

	api.Get("/celebrations", h.GetCelebrations)

	if metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	}

	app.Use("/ws", handlers.WebSocketUpgrade())
	app.Get("/ws/celebrations", websocket.New(hub.Handle))
}
