package handlers

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/pelusa-v/pelusa-spaces/internal/devserver"
	"go.uber.org/zap"
)

// NewApp builds the relay's fiber app. staticDir is optional.
func NewApp(hub *devserver.Hub, staticDir string, log *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	h := New(hub, log)

	if staticDir != "" {
		app.Static("/", staticDir)
	}

	app.Get("/ws", websocket.New(h.WSHandler))

	api := app.Group("/api")
	api.Get("/spaces", h.SpacesHandler)
	api.Post("/spaces", h.CreateSpaceHandler)

	return app
}
