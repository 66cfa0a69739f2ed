package handlers

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/pelusa-v/pelusa-spaces/internal/devserver"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Handlers struct {
	hub *devserver.Hub
	log *zap.Logger
}

func New(hub *devserver.Hub, log *zap.Logger) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{hub: hub, log: log.Named("http")}
}

// WSHandler GET /ws
func (h *Handlers) WSHandler(c *websocket.Conn) {
	h.hub.Serve(c)
}

// SpacesHandler GET /api/spaces
func (h *Handlers) SpacesHandler(c *fiber.Ctx) error {
	return c.JSON(h.hub.Spaces().List())
}

type createSpaceRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedBy   string `json:"createdBy"`
}

// CreateSpaceHandler POST /api/spaces
func (h *Handlers) CreateSpaceHandler(c *fiber.Ctx) error {
	var req createSpaceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	sp, err := h.hub.Spaces().Create(req.Name, req.Description, req.CreatedBy)
	switch {
	case errors.Is(err, devserver.ErrInvalidName):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, devserver.ErrSpaceExists):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		h.log.Error("create space", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
	h.log.Info("space created", zap.String("id", sp.ID), zap.String("createdBy", sp.CreatedBy))
	return c.Status(fiber.StatusCreated).JSON(sp)
}
