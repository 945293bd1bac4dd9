package settings

import (
	"github.com/gofiber/fiber/v2"
)

// Handler exposes the admin settings surface used to tune shipping and tax.
type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	app.Get("/api/v1/admin/settings", h.listSettings)
	app.Put("/api/v1/admin/settings/:key", h.putSetting)
}

func (h *Handler) listSettings(c *fiber.Ctx) error {
	all, err := h.service.List(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
	return c.JSON(all)
}

type putSettingRequest struct {
	Value string `json:"value"`
}

func (h *Handler) putSetting(c *fiber.Ctx) error {
	key := c.Params("key")
	payload := new(putSettingRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if payload.Value == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "value is required"})
	}

	if err := h.service.PutSetting(c.Context(), key, payload.Value); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
	return c.JSON(fiber.Map{"key": key, "value": payload.Value})
}
