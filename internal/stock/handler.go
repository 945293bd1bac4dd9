package stock

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterPublicRoutes(app *fiber.App) {
	app.Get("/api/v1/stock/:variantId", h.getAvailability)
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	app.Put("/api/v1/admin/stock/:variantId", h.adjust)
	app.Post("/api/v1/admin/stock/:variantId/restock", h.restock)
}

func (h *Handler) getAvailability(c *fiber.Ctx) error {
	variantID := c.Params("variantId")
	qty, err := h.service.Available(c.Context(), variantID)
	if errors.Is(err, ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "stock level not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
	return c.JSON(fiber.Map{"variantId": variantID, "quantity": qty})
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) adjust(c *fiber.Ctx) error {
	payload := new(quantityRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	err := h.service.Adjust(c.Context(), c.Params("variantId"), payload.Quantity)
	if errors.Is(err, ErrNegativeQuantity) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "quantity must not be negative"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
	return c.JSON(fiber.Map{"variantId": c.Params("variantId"), "quantity": payload.Quantity})
}

func (h *Handler) restock(c *fiber.Ctx) error {
	payload := new(quantityRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if payload.Quantity <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "quantity must be positive"})
	}

	if err := h.service.Restock(c.Context(), c.Params("variantId"), payload.Quantity); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
	return c.SendStatus(fiber.StatusNoContent)
}
