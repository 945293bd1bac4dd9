package order

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/cnfroast/storefront-backend/internal/identity"
	"github.com/cnfroast/storefront-backend/internal/product"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) RegisterPublicRoutes(app *fiber.App) {
	app.Post("/api/v1/checkout", h.checkout)
	app.Get("/api/v1/orders", h.listOrders)
	app.Get("/api/v1/orders/:number", h.getOrder)
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	app.Get("/api/v1/admin/orders", h.adminListOrders)
	app.Get("/api/v1/admin/orders/:id", h.adminGetOrder)
	app.Put("/api/v1/admin/orders/:id/status", h.adminUpdateStatus)
	app.Get("/api/v1/admin/orders/:id/events", h.adminStatusHistory)
}

func (h *Handler) checkout(c *fiber.Ctx) error {
	ident, err := identity.FromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	payload := new(CheckoutRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if payload.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "email is required"})
	}
	if payload.PaymentMethod == "" {
		payload.PaymentMethod = "card"
	}

	ord, err := h.service.Checkout(c.Context(), ident, *payload)
	if err != nil {
		return orderError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(ord)
}

func (h *Handler) listOrders(c *fiber.Ctx) error {
	ident, err := identity.FromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	orders, err := h.service.ListForIdentity(c.Context(), ident)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
	return c.JSON(orders)
}

func (h *Handler) getOrder(c *fiber.Ctx) error {
	ident, err := identity.FromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	ord, err := h.service.GetForIdentity(c.Context(), ident, c.Params("number"))
	if err != nil {
		return orderError(c, err)
	}
	return c.JSON(ord)
}

func (h *Handler) adminListOrders(c *fiber.Ctx) error {
	orders, err := h.service.ListAll(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
	return c.JSON(orders)
}

func (h *Handler) adminGetOrder(c *fiber.Ctx) error {
	ord, err := h.service.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return orderError(c, err)
	}
	return c.JSON(ord)
}

type updateStatusRequest struct {
	Status string  `json:"status"`
	Note   *string `json:"note,omitempty"`
}

func (h *Handler) adminUpdateStatus(c *fiber.Ctx) error {
	payload := new(updateStatusRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	ord, err := h.service.UpdateStatus(c.Context(), c.Params("id"), payload.Status, ActorAdmin, payload.Note)
	if err != nil {
		return orderError(c, err)
	}
	return c.JSON(ord)
}

func (h *Handler) adminStatusHistory(c *fiber.Ctx) error {
	events, err := h.service.StatusHistory(c.Context(), c.Params("id"))
	if err != nil {
		return orderError(c, err)
	}
	return c.JSON(events)
}

func orderError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "order not found"})
	case errors.Is(err, ErrEmptyCart):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": "cart is empty"})
	case errors.Is(err, ErrInsufficientStock):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": "insufficient stock"})
	case errors.Is(err, ErrInvalidStatus):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	case errors.Is(err, ErrInvalidTransition):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": err.Error()})
	case errors.Is(err, product.ErrNotFound), errors.Is(err, product.ErrVariantNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
}
