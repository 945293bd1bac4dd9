package cart

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/cnfroast/storefront-backend/internal/identity"
	"github.com/cnfroast/storefront-backend/internal/product"
)

// Handler delegates cart operations to the cart service. Cart routes accept
// both authenticated users and guests carrying a session token header.
type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) RegisterPublicRoutes(app *fiber.App) {
	app.Get("/api/v1/cart", h.getCart)
	app.Post("/api/v1/cart/lines", h.addLine)
	app.Put("/api/v1/cart/lines/:id", h.updateLine)
	app.Delete("/api/v1/cart/lines/:id", h.removeLine)
	app.Delete("/api/v1/cart", h.clearCart)
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	app.Post("/api/v1/cart/merge", h.mergeCart)
}

func (h *Handler) getCart(c *fiber.Ctx) error {
	ident, err := identity.FromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	crt, err := h.service.GetOrCreate(c.Context(), ident)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
	return c.JSON(crt)
}

type addLineRequest struct {
	ProductID string  `json:"productId"`
	VariantID *string `json:"variantId,omitempty"`
	Quantity  int     `json:"quantity,omitempty"`
}

func (h *Handler) addLine(c *fiber.Ctx) error {
	payload := new(addLineRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if payload.ProductID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "productId is required"})
	}
	if payload.Quantity == 0 {
		payload.Quantity = 1
	}

	ident, err := identity.FromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	crt, err := h.service.AddLine(c.Context(), ident, payload.ProductID, payload.VariantID, payload.Quantity)
	if err != nil {
		return cartError(c, err)
	}
	return c.JSON(crt)
}

type updateLineRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) updateLine(c *fiber.Ctx) error {
	payload := new(updateLineRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	ident, err := identity.FromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	crt, err := h.service.UpdateLineQuantity(c.Context(), ident, c.Params("id"), payload.Quantity)
	if err != nil {
		return cartError(c, err)
	}
	return c.JSON(crt)
}

func (h *Handler) removeLine(c *fiber.Ctx) error {
	ident, err := identity.FromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	crt, err := h.service.RemoveLine(c.Context(), ident, c.Params("id"))
	if err != nil {
		return cartError(c, err)
	}
	return c.JSON(crt)
}

func (h *Handler) clearCart(c *fiber.Ctx) error {
	ident, err := identity.FromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	if err := h.service.Clear(c.Context(), ident); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type mergeRequest struct {
	SessionToken string `json:"sessionToken"`
}

func (h *Handler) mergeCart(c *fiber.Ctx) error {
	userID, err := identity.UserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	payload := new(mergeRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if payload.SessionToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "sessionToken is required"})
	}

	if err := h.service.Merge(c.Context(), payload.SessionToken, userID); err != nil {
		if errors.Is(err, ErrNotGuestToken) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}

	crt, err := h.service.GetOrCreate(c.Context(), identity.ForUser(userID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
	return c.JSON(crt)
}

func cartError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, product.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "product not found"})
	case errors.Is(err, product.ErrVariantNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "variant not found"})
	case errors.Is(err, ErrLineNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "cart line not found"})
	case errors.Is(err, ErrInvalidQuantity):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "quantity must be positive"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
}
