package product

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
	app.Get("/api/v1/products", h.listProducts)
	app.Get("/api/v1/products/:id", h.getProduct)
}

type productCard struct {
	Product
	ImageURL *string `json:"imageUrl,omitempty"`
}

func (h *Handler) listProducts(c *fiber.Ctx) error {
	products, err := h.service.List(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}

	images, err := h.service.CardImages(c.Context(), products)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}

	cards := make([]productCard, 0, len(products))
	for _, p := range products {
		cards = append(cards, productCard{Product: p, ImageURL: images[p.ID]})
	}
	return c.JSON(cards)
}

type productDetail struct {
	Product
	Variants []Variant `json:"variants"`
	Images   []Image   `json:"images"`
}

func (h *Handler) getProduct(c *fiber.Ctx) error {
	id := c.Params("id")

	p, err := h.service.GetProduct(c.Context(), id)
	if errors.Is(err, ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "product not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}

	variants, err := h.service.ListVariants(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
	images, err := h.service.ListImages(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}

	return c.JSON(productDetail{Product: p, Variants: variants, Images: images})
}
