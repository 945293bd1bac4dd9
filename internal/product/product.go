package product

import "time"

// Image types recognised by the display-image fallback chain.
const ImageTypeHeroCard = "hero-card"

// Product is a catalog entry. Price is the base price used when a line has
// no variant; SoldCount is a running counter incremented at checkout.
type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Price     float64   `json:"price"`
	SoldCount int       `json:"soldCount"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Variant is a purchasable variation of a product, e.g. a 250g or 1kg bag.
// Stock is tracked per variant in the stock ledger, not here.
type Variant struct {
	ID        string  `json:"id"`
	ProductID string  `json:"productId"`
	Weight    *string `json:"weight,omitempty"`
	Price     float64 `json:"price"`
}

// Image is a candidate display image. VariantID binds it to one variant;
// a nil VariantID makes it product-level.
type Image struct {
	ID        string  `json:"id"`
	ProductID string  `json:"productId"`
	VariantID *string `json:"variantId,omitempty"`
	Type      string  `json:"imageType"`
	URL       string  `json:"imageUrl"`
	Position  int     `json:"position"`
}

// ResolveDisplayImage picks the image snapshotted onto a cart line, in strict
// fallback order: variant hero-card, product hero-card, any variant image,
// first product image. Returns nil when the product has no images.
func ResolveDisplayImage(images []Image, variantID *string) *string {
	if len(images) == 0 {
		return nil
	}

	if variantID != nil {
		for _, img := range images {
			if img.VariantID != nil && *img.VariantID == *variantID && img.Type == ImageTypeHeroCard {
				return &img.URL
			}
		}
	}

	for _, img := range images {
		if img.VariantID == nil && img.Type == ImageTypeHeroCard {
			return &img.URL
		}
	}

	if variantID != nil {
		for _, img := range images {
			if img.VariantID != nil && *img.VariantID == *variantID {
				return &img.URL
			}
		}
	}

	return &images[0].URL
}
