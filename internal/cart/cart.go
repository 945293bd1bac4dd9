package cart

import (
	"errors"
	"time"
)

// GuestCartTTL is how long an anonymous cart survives without being claimed.
const GuestCartTTL = 7 * 24 * time.Hour

var (
	ErrNotFound        = errors.New("cart not found")
	ErrLineNotFound    = errors.New("cart line not found")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrNotGuestToken   = errors.New("merge requires a guest session token")
)

// Cart holds the pending purchase for one identity. Guest carts expire;
// once a cart is claimed by a user it never expires and never changes owner
// again.
type Cart struct {
	ID         string     `json:"id"`
	SessionKey string     `json:"sessionKey"`
	UserID     *string    `json:"userId,omitempty"`
	Lines      []Line     `json:"lines"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Line is one product/variant entry. UnitPrice and ImageURL are snapshots
// taken when the line was added; catalog edits after that do not move them.
type Line struct {
	ID            string    `json:"id"`
	CartID        string    `json:"cartId"`
	ProductID     string    `json:"productId"`
	VariantID     *string   `json:"variantId,omitempty"`
	ProductName   string    `json:"productName"`
	VariantWeight *string   `json:"variantWeight,omitempty"`
	Quantity      int       `json:"quantity"`
	UnitPrice     float64   `json:"unitPrice"`
	ImageURL      *string   `json:"imageUrl,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// FindLine returns the line for a (product, variant) pair, or nil.
func (c *Cart) FindLine(productID string, variantID *string) *Line {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID && sameVariant(c.Lines[i].VariantID, variantID) {
			return &c.Lines[i]
		}
	}
	return nil
}

func sameVariant(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
