package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cnfroast/storefront-backend/internal/identity"
	"github.com/cnfroast/storefront-backend/internal/product"
)

// Catalog is the slice of the product service the cart needs to validate
// lines and snapshot price/image at add time.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (product.Product, error)
	GetVariant(ctx context.Context, id string) (product.Variant, error)
	ListImages(ctx context.Context, productID string) ([]product.Image, error)
}

// Service orchestrates cart operations for guests and users.
type Service struct {
	repo    Repository
	catalog Catalog
}

func NewService(repo Repository, catalog Catalog) *Service {
	return &Service{repo: repo, catalog: catalog}
}

// GetOrCreate fetches the identity's cart, creating it on first touch.
// Guest carts get a 7-day expiry; a cart looked up under a user key gets
// claimed for that user and loses any residual expiry.
func (s *Service) GetOrCreate(ctx context.Context, ident identity.Identity) (Cart, error) {
	c, err := s.repo.GetBySessionKey(ctx, ident.SessionKey)
	if err == ErrNotFound {
		return s.createFor(ctx, ident)
	}
	if err != nil {
		return Cart{}, err
	}

	if !ident.IsGuest() && (c.ExpiresAt != nil || c.UserID == nil) {
		if err := s.repo.BindToUser(ctx, c.ID, ident.UserID); err != nil {
			return Cart{}, err
		}
		uid := ident.UserID
		c.UserID = &uid
		c.ExpiresAt = nil
	}

	return c, nil
}

func (s *Service) createFor(ctx context.Context, ident identity.Identity) (Cart, error) {
	c := Cart{
		ID:         uuid.NewString(),
		SessionKey: ident.SessionKey,
	}
	if ident.IsGuest() {
		expires := time.Now().Add(GuestCartTTL)
		c.ExpiresAt = &expires
	} else {
		uid := ident.UserID
		c.UserID = &uid
	}
	return s.repo.Create(ctx, c)
}

// AddLine validates the product (and variant), snapshots price and display
// image, and either increments an existing (product, variant) line or
// inserts a new one.
func (s *Service) AddLine(ctx context.Context, ident identity.Identity, productID string, variantID *string, qty int) (Cart, error) {
	if qty < 1 {
		return Cart{}, ErrInvalidQuantity
	}

	c, err := s.GetOrCreate(ctx, ident)
	if err != nil {
		return Cart{}, err
	}

	p, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return Cart{}, err
	}

	unitPrice := p.Price
	var variantWeight *string
	if variantID != nil {
		v, err := s.catalog.GetVariant(ctx, *variantID)
		if err != nil {
			return Cart{}, err
		}
		unitPrice = v.Price
		variantWeight = v.Weight
	}

	// image lookup is best-effort; a line without an image is fine
	images, err := s.catalog.ListImages(ctx, productID)
	if err != nil {
		fmt.Printf("[cart] image lookup failed for product %s: %v\n", productID, err)
		images = nil
	}
	imageURL := product.ResolveDisplayImage(images, variantID)

	if existing := c.FindLine(productID, variantID); existing != nil {
		if err := s.repo.UpdateLineQuantity(ctx, existing.ID, existing.Quantity+qty); err != nil {
			return Cart{}, err
		}
	} else {
		line := Line{
			ID:            uuid.NewString(),
			CartID:        c.ID,
			ProductID:     productID,
			VariantID:     variantID,
			ProductName:   p.Name,
			VariantWeight: variantWeight,
			Quantity:      qty,
			UnitPrice:     unitPrice,
			ImageURL:      imageURL,
		}
		if _, err := s.repo.InsertLine(ctx, line); err != nil {
			return Cart{}, err
		}
	}

	return s.repo.GetBySessionKey(ctx, ident.SessionKey)
}

// UpdateLineQuantity overwrites a line's quantity; zero or less deletes the
// line. The line must belong to the identity's cart.
func (s *Service) UpdateLineQuantity(ctx context.Context, ident identity.Identity, lineID string, qty int) (Cart, error) {
	c, err := s.GetOrCreate(ctx, ident)
	if err != nil {
		return Cart{}, err
	}

	if !c.ownsLine(lineID) {
		return Cart{}, ErrLineNotFound
	}

	if qty <= 0 {
		err = s.repo.DeleteLine(ctx, lineID)
	} else {
		err = s.repo.UpdateLineQuantity(ctx, lineID, qty)
	}
	if err != nil {
		return Cart{}, err
	}

	return s.repo.GetBySessionKey(ctx, ident.SessionKey)
}

func (s *Service) RemoveLine(ctx context.Context, ident identity.Identity, lineID string) (Cart, error) {
	c, err := s.GetOrCreate(ctx, ident)
	if err != nil {
		return Cart{}, err
	}

	if !c.ownsLine(lineID) {
		return Cart{}, ErrLineNotFound
	}

	if err := s.repo.DeleteLine(ctx, lineID); err != nil {
		return Cart{}, err
	}
	return s.repo.GetBySessionKey(ctx, ident.SessionKey)
}

// Clear removes every line but keeps the cart record.
func (s *Service) Clear(ctx context.Context, ident identity.Identity) error {
	c, err := s.repo.GetBySessionKey(ctx, ident.SessionKey)
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	return s.repo.DeleteLines(ctx, c.ID)
}

// Merge folds a guest cart into the user's cart at login. No-op when the
// guest cart is missing or empty. On a (product, variant) conflict the guest
// quantity replaces the user quantity — last write wins by the guest, the
// same policy the storefront has always had; see the merge tests.
func (s *Service) Merge(ctx context.Context, guestToken, userID string) error {
	// only guest carts are claimable; a key in the user-bound namespace is
	// someone's cart already
	if identity.IsUserKey(guestToken) {
		return ErrNotGuestToken
	}

	guest, err := s.repo.GetBySessionKey(ctx, guestToken)
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	if len(guest.Lines) == 0 {
		return nil
	}

	userIdent := identity.ForUser(userID)
	if _, err := s.GetOrCreate(ctx, userIdent); err != nil {
		return err
	}

	return s.repo.Merge(ctx, guestToken, userIdent.SessionKey)
}

func (c *Cart) ownsLine(lineID string) bool {
	for i := range c.Lines {
		if c.Lines[i].ID == lineID {
			return true
		}
	}
	return false
}
