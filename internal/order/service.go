package order

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/cnfroast/storefront-backend/internal/cart"
	"github.com/cnfroast/storefront-backend/internal/identity"
	"github.com/cnfroast/storefront-backend/internal/pricing"
	"github.com/cnfroast/storefront-backend/internal/product"
)

// Notifier delivers order emails. Delivery is fire-and-forget: the checkout
// response never waits on it and failures are logged, not returned.
type Notifier interface {
	OrderConfirmation(ctx context.Context, ord Order) error
	AdminAlert(ctx context.Context, ord Order) error
}

// CartSource is the slice of the cart service checkout reads from.
type CartSource interface {
	GetBySessionKey(ctx context.Context, sessionKey string) (cart.Cart, error)
}

// Catalog prices and snapshots buy-now items that bypass the cart.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (product.Product, error)
	GetVariant(ctx context.Context, id string) (product.Variant, error)
	ListImages(ctx context.Context, productID string) ([]product.Image, error)
}

// StockControl is the slice of the stock service the order side needs:
// cache invalidation after checkout and credits on cancellation.
type StockControl interface {
	Forget(ctx context.Context, variantID string)
	Increment(ctx context.Context, variantID string, qty int) error
}

// Service owns checkout and the order status machine.
type Service struct {
	repo       Repository
	carts      CartSource
	catalog    Catalog
	policy     pricing.Policy
	stock      StockControl // may be nil
	notifier   Notifier     // may be nil
	production bool
	now        func() time.Time
}

func NewService(repo Repository, carts CartSource, catalog Catalog, policy pricing.Policy, stock StockControl, notifier Notifier, production bool) *Service {
	return &Service{
		repo:       repo,
		carts:      carts,
		catalog:    catalog,
		policy:     policy,
		stock:      stock,
		notifier:   notifier,
		production: production,
		now:        time.Now,
	}
}

// BuyNowItem lets a checkout request name items directly instead of draining
// the caller's cart.
type BuyNowItem struct {
	ProductID string  `json:"productId"`
	VariantID *string `json:"variantId,omitempty"`
	Quantity  int     `json:"quantity"`
}

type CheckoutRequest struct {
	CustomerName    string       `json:"customerName"`
	Email           string       `json:"email"`
	Phone           string       `json:"phone"`
	ShippingAddress Address      `json:"shippingAddress"`
	BillingAddress  *Address     `json:"billingAddress,omitempty"`
	PaymentMethod   string       `json:"paymentMethod"`
	ExpressShipping bool         `json:"expressShipping"`
	AutoCapture     bool         `json:"autoCapture"`
	Items           []BuyNowItem `json:"items,omitempty"`
}

// Checkout turns the caller's cart (or the request's buy-now items) into an
// order. All writes land in one transaction; if any item's stock cannot cover
// its quantity the whole checkout fails with ErrInsufficientStock and the
// cart is left intact.
func (s *Service) Checkout(ctx context.Context, ident identity.Identity, req CheckoutRequest) (Order, error) {
	items, clearCartID, err := s.resolveItems(ctx, ident, req)
	if err != nil {
		return Order{}, err
	}
	if len(items) == 0 {
		return Order{}, ErrEmptyCart
	}

	subtotal := 0.0
	for i := range items {
		items[i].Total = round2(items[i].UnitPrice * float64(items[i].Quantity))
		subtotal += items[i].Total
	}
	subtotal = round2(subtotal)

	// free shipping applies to the standard tier only
	shipping := 0.0
	if req.ExpressShipping {
		shipping = s.policy.ExpressShippingCost(ctx)
	} else if subtotal < s.policy.FreeShippingThreshold(ctx) {
		shipping = s.policy.StandardShippingCost(ctx)
	}
	tax := round2(subtotal * s.policy.TaxRate(ctx))
	total := round2(subtotal + shipping + tax)

	ord := Order{
		ID:              uuid.NewString(),
		Number:          GenerateNumber(s.now(), s.production),
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.Email,
		CustomerPhone:   req.Phone,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		Status:          StatusPending,
		Subtotal:        subtotal,
		ShippingCost:    shipping,
		Tax:             tax,
		Total:           total,
		PaymentMethod:   req.PaymentMethod,
		Items:           items,
	}
	sessionKey := ident.SessionKey
	ord.SessionKey = &sessionKey
	if !ident.IsGuest() {
		uid := ident.UserID
		ord.UserID = &uid
	}

	// stand-in for a real gateway capture: a synthetic transaction id is
	// always issued; auto-capture settles immediately and confirms the order
	txn := fmt.Sprintf("txn_%d_%04d", s.now().UnixMilli(), rand.Intn(10000))
	ord.TransactionID = &txn
	paymentStatus := "pending"
	if req.AutoCapture {
		paymentStatus = "success"
		ord.Status = StatusConfirmed
	}
	ord.PaymentStatus = &paymentStatus

	created, err := s.repo.CreateOrder(ctx, ord, clearCartID)
	if err != nil {
		return Order{}, err
	}

	s.afterCheckout(ctx, created)
	return created, nil
}

// resolveItems builds the order lines from the caller's cart; an empty or
// missing cart falls back to the request's explicit item list (the buy-now
// flow) when one is supplied.
func (s *Service) resolveItems(ctx context.Context, ident identity.Identity, req CheckoutRequest) ([]Item, string, error) {
	c, err := s.carts.GetBySessionKey(ctx, ident.SessionKey)
	if err != nil && err != cart.ErrNotFound {
		return nil, "", err
	}
	if err == cart.ErrNotFound || len(c.Lines) == 0 {
		if len(req.Items) == 0 {
			return nil, "", ErrEmptyCart
		}
		items, err := s.buildBuyNowItems(ctx, req.Items)
		return items, "", err
	}

	// slugs are not carried on cart lines; resolve them once per product
	slugs := make(map[string]string)
	items := make([]Item, 0, len(c.Lines))
	for _, l := range c.Lines {
		slug, ok := slugs[l.ProductID]
		if !ok {
			if p, err := s.catalog.GetProduct(ctx, l.ProductID); err == nil {
				slug = p.Slug
			}
			slugs[l.ProductID] = slug
		}
		items = append(items, Item{
			ID:            uuid.NewString(),
			ProductID:     l.ProductID,
			VariantID:     l.VariantID,
			ProductName:   l.ProductName,
			ProductSlug:   slug,
			VariantWeight: l.VariantWeight,
			Quantity:      l.Quantity,
			UnitPrice:     l.UnitPrice,
			ImageURL:      l.ImageURL,
		})
	}
	return items, c.ID, nil
}

func (s *Service) buildBuyNowItems(ctx context.Context, reqs []BuyNowItem) ([]Item, error) {
	items := make([]Item, 0, len(reqs))
	for _, bn := range reqs {
		if bn.Quantity < 1 {
			continue
		}
		p, err := s.catalog.GetProduct(ctx, bn.ProductID)
		if err != nil {
			return nil, err
		}

		unitPrice := p.Price
		var weight *string
		if bn.VariantID != nil {
			v, err := s.catalog.GetVariant(ctx, *bn.VariantID)
			if err != nil {
				return nil, err
			}
			unitPrice = v.Price
			weight = v.Weight
		}

		images, err := s.catalog.ListImages(ctx, bn.ProductID)
		if err != nil {
			fmt.Printf("[order] image lookup failed for product %s: %v\n", bn.ProductID, err)
			images = nil
		}

		items = append(items, Item{
			ID:            uuid.NewString(),
			ProductID:     bn.ProductID,
			VariantID:     bn.VariantID,
			ProductName:   p.Name,
			ProductSlug:   p.Slug,
			VariantWeight: weight,
			Quantity:      bn.Quantity,
			UnitPrice:     unitPrice,
			ImageURL:      product.ResolveDisplayImage(images, bn.VariantID),
		})
	}
	return items, nil
}

// afterCheckout handles everything the committed transaction does not block
// on: cache invalidation, the audit trail, and customer/admin emails.
func (s *Service) afterCheckout(ctx context.Context, ord Order) {
	if s.stock != nil {
		for _, it := range ord.Items {
			if it.VariantID != nil {
				s.stock.Forget(ctx, *it.VariantID)
			}
		}
	}

	ev := StatusEvent{
		ID:        uuid.NewString(),
		OrderID:   ord.ID,
		To:        ord.Status,
		ActorType: ActorSystem,
	}
	if err := s.repo.AppendStatusEvent(ctx, ev); err != nil {
		fmt.Printf("[order] status event write failed for %s: %v\n", ord.Number, err)
	}

	if s.notifier != nil {
		go func(ord Order) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.notifier.OrderConfirmation(ctx, ord); err != nil {
				fmt.Printf("[order] confirmation email failed for %s: %v\n", ord.Number, err)
			}
			if err := s.notifier.AdminAlert(ctx, ord); err != nil {
				fmt.Printf("[order] admin alert failed for %s: %v\n", ord.Number, err)
			}
		}(ord)
	}
}

// GetForIdentity returns an order by number only when the caller owns it:
// matching user id for users, matching session key for guests.
func (s *Service) GetForIdentity(ctx context.Context, ident identity.Identity, number string) (Order, error) {
	ord, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		return Order{}, err
	}

	if !ident.IsGuest() {
		if ord.UserID != nil && *ord.UserID == ident.UserID {
			return ord, nil
		}
	} else if ord.SessionKey != nil && *ord.SessionKey == ident.SessionKey {
		return ord, nil
	}
	return Order{}, ErrNotFound
}

func (s *Service) ListForIdentity(ctx context.Context, ident identity.Identity) ([]Order, error) {
	if ident.IsGuest() {
		return s.repo.ListBySessionKey(ctx, ident.SessionKey)
	}
	return s.repo.ListByUser(ctx, ident.UserID)
}

func (s *Service) GetByID(ctx context.Context, id string) (Order, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListAll(ctx context.Context) ([]Order, error) {
	return s.repo.ListAll(ctx)
}

func (s *Service) StatusHistory(ctx context.Context, orderID string) ([]StatusEvent, error) {
	if _, err := s.repo.GetByID(ctx, orderID); err != nil {
		return nil, err
	}
	return s.repo.ListStatusEvents(ctx, orderID)
}

// UpdateStatus moves an order through the status machine. The audit event is
// best-effort; a failed write never rolls back the transition. Cancellation
// credits item quantities back to the stock ledger.
func (s *Service) UpdateStatus(ctx context.Context, orderID, rawStatus, actorType string, note *string) (Order, error) {
	next, err := ParseStatus(rawStatus)
	if err != nil {
		return Order{}, err
	}

	ord, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if !ord.Status.CanTransitionTo(next) {
		return Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, ord.Status, next)
	}

	if err := s.repo.UpdateStatus(ctx, orderID, next); err != nil {
		return Order{}, err
	}

	from := ord.Status
	ev := StatusEvent{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		From:      &from,
		To:        next,
		ActorType: actorType,
		Note:      note,
	}
	if err := s.repo.AppendStatusEvent(ctx, ev); err != nil {
		fmt.Printf("[order] status event write failed for %s: %v\n", ord.Number, err)
	}

	if next == StatusCancelled && s.stock != nil {
		for _, it := range ord.Items {
			if it.VariantID == nil {
				continue
			}
			if err := s.stock.Increment(ctx, *it.VariantID, it.Quantity); err != nil {
				fmt.Printf("[order] restock failed for variant %s: %v\n", *it.VariantID, err)
			}
		}
	}

	ord.Status = next
	return ord, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
