package order

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cnfroast/storefront-backend/internal/cart"
	"github.com/cnfroast/storefront-backend/internal/identity"
	"github.com/cnfroast/storefront-backend/internal/pricing"
	"github.com/cnfroast/storefront-backend/internal/product"
)

func ptr(s string) *string { return &s }

var testPolicy = pricing.Static{Threshold: 4000, Standard: 500, Express: 900, Rate: 0.08}

type fakeStock struct {
	mu         sync.Mutex
	forgotten  []string
	increments map[string]int
}

func newFakeStock() *fakeStock {
	return &fakeStock{increments: make(map[string]int)}
}

func (f *fakeStock) Forget(ctx context.Context, variantID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forgotten = append(f.forgotten, variantID)
}

func (f *fakeStock) Increment(ctx context.Context, variantID string, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.increments[variantID] += qty
	return nil
}

type fakeNotifier struct {
	mu            sync.Mutex
	confirmations []string
	alerts        []string
	err           error
	done          chan struct{}
}

func newFakeNotifier(err error) *fakeNotifier {
	return &fakeNotifier{err: err, done: make(chan struct{}, 10)}
}

func (f *fakeNotifier) OrderConfirmation(ctx context.Context, ord Order) error {
	f.mu.Lock()
	f.confirmations = append(f.confirmations, ord.Number)
	f.mu.Unlock()
	return f.err
}

func (f *fakeNotifier) AdminAlert(ctx context.Context, ord Order) error {
	f.mu.Lock()
	f.alerts = append(f.alerts, ord.Number)
	f.mu.Unlock()
	f.done <- struct{}{}
	return f.err
}

func (f *fakeNotifier) wait(t *testing.T) {
	t.Helper()
	select {
	case <-f.done:
	case <-time.After(2 * time.Second):
		t.Fatal("notifier was never invoked")
	}
}

type harness struct {
	service  *Service
	repo     *InMemoryRepository
	cartRepo *cart.InMemoryRepository
	cartSvc  *cart.Service
	catalog  *product.InMemoryRepository
	stock    *fakeStock
	notifier *fakeNotifier
}

func newHarness(t *testing.T, seedStock map[string]int) *harness {
	t.Helper()

	catalog := product.NewInMemoryRepository()
	catalog.SeedProduct(product.Product{ID: "prod-A", Name: "House Blend", Slug: "house-blend", Price: 100})
	catalog.SeedProduct(product.Product{ID: "prod-B", Name: "Dark Roast", Slug: "dark-roast", Price: 250})
	catalog.SeedVariant(product.Variant{ID: "var-1", ProductID: "prod-A", Weight: ptr("250g"), Price: 100})
	catalog.SeedVariant(product.Variant{ID: "var-2", ProductID: "prod-B", Weight: ptr("500g"), Price: 250})

	cartRepo := cart.NewInMemoryRepository()
	productSvc := product.NewService(catalog)
	cartSvc := cart.NewService(cartRepo, productSvc)

	repo := NewInMemoryRepository()
	for id, qty := range seedStock {
		repo.Stock[id] = qty
	}
	repo.ClearCart = cartRepo.DeleteLines

	stk := newFakeStock()
	notifier := newFakeNotifier(nil)
	svc := NewService(repo, cartRepo, productSvc, testPolicy, stk, notifier, false)

	return &harness{
		service:  svc,
		repo:     repo,
		cartRepo: cartRepo,
		cartSvc:  cartSvc,
		catalog:  catalog,
		stock:    stk,
		notifier: notifier,
	}
}

func baseRequest() CheckoutRequest {
	return CheckoutRequest{
		CustomerName: "Mina Petros",
		Email:        "mina@example.com",
		Phone:        "555-0100",
		ShippingAddress: Address{
			FullName: "Mina Petros", Line1: "12 Harbor St",
			City: "Portsmouth", PostalCode: "04101", Country: "US",
		},
		PaymentMethod: "card",
	}
}

func TestCheckout_CartFlow(t *testing.T) {
	h := newHarness(t, map[string]int{"var-1": 10})
	ctx := context.Background()
	ident := identity.ForGuest("sess-1")

	if _, err := h.cartSvc.AddLine(ctx, ident, "prod-A", ptr("var-1"), 3); err != nil {
		t.Fatalf("seed cart: %v", err)
	}

	ord, err := h.service.Checkout(ctx, ident, baseRequest())
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	// 3 x 100 under the 4000 threshold: standard shipping plus 8% tax
	if ord.Subtotal != 300 {
		t.Errorf("subtotal: expected 300, got %v", ord.Subtotal)
	}
	if ord.ShippingCost != 500 {
		t.Errorf("shipping: expected 500, got %v", ord.ShippingCost)
	}
	if ord.Tax != 24 {
		t.Errorf("tax: expected 24, got %v", ord.Tax)
	}
	if ord.Total != 824 {
		t.Errorf("total: expected 824, got %v", ord.Total)
	}
	if ord.Status != StatusPending {
		t.Errorf("status: expected pending, got %s", ord.Status)
	}

	// ledger moved and the cart drained inside the same commit
	if h.repo.Stock["var-1"] != 7 {
		t.Errorf("stock: expected 7 remaining, got %d", h.repo.Stock["var-1"])
	}
	if h.repo.Sold["prod-A"] != 3 {
		t.Errorf("sold count: expected 3, got %d", h.repo.Sold["prod-A"])
	}
	c, err := h.cartRepo.GetBySessionKey(ctx, "sess-1")
	if err != nil {
		t.Fatalf("cart after checkout: %v", err)
	}
	if len(c.Lines) != 0 {
		t.Errorf("cart should be empty after checkout, has %d lines", len(c.Lines))
	}

	// cached stock levels are invalidated post-commit
	h.notifier.wait(t)
	h.stock.mu.Lock()
	forgotten := append([]string(nil), h.stock.forgotten...)
	h.stock.mu.Unlock()
	if len(forgotten) != 1 || forgotten[0] != "var-1" {
		t.Errorf("expected cache invalidation for var-1, got %v", forgotten)
	}

	// an opening audit event lands with the system actor
	events, err := h.repo.ListStatusEvents(ctx, ord.ID)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 1 || events[0].To != StatusPending || events[0].ActorType != ActorSystem {
		t.Errorf("unexpected opening event: %+v", events)
	}
}

func TestCheckout_FreeShippingAndExpress(t *testing.T) {
	h := newHarness(t, map[string]int{"var-1": 100})
	ctx := context.Background()
	ident := identity.ForGuest("sess-1")
	h.cartSvc.AddLine(ctx, ident, "prod-A", ptr("var-1"), 45) // 4500 >= 4000

	ord, err := h.service.Checkout(ctx, ident, baseRequest())
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if ord.ShippingCost != 0 {
		t.Errorf("expected free shipping over the threshold, got %v", ord.ShippingCost)
	}

	// express shipping is charged regardless of the threshold
	h.cartSvc.AddLine(ctx, ident, "prod-A", ptr("var-1"), 45)
	req := baseRequest()
	req.ExpressShipping = true
	ord, err = h.service.Checkout(ctx, ident, req)
	if err != nil {
		t.Fatalf("express checkout: %v", err)
	}
	if ord.ShippingCost != 900 {
		t.Errorf("expected express rate 900, got %v", ord.ShippingCost)
	}
}

func TestCheckout_InsufficientStockLeavesCartIntact(t *testing.T) {
	h := newHarness(t, map[string]int{"var-1": 2})
	ctx := context.Background()
	ident := identity.ForGuest("sess-1")
	h.cartSvc.AddLine(ctx, ident, "prod-A", ptr("var-1"), 5)

	_, err := h.service.Checkout(ctx, ident, baseRequest())
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	if h.repo.Stock["var-1"] != 2 {
		t.Errorf("stock should be untouched, got %d", h.repo.Stock["var-1"])
	}
	if h.repo.Sold["prod-A"] != 0 {
		t.Errorf("sold count should be untouched, got %d", h.repo.Sold["prod-A"])
	}
	c, _ := h.cartRepo.GetBySessionKey(ctx, "sess-1")
	if len(c.Lines) != 1 || c.Lines[0].Quantity != 5 {
		t.Errorf("cart should be intact, got %+v", c.Lines)
	}
}

func TestCheckout_ConcurrentBuyersOneUnit(t *testing.T) {
	h := newHarness(t, map[string]int{"var-1": 1})
	ctx := context.Background()
	a := identity.ForGuest("sess-a")
	b := identity.ForGuest("sess-b")
	h.cartSvc.AddLine(ctx, a, "prod-A", ptr("var-1"), 1)
	h.cartSvc.AddLine(ctx, b, "prod-A", ptr("var-1"), 1)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, ident := range []identity.Identity{a, b} {
		wg.Add(1)
		go func(ident identity.Identity) {
			defer wg.Done()
			_, err := h.service.Checkout(ctx, ident, baseRequest())
			results <- err
		}(ident)
	}
	wg.Wait()
	close(results)

	var wins, losses int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrInsufficientStock):
			losses++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || losses != 1 {
		t.Errorf("expected exactly one winner, got %d wins %d losses", wins, losses)
	}
	if h.repo.Stock["var-1"] != 0 {
		t.Errorf("expected zero stock left, got %d", h.repo.Stock["var-1"])
	}
}

func TestCheckout_EmptyCart(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	ident := identity.ForGuest("sess-1")

	if _, err := h.service.Checkout(ctx, ident, baseRequest()); !errors.Is(err, ErrEmptyCart) {
		t.Errorf("no cart: expected ErrEmptyCart, got %v", err)
	}

	h.cartSvc.GetOrCreate(ctx, ident)
	if _, err := h.service.Checkout(ctx, ident, baseRequest()); !errors.Is(err, ErrEmptyCart) {
		t.Errorf("empty cart: expected ErrEmptyCart, got %v", err)
	}
}

func TestCheckout_BuyNowFallback(t *testing.T) {
	h := newHarness(t, map[string]int{"var-1": 5, "var-2": 5})
	ctx := context.Background()
	ident := identity.ForGuest("sess-1")

	// with no cart at all, the explicit item list carries the checkout
	req := baseRequest()
	req.Items = []BuyNowItem{{ProductID: "prod-B", VariantID: ptr("var-2"), Quantity: 2}}

	ord, err := h.service.Checkout(ctx, ident, req)
	if err != nil {
		t.Fatalf("buy-now checkout: %v", err)
	}
	if len(ord.Items) != 1 || ord.Items[0].ProductID != "prod-B" {
		t.Fatalf("unexpected items: %+v", ord.Items)
	}
	if ord.Items[0].UnitPrice != 250 || ord.Subtotal != 500 {
		t.Errorf("expected variant pricing 250 x 2, got %+v", ord.Items[0])
	}

	// a non-empty cart takes priority over the item list
	h.cartSvc.AddLine(ctx, ident, "prod-A", ptr("var-1"), 1)
	ord, err = h.service.Checkout(ctx, ident, req)
	if err != nil {
		t.Fatalf("cart checkout: %v", err)
	}
	if len(ord.Items) != 1 || ord.Items[0].ProductID != "prod-A" {
		t.Errorf("expected the cart line to win, got %+v", ord.Items)
	}
}

func TestCheckout_PaymentFields(t *testing.T) {
	h := newHarness(t, map[string]int{"var-1": 5})
	ctx := context.Background()
	ident := identity.ForGuest("sess-1")
	h.cartSvc.AddLine(ctx, ident, "prod-A", ptr("var-1"), 1)

	req := baseRequest()
	req.AutoCapture = true
	ord, err := h.service.Checkout(ctx, ident, req)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if ord.PaymentStatus == nil || *ord.PaymentStatus != "success" {
		t.Errorf("expected payment success, got %v", ord.PaymentStatus)
	}
	if ord.Status != StatusConfirmed {
		t.Errorf("auto-captured order should open confirmed, got %s", ord.Status)
	}
	if ord.TransactionID == nil || *ord.TransactionID == "" {
		t.Error("expected a transaction id")
	}

	// without auto-capture both payment and order stay pending
	h.cartSvc.AddLine(ctx, ident, "prod-A", ptr("var-1"), 1)
	ord, err = h.service.Checkout(ctx, ident, baseRequest())
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if ord.PaymentStatus == nil || *ord.PaymentStatus != "pending" {
		t.Errorf("expected payment pending, got %v", ord.PaymentStatus)
	}
	if ord.Status != StatusPending {
		t.Errorf("expected pending order, got %s", ord.Status)
	}
	if ord.TransactionID == nil {
		t.Error("transaction id should be issued regardless of capture")
	}
}

func TestCheckout_NotifierFailureDoesNotFailOrder(t *testing.T) {
	h := newHarness(t, map[string]int{"var-1": 5})
	h.notifier.err = errors.New("smtp down")
	ctx := context.Background()
	ident := identity.ForGuest("sess-1")
	h.cartSvc.AddLine(ctx, ident, "prod-A", ptr("var-1"), 1)

	ord, err := h.service.Checkout(ctx, ident, baseRequest())
	if err != nil {
		t.Fatalf("checkout should succeed despite notifier failure: %v", err)
	}

	h.notifier.wait(t)
	if len(h.notifier.confirmations) != 1 || h.notifier.confirmations[0] != ord.Number {
		t.Errorf("confirmation not attempted: %v", h.notifier.confirmations)
	}
}

type failingEventRepo struct {
	*InMemoryRepository
}

func (r *failingEventRepo) AppendStatusEvent(ctx context.Context, ev StatusEvent) error {
	return errors.New("audit store down")
}

func TestStatusEventFailureIsAbsorbed(t *testing.T) {
	h := newHarness(t, map[string]int{"var-1": 5})
	repo := &failingEventRepo{h.repo}
	svc := NewService(repo, h.cartRepo, product.NewService(h.catalog), testPolicy, h.stock, nil, false)
	ctx := context.Background()
	ident := identity.ForGuest("sess-1")
	h.cartSvc.AddLine(ctx, ident, "prod-A", ptr("var-1"), 1)

	ord, err := svc.Checkout(ctx, ident, baseRequest())
	if err != nil {
		t.Fatalf("checkout should survive audit failure: %v", err)
	}

	if _, err := svc.UpdateStatus(ctx, ord.ID, "confirmed", ActorAdmin, nil); err != nil {
		t.Fatalf("status update should survive audit failure: %v", err)
	}
	got, _ := repo.GetByID(ctx, ord.ID)
	if got.Status != StatusConfirmed {
		t.Errorf("expected confirmed, got %s", got.Status)
	}
}

func TestUpdateStatus(t *testing.T) {
	h := newHarness(t, map[string]int{"var-1": 5})
	ctx := context.Background()
	ident := identity.ForGuest("sess-1")
	h.cartSvc.AddLine(ctx, ident, "prod-A", ptr("var-1"), 2)
	ord, _ := h.service.Checkout(ctx, ident, baseRequest())

	if _, err := h.service.UpdateStatus(ctx, ord.ID, "confirmed", ActorAdmin, nil); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	events, _ := h.repo.ListStatusEvents(ctx, ord.ID)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	last := events[1]
	if last.From == nil || *last.From != StatusPending || last.To != StatusConfirmed || last.ActorType != ActorAdmin {
		t.Errorf("unexpected audit event: %+v", last)
	}

	if _, err := h.service.UpdateStatus(ctx, ord.ID, "refunded", ActorAdmin, nil); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}

	if _, err := h.service.UpdateStatus(ctx, ord.ID, "delivered", ActorAdmin, nil); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if _, err := h.service.UpdateStatus(ctx, ord.ID, "shipped", ActorAdmin, nil); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("terminal order accepted a transition: %v", err)
	}
}

func TestUpdateStatus_CancelRestocks(t *testing.T) {
	h := newHarness(t, map[string]int{"var-1": 5})
	ctx := context.Background()
	ident := identity.ForGuest("sess-1")
	h.cartSvc.AddLine(ctx, ident, "prod-A", ptr("var-1"), 3)
	ord, _ := h.service.Checkout(ctx, ident, baseRequest())

	if _, err := h.service.UpdateStatus(ctx, ord.ID, "cancelled", ActorAdmin, nil); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	h.stock.mu.Lock()
	defer h.stock.mu.Unlock()
	if h.stock.increments["var-1"] != 3 {
		t.Errorf("expected 3 units restocked, got %d", h.stock.increments["var-1"])
	}
}

func TestOrderSnapshotSurvivesCatalogEdit(t *testing.T) {
	h := newHarness(t, map[string]int{"var-1": 5})
	ctx := context.Background()
	ident := identity.ForGuest("sess-1")
	h.cartSvc.AddLine(ctx, ident, "prod-A", ptr("var-1"), 1)
	ord, _ := h.service.Checkout(ctx, ident, baseRequest())

	h.catalog.SeedProduct(product.Product{ID: "prod-A", Name: "House Blend v2", Slug: "house-blend", Price: 175})
	h.catalog.SeedVariant(product.Variant{ID: "var-1", ProductID: "prod-A", Weight: ptr("250g"), Price: 175})

	got, err := h.service.GetByID(ctx, ord.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Items[0].UnitPrice != 100 || got.Items[0].ProductName != "House Blend" {
		t.Errorf("order snapshot moved after catalog edit: %+v", got.Items[0])
	}
}

func TestGetForIdentity_Ownership(t *testing.T) {
	h := newHarness(t, map[string]int{"var-1": 5})
	ctx := context.Background()
	owner := identity.ForUser("user-1")
	h.cartSvc.AddLine(ctx, owner, "prod-A", ptr("var-1"), 1)
	ord, _ := h.service.Checkout(ctx, owner, baseRequest())

	if _, err := h.service.GetForIdentity(ctx, owner, ord.Number); err != nil {
		t.Errorf("owner lookup failed: %v", err)
	}
	if _, err := h.service.GetForIdentity(ctx, identity.ForUser("user-2"), ord.Number); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign user lookup should be not found, got %v", err)
	}
	if _, err := h.service.GetForIdentity(ctx, identity.ForGuest("sess-x"), ord.Number); !errors.Is(err, ErrNotFound) {
		t.Errorf("guest lookup of user order should be not found, got %v", err)
	}
}
