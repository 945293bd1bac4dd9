package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/cnfroast/storefront-backend/internal/identity"
	"github.com/cnfroast/storefront-backend/internal/product"
)

func ptr(s string) *string { return &s }

func newTestCatalog() *product.InMemoryRepository {
	repo := product.NewInMemoryRepository()
	repo.SeedProduct(product.Product{ID: "prod-A", Name: "House Blend", Slug: "house-blend", Price: 100})
	repo.SeedProduct(product.Product{ID: "prod-B", Name: "Dark Roast", Slug: "dark-roast", Price: 250})
	repo.SeedProduct(product.Product{ID: "prod-C", Name: "Filter Paper", Slug: "filter-paper", Price: 40})
	repo.SeedVariant(product.Variant{ID: "var-A-250", ProductID: "prod-A", Weight: ptr("250g"), Price: 100})
	repo.SeedVariant(product.Variant{ID: "var-A-1kg", ProductID: "prod-A", Weight: ptr("1kg"), Price: 320})
	repo.SeedImage(product.Image{ID: "img-1", ProductID: "prod-A", URL: "/img/house-hero.jpg", Type: product.ImageTypeHeroCard})
	repo.SeedImage(product.Image{ID: "img-2", ProductID: "prod-A", VariantID: ptr("var-A-1kg"), URL: "/img/house-1kg.jpg", Type: product.ImageTypeHeroCard})
	return repo
}

func newTestService() (*Service, *InMemoryRepository) {
	repo := NewInMemoryRepository()
	svc := NewService(repo, product.NewService(newTestCatalog()))
	return svc, repo
}

func TestGetOrCreate_GuestExpiry(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	guest, err := svc.GetOrCreate(ctx, identity.ForGuest("sess-1"))
	if err != nil {
		t.Fatalf("guest cart: %v", err)
	}
	if guest.ExpiresAt == nil {
		t.Error("guest cart should carry an expiry")
	}

	user, err := svc.GetOrCreate(ctx, identity.ForUser("user-1"))
	if err != nil {
		t.Fatalf("user cart: %v", err)
	}
	if user.ExpiresAt != nil {
		t.Error("user cart should not expire")
	}
	if user.UserID == nil || *user.UserID != "user-1" {
		t.Errorf("user cart owner not set: %+v", user)
	}
}

func TestAddLine_IdempotentIncrement(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	ident := identity.ForGuest("sess-1")

	if _, err := svc.AddLine(ctx, ident, "prod-A", ptr("var-A-250"), 2); err != nil {
		t.Fatalf("first add: %v", err)
	}
	c, err := svc.AddLine(ctx, ident, "prod-A", ptr("var-A-250"), 3)
	if err != nil {
		t.Fatalf("second add: %v", err)
	}

	if len(c.Lines) != 1 {
		t.Fatalf("expected one line, got %d", len(c.Lines))
	}
	if c.Lines[0].Quantity != 5 {
		t.Errorf("expected quantity 5, got %d", c.Lines[0].Quantity)
	}
}

func TestAddLine_DistinctVariantsAreSeparateLines(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	ident := identity.ForGuest("sess-1")

	svc.AddLine(ctx, ident, "prod-A", ptr("var-A-250"), 1)
	svc.AddLine(ctx, ident, "prod-A", ptr("var-A-1kg"), 1)
	c, err := svc.AddLine(ctx, ident, "prod-A", nil, 1)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(c.Lines) != 3 {
		t.Fatalf("expected three lines, got %d", len(c.Lines))
	}
}

func TestAddLine_SnapshotsPriceAndImage(t *testing.T) {
	catalog := newTestCatalog()
	repo := NewInMemoryRepository()
	svc := NewService(repo, product.NewService(catalog))
	ctx := context.Background()
	ident := identity.ForGuest("sess-1")

	c, err := svc.AddLine(ctx, ident, "prod-A", ptr("var-A-1kg"), 1)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	line := c.Lines[0]
	if line.UnitPrice != 320 {
		t.Errorf("expected variant price 320, got %v", line.UnitPrice)
	}
	if line.VariantWeight == nil || *line.VariantWeight != "1kg" {
		t.Errorf("expected weight label 1kg, got %v", line.VariantWeight)
	}
	if line.ImageURL == nil || *line.ImageURL != "/img/house-1kg.jpg" {
		t.Errorf("expected variant hero image, got %v", line.ImageURL)
	}

	// catalog edits after the add do not move the snapshot
	catalog.SeedVariant(product.Variant{ID: "var-A-1kg", ProductID: "prod-A", Weight: ptr("1kg"), Price: 999})
	c, _ = svc.GetOrCreate(ctx, ident)
	if c.Lines[0].UnitPrice != 320 {
		t.Errorf("price snapshot moved after catalog edit: %v", c.Lines[0].UnitPrice)
	}
}

func TestAddLine_UnknownProductOrVariant(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	ident := identity.ForGuest("sess-1")

	if _, err := svc.AddLine(ctx, ident, "prod-missing", nil, 1); !errors.Is(err, product.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.AddLine(ctx, ident, "prod-A", ptr("var-missing"), 1); !errors.Is(err, product.ErrVariantNotFound) {
		t.Errorf("expected ErrVariantNotFound, got %v", err)
	}
	if _, err := svc.AddLine(ctx, ident, "prod-A", nil, 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("expected ErrInvalidQuantity, got %v", err)
	}
}

func TestUpdateLineQuantity(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	ident := identity.ForGuest("sess-1")

	c, _ := svc.AddLine(ctx, ident, "prod-A", nil, 2)
	lineID := c.Lines[0].ID

	c, err := svc.UpdateLineQuantity(ctx, ident, lineID, 7)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if c.Lines[0].Quantity != 7 {
		t.Errorf("expected quantity 7, got %d", c.Lines[0].Quantity)
	}

	// zero deletes the line
	c, err = svc.UpdateLineQuantity(ctx, ident, lineID, 0)
	if err != nil {
		t.Fatalf("update to zero: %v", err)
	}
	if len(c.Lines) != 0 {
		t.Errorf("expected empty cart, got %d lines", len(c.Lines))
	}

	// a line from someone else's cart is not found
	other, _ := svc.AddLine(ctx, identity.ForGuest("sess-2"), "prod-B", nil, 1)
	if _, err := svc.UpdateLineQuantity(ctx, ident, other.Lines[0].ID, 3); !errors.Is(err, ErrLineNotFound) {
		t.Errorf("expected ErrLineNotFound, got %v", err)
	}
}

func TestClear_KeepsCartRecord(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	ident := identity.ForGuest("sess-1")

	svc.AddLine(ctx, ident, "prod-A", nil, 2)
	if err := svc.Clear(ctx, ident); err != nil {
		t.Fatalf("clear: %v", err)
	}

	c, err := repo.GetBySessionKey(ctx, "sess-1")
	if err != nil {
		t.Fatalf("cart record should survive clear: %v", err)
	}
	if len(c.Lines) != 0 {
		t.Errorf("expected no lines, got %d", len(c.Lines))
	}
}

func TestMerge_GuestQuantityWins(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	guest := identity.ForGuest("sess-1")
	user := identity.ForUser("user-1")

	// guest cart {A:2, B:1}, user cart {A:1, C:3}
	svc.AddLine(ctx, guest, "prod-A", nil, 2)
	svc.AddLine(ctx, guest, "prod-B", nil, 1)
	svc.AddLine(ctx, user, "prod-A", nil, 1)
	svc.AddLine(ctx, user, "prod-C", nil, 3)

	if err := svc.Merge(ctx, "sess-1", "user-1"); err != nil {
		t.Fatalf("merge: %v", err)
	}

	merged, err := repo.GetBySessionKey(ctx, user.SessionKey)
	if err != nil {
		t.Fatalf("user cart after merge: %v", err)
	}

	want := map[string]int{"prod-A": 2, "prod-B": 1, "prod-C": 3}
	if len(merged.Lines) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(merged.Lines))
	}
	for _, l := range merged.Lines {
		if want[l.ProductID] != l.Quantity {
			t.Errorf("product %s: expected quantity %d, got %d", l.ProductID, want[l.ProductID], l.Quantity)
		}
	}

	// guest cart is gone, not just emptied
	if _, err := repo.GetBySessionKey(ctx, "sess-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected guest cart deleted, got %v", err)
	}
}

func TestMerge_RejectsUserBoundToken(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	victim := identity.ForUser("victim")

	svc.AddLine(ctx, victim, "prod-A", nil, 2)

	// a caller must not be able to claim another user's cart by passing
	// its user-bound session key as the guest token
	if err := svc.Merge(ctx, victim.SessionKey, "attacker"); !errors.Is(err, ErrNotGuestToken) {
		t.Fatalf("expected ErrNotGuestToken, got %v", err)
	}

	c, err := repo.GetBySessionKey(ctx, victim.SessionKey)
	if err != nil {
		t.Fatalf("victim cart after rejected merge: %v", err)
	}
	if len(c.Lines) != 1 || c.Lines[0].Quantity != 2 {
		t.Errorf("victim cart should be untouched, got %+v", c.Lines)
	}
	if _, err := repo.GetBySessionKey(ctx, identity.ForUser("attacker").SessionKey); !errors.Is(err, ErrNotFound) {
		t.Errorf("no cart should be created for the caller, got %v", err)
	}
}

func TestMerge_NoGuestCartIsNoop(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	if err := svc.Merge(ctx, "sess-none", "user-1"); err != nil {
		t.Fatalf("merge without guest cart: %v", err)
	}

	// empty guest cart is also a no-op and survives
	svc.GetOrCreate(ctx, identity.ForGuest("sess-empty"))
	if err := svc.Merge(ctx, "sess-empty", "user-1"); err != nil {
		t.Fatalf("merge with empty guest cart: %v", err)
	}
	if _, err := repo.GetBySessionKey(ctx, "sess-empty"); err != nil {
		t.Errorf("empty guest cart should survive a no-op merge: %v", err)
	}
}
