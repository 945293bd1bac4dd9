package stock

import (
	"context"
	"fmt"
)

// Service fronts the ledger with an optional read-through cache. Cache
// failures are logged and absorbed; only the ledger decides outcomes.
type Service struct {
	repo  Repository
	cache Cache // may be nil
}

func NewService(repo Repository, cache Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Available reports the quantity for a variant, serving from the cache when
// it holds an entry.
func (s *Service) Available(ctx context.Context, variantID string) (int, error) {
	if s.cache != nil {
		if qty, err := s.cache.Get(ctx, variantID); err == nil {
			return qty, nil
		} else if err != ErrCacheMiss {
			fmt.Printf("[stock] cache read failed for %s: %v\n", variantID, err)
		}
	}

	lvl, err := s.repo.Get(ctx, variantID)
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, variantID, lvl.Quantity); err != nil {
			fmt.Printf("[stock] cache write failed for %s: %v\n", variantID, err)
		}
	}
	return lvl.Quantity, nil
}

// Restock credits quantity back, used by order cancellation and returns.
func (s *Service) Restock(ctx context.Context, variantID string, qty int) error {
	if qty <= 0 {
		return ErrNegativeQuantity
	}
	if err := s.repo.Increment(ctx, variantID, qty); err != nil {
		return err
	}
	s.forget(ctx, variantID)
	return nil
}

// Adjust overwrites the level, the manual admin path.
func (s *Service) Adjust(ctx context.Context, variantID string, qty int) error {
	if err := s.repo.Set(ctx, variantID, qty); err != nil {
		return err
	}
	s.forget(ctx, variantID)
	return nil
}

// Forget drops the cached level so the next read refreshes from the ledger.
// Checkout calls this after committing its decrements.
func (s *Service) Forget(ctx context.Context, variantID string) {
	s.forget(ctx, variantID)
}

// Increment satisfies the restock dependency of the order service.
func (s *Service) Increment(ctx context.Context, variantID string, qty int) error {
	return s.Restock(ctx, variantID, qty)
}

func (s *Service) forget(ctx context.Context, variantID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Forget(ctx, variantID); err != nil {
		fmt.Printf("[stock] cache invalidation failed for %s: %v\n", variantID, err)
	}
}
