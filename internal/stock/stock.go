package stock

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrNotFound         = errors.New("stock level not found")
	ErrNegativeQuantity = errors.New("quantity must not be negative")
)

// Level is the available quantity for one product variant. Quantity never
// goes negative; order placement decrements it through the conditional
// update path only.
type Level struct {
	VariantID string    `json:"variantId"`
	Quantity  int       `json:"quantity"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Repository is the stock ledger. DecrementIfAvailable is the single
// decrement primitive: it must be atomic with respect to concurrent callers
// and report false instead of driving the level below zero.
type Repository interface {
	Get(ctx context.Context, variantID string) (Level, error)
	DecrementIfAvailable(ctx context.Context, variantID string, qty int) (bool, error)
	Increment(ctx context.Context, variantID string, qty int) error
	Set(ctx context.Context, variantID string, qty int) error
}

// InMemoryRepository is used for tests and local scenarios.
type InMemoryRepository struct {
	mu     sync.Mutex
	levels map[string]int
}

func NewInMemoryRepository(seed map[string]int) *InMemoryRepository {
	levels := make(map[string]int, len(seed))
	for k, v := range seed {
		levels[k] = v
	}
	return &InMemoryRepository{levels: levels}
}

func (r *InMemoryRepository) Get(ctx context.Context, variantID string) (Level, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.levels[variantID]
	if !ok {
		return Level{}, ErrNotFound
	}
	return Level{VariantID: variantID, Quantity: q, UpdatedAt: time.Now()}, nil
}

func (r *InMemoryRepository) DecrementIfAvailable(ctx context.Context, variantID string, qty int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.levels[variantID]
	if !ok || current < qty {
		return false, nil
	}
	r.levels[variantID] = current - qty
	return true, nil
}

func (r *InMemoryRepository) Increment(ctx context.Context, variantID string, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.levels[variantID] += qty
	return nil
}

func (r *InMemoryRepository) Set(ctx context.Context, variantID string, qty int) error {
	if qty < 0 {
		return ErrNegativeQuantity
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.levels[variantID] = qty
	return nil
}
