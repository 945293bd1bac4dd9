package order

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Repository persists orders. CreateOrder is the checkout commit point: the
// order insert, item inserts, stock decrements, sold-count bumps, and cart
// clearing all succeed or fail as one unit. A decrement that would drive a
// level negative aborts the whole order with ErrInsufficientStock.
type Repository interface {
	CreateOrder(ctx context.Context, ord Order, clearCartID string) (Order, error)
	GetByID(ctx context.Context, id string) (Order, error)
	GetByNumber(ctx context.Context, number string) (Order, error)
	ListBySessionKey(ctx context.Context, sessionKey string) ([]Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	ListAll(ctx context.Context) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	AppendStatusEvent(ctx context.Context, ev StatusEvent) error
	ListStatusEvents(ctx context.Context, orderID string) ([]StatusEvent, error)
}

// InMemoryRepository is used for tests and local scenarios. Stock and Sold
// emulate the ledger rows the transactional path would touch; ClearCart, when
// set, is invoked with the cart id a successful checkout drains.
type InMemoryRepository struct {
	mu     sync.Mutex
	orders map[string]Order
	events map[string][]StatusEvent

	Stock     map[string]int // keyed by variant id
	Sold      map[string]int // keyed by product id
	ClearCart func(ctx context.Context, cartID string) error
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		orders: make(map[string]Order),
		events: make(map[string][]StatusEvent),
		Stock:  make(map[string]int),
		Sold:   make(map[string]int),
	}
}

func (r *InMemoryRepository) CreateOrder(ctx context.Context, ord Order, clearCartID string) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// validate every decrement before applying any, so a failure leaves the
	// ledger untouched
	for _, it := range ord.Items {
		if it.VariantID == nil {
			continue
		}
		if r.Stock[*it.VariantID] < it.Quantity {
			return Order{}, fmt.Errorf("variant %s: %w", *it.VariantID, ErrInsufficientStock)
		}
	}

	for _, it := range ord.Items {
		if it.VariantID != nil {
			r.Stock[*it.VariantID] -= it.Quantity
		}
		r.Sold[it.ProductID] += it.Quantity
	}

	if clearCartID != "" && r.ClearCart != nil {
		if err := r.ClearCart(ctx, clearCartID); err != nil {
			return Order{}, err
		}
	}

	now := time.Now()
	ord.CreatedAt = now
	ord.UpdatedAt = now
	r.orders[ord.ID] = ord
	return ord, nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ord, ok := r.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return ord, nil
}

func (r *InMemoryRepository) GetByNumber(ctx context.Context, number string) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ord := range r.orders {
		if ord.Number == number {
			return ord, nil
		}
	}
	return Order{}, ErrNotFound
}

func (r *InMemoryRepository) ListBySessionKey(ctx context.Context, sessionKey string) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Order, 0)
	for _, ord := range r.orders {
		if ord.SessionKey != nil && *ord.SessionKey == sessionKey {
			out = append(out, ord)
		}
	}
	return out, nil
}

func (r *InMemoryRepository) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Order, 0)
	for _, ord := range r.orders {
		if ord.UserID != nil && *ord.UserID == userID {
			out = append(out, ord)
		}
	}
	return out, nil
}

func (r *InMemoryRepository) ListAll(ctx context.Context) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Order, 0, len(r.orders))
	for _, ord := range r.orders {
		out = append(out, ord)
	}
	return out, nil
}

func (r *InMemoryRepository) UpdateStatus(ctx context.Context, id string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ord, ok := r.orders[id]
	if !ok {
		return ErrNotFound
	}
	ord.Status = status
	ord.UpdatedAt = time.Now()
	r.orders[id] = ord
	return nil
}

func (r *InMemoryRepository) AppendStatusEvent(ctx context.Context, ev StatusEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.CreatedAt = time.Now()
	r.events[ev.OrderID] = append(r.events[ev.OrderID], ev)
	return nil
}

func (r *InMemoryRepository) ListStatusEvents(ctx context.Context, orderID string) ([]StatusEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	evs := r.events[orderID]
	out := make([]StatusEvent, len(evs))
	copy(out, evs)
	return out, nil
}
