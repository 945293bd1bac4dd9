package settings

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrNotFound = errors.New("setting not found")

// Setting is one key/value configuration entry, e.g. the free-shipping
// threshold consumed by the pricing policy.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Repository provides access to the site settings store.
type Repository interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, value string) error
	List(ctx context.Context) ([]Setting, error)
}

// InMemoryRepository is used for tests and local scenarios.
type InMemoryRepository struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewInMemoryRepository(seed map[string]string) *InMemoryRepository {
	values := make(map[string]string, len(seed))
	for k, v := range seed {
		values[k] = v
	}
	return &InMemoryRepository{values: values}
}

func (r *InMemoryRepository) Get(ctx context.Context, key string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (r *InMemoryRepository) Put(ctx context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[key] = value
	return nil
}

func (r *InMemoryRepository) List(ctx context.Context) ([]Setting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Setting, 0, len(r.values))
	for k, v := range r.values {
		out = append(out, Setting{Key: k, Value: v})
	}
	return out, nil
}
