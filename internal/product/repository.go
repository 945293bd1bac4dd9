package product

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrNotFound        = errors.New("product not found")
	ErrVariantNotFound = errors.New("variant not found")
)

// Repository provides catalog reads for the storefront. Catalog writes go
// through the admin sync pipeline and are out of scope here.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (Product, error)
	GetVariant(ctx context.Context, id string) (Variant, error)
	ListVariants(ctx context.Context, productID string) ([]Variant, error)
	ListImages(ctx context.Context, productID string) ([]Image, error)
	ListImagesForProducts(ctx context.Context, productIDs []string) ([]Image, error)
}

// InMemoryRepository is used for tests and local scenarios.
type InMemoryRepository struct {
	mu       sync.RWMutex
	products map[string]Product
	variants map[string]Variant
	images   map[string][]Image // keyed by product id
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		products: make(map[string]Product),
		variants: make(map[string]Variant),
		images:   make(map[string][]Image),
	}
}

func (r *InMemoryRepository) SeedProduct(p Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ID] = p
}

func (r *InMemoryRepository) SeedVariant(v Variant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variants[v.ID] = v
}

func (r *InMemoryRepository) SeedImage(img Image) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.images[img.ProductID] = append(r.images[img.ProductID], img)
}

func (r *InMemoryRepository) List(ctx context.Context) ([]Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	return out, nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (r *InMemoryRepository) GetVariant(ctx context.Context, id string) (Variant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.variants[id]
	if !ok {
		return Variant{}, ErrVariantNotFound
	}
	return v, nil
}

func (r *InMemoryRepository) ListVariants(ctx context.Context, productID string) ([]Variant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Variant, 0)
	for _, v := range r.variants {
		if v.ProductID == productID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *InMemoryRepository) ListImages(ctx context.Context, productID string) ([]Image, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	imgs := r.images[productID]
	out := make([]Image, len(imgs))
	copy(out, imgs)
	return out, nil
}

func (r *InMemoryRepository) ListImagesForProducts(ctx context.Context, productIDs []string) ([]Image, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Image, 0)
	for _, id := range productIDs {
		out = append(out, r.images[id]...)
	}
	return out, nil
}
