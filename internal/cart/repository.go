package cart

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository provides access to carts and their lines. Merge must be atomic
// with respect to concurrent cart mutations for the same user.
type Repository interface {
	GetBySessionKey(ctx context.Context, sessionKey string) (Cart, error)
	Create(ctx context.Context, c Cart) (Cart, error)
	// BindToUser stamps the owner and clears any residual guest expiry.
	BindToUser(ctx context.Context, cartID, userID string) error
	InsertLine(ctx context.Context, l Line) (Line, error)
	UpdateLineQuantity(ctx context.Context, lineID string, qty int) error
	DeleteLine(ctx context.Context, lineID string) error
	DeleteLines(ctx context.Context, cartID string) error
	Delete(ctx context.Context, cartID string) error
	// Merge folds the guest cart's lines into the user cart in one
	// transaction: conflicting (product, variant) lines take the guest
	// quantity, the rest are copied, and the guest cart row is deleted.
	Merge(ctx context.Context, guestKey, userKey string) error
}

// InMemoryRepository is used for tests and local scenarios.
type InMemoryRepository struct {
	mu    sync.Mutex
	carts map[string]*Cart // keyed by session key
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{carts: make(map[string]*Cart)}
}

func (r *InMemoryRepository) GetBySessionKey(ctx context.Context, sessionKey string) (Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[sessionKey]
	if !ok {
		return Cart{}, ErrNotFound
	}
	return cloneCart(c), nil
}

func (r *InMemoryRepository) Create(ctx context.Context, c Cart) (Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := cloneCart(&c)
	if stored.Lines == nil {
		stored.Lines = []Line{}
	}
	r.carts[c.SessionKey] = &stored
	return cloneCart(&stored), nil
}

func (r *InMemoryRepository) BindToUser(ctx context.Context, cartID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.carts {
		if c.ID == cartID {
			uid := userID
			c.UserID = &uid
			c.ExpiresAt = nil
			return nil
		}
	}
	return ErrNotFound
}

func (r *InMemoryRepository) InsertLine(ctx context.Context, l Line) (Line, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.carts {
		if c.ID == l.CartID {
			c.Lines = append(c.Lines, l)
			return l, nil
		}
	}
	return Line{}, ErrNotFound
}

func (r *InMemoryRepository) UpdateLineQuantity(ctx context.Context, lineID string, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.carts {
		for i := range c.Lines {
			if c.Lines[i].ID == lineID {
				c.Lines[i].Quantity = qty
				c.Lines[i].UpdatedAt = time.Now()
				return nil
			}
		}
	}
	return ErrLineNotFound
}

func (r *InMemoryRepository) DeleteLine(ctx context.Context, lineID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.carts {
		for i := range c.Lines {
			if c.Lines[i].ID == lineID {
				c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
				return nil
			}
		}
	}
	return ErrLineNotFound
}

func (r *InMemoryRepository) DeleteLines(ctx context.Context, cartID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.carts {
		if c.ID == cartID {
			c.Lines = []Line{}
			return nil
		}
	}
	return ErrNotFound
}

func (r *InMemoryRepository) Delete(ctx context.Context, cartID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, c := range r.carts {
		if c.ID == cartID {
			delete(r.carts, key)
			return nil
		}
	}
	return ErrNotFound
}

func (r *InMemoryRepository) Merge(ctx context.Context, guestKey, userKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	guest, ok := r.carts[guestKey]
	if !ok {
		return nil
	}
	user, ok := r.carts[userKey]
	if !ok {
		return ErrNotFound
	}

	for _, gl := range guest.Lines {
		merged := false
		for i := range user.Lines {
			if user.Lines[i].ProductID == gl.ProductID && sameVariant(user.Lines[i].VariantID, gl.VariantID) {
				// guest quantity wins on conflict
				user.Lines[i].Quantity = gl.Quantity
				user.Lines[i].UpdatedAt = time.Now()
				merged = true
				break
			}
		}
		if !merged {
			copied := gl
			copied.ID = uuid.NewString()
			copied.CartID = user.ID
			user.Lines = append(user.Lines, copied)
		}
	}

	delete(r.carts, guestKey)
	return nil
}

func cloneCart(c *Cart) Cart {
	out := *c
	out.Lines = make([]Line, len(c.Lines))
	copy(out.Lines, c.Lines)
	return out
}
