package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetBySessionKey(ctx context.Context, sessionKey string) (Cart, error) {
	var c Cart
	err := r.db.QueryRowContext(ctx, `
		SELECT id, session_key, user_id, expires_at, created_at, updated_at
		FROM carts WHERE session_key = $1`, sessionKey).
		Scan(&c.ID, &c.SessionKey, &c.UserID, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Cart{}, ErrNotFound
	}
	if err != nil {
		return Cart{}, fmt.Errorf("query cart: %w", err)
	}

	c.Lines, err = r.linesForCart(ctx, c.ID)
	if err != nil {
		return Cart{}, err
	}
	return c, nil
}

func (r *PostgresRepository) linesForCart(ctx context.Context, cartID string) ([]Line, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, cart_id, product_id, variant_id, product_name, variant_weight,
		       quantity, unit_price, image_url, created_at, updated_at
		FROM cart_lines WHERE cart_id = $1 ORDER BY created_at, id`, cartID)
	if err != nil {
		return nil, fmt.Errorf("query cart lines: %w", err)
	}
	defer rows.Close()

	lines := make([]Line, 0)
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.CartID, &l.ProductID, &l.VariantID, &l.ProductName,
			&l.VariantWeight, &l.Quantity, &l.UnitPrice, &l.ImageURL, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *PostgresRepository) Create(ctx context.Context, c Cart) (Cart, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO carts (id, session_key, user_id, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		c.ID, c.SessionKey, c.UserID, c.ExpiresAt,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Cart{}, fmt.Errorf("insert cart: %w", err)
	}
	c.Lines = []Line{}
	return c, nil
}

func (r *PostgresRepository) BindToUser(ctx context.Context, cartID, userID string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE carts SET user_id = $1, expires_at = NULL, updated_at = now()
		WHERE id = $2`, userID, cartID)
	if err != nil {
		return fmt.Errorf("bind cart to user: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) InsertLine(ctx context.Context, l Line) (Line, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO cart_lines (id, cart_id, product_id, variant_id, product_name,
		                        variant_weight, quantity, unit_price, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		l.ID, l.CartID, l.ProductID, l.VariantID, l.ProductName,
		l.VariantWeight, l.Quantity, l.UnitPrice, l.ImageURL,
	).Scan(&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return Line{}, fmt.Errorf("insert cart line: %w", err)
	}
	return l, nil
}

func (r *PostgresRepository) UpdateLineQuantity(ctx context.Context, lineID string, qty int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE cart_lines SET quantity = $1, updated_at = now() WHERE id = $2`, qty, lineID)
	if err != nil {
		return fmt.Errorf("update cart line: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrLineNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteLine(ctx context.Context, lineID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM cart_lines WHERE id = $1`, lineID)
	if err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrLineNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteLines(ctx context.Context, cartID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_lines WHERE cart_id = $1`, cartID)
	if err != nil {
		return fmt.Errorf("clear cart lines: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, cartID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM carts WHERE id = $1`, cartID)
	if err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}

// Merge runs the whole fold in one transaction, locking the user cart row so
// a concurrent merge or checkout cannot double-apply guest lines.
func (r *PostgresRepository) Merge(ctx context.Context, guestKey, userKey string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin merge tx: %w", err)
	}
	defer tx.Rollback()

	var guestCartID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM carts WHERE session_key = $1`, guestKey).Scan(&guestCartID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup guest cart: %w", err)
	}

	var userCartID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM carts WHERE session_key = $1 FOR UPDATE`, userKey).Scan(&userCartID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock user cart: %w", err)
	}

	// conflicting (product, variant) lines take the guest quantity
	_, err = tx.ExecContext(ctx, `
		INSERT INTO cart_lines (id, cart_id, product_id, variant_id, product_name,
		                        variant_weight, quantity, unit_price, image_url)
		SELECT gen_random_uuid(), $1, product_id, variant_id, product_name,
		       variant_weight, quantity, unit_price, image_url
		FROM cart_lines WHERE cart_id = $2
		ON CONFLICT (cart_id, product_id, COALESCE(variant_id, '00000000-0000-0000-0000-000000000000'::uuid))
		DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = now()`,
		userCartID, guestCartID,
	)
	if err != nil {
		return fmt.Errorf("merge cart lines: %w", err)
	}

	// drop the guest cart entirely, lines cascade
	if _, err := tx.ExecContext(ctx, `DELETE FROM carts WHERE id = $1`, guestCartID); err != nil {
		return fmt.Errorf("delete guest cart: %w", err)
	}

	return tx.Commit()
}
