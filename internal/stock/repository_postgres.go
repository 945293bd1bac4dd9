package stock

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

func (r *PostgresRepository) Get(ctx context.Context, variantID string) (Level, error) {
	var lvl Level
	err := r.db.QueryRowContext(ctx,
		`SELECT variant_id, quantity, updated_at FROM stock_levels WHERE variant_id = $1`, variantID).
		Scan(&lvl.VariantID, &lvl.Quantity, &lvl.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Level{}, ErrNotFound
	}
	if err != nil {
		return Level{}, fmt.Errorf("query stock level: %w", err)
	}
	return lvl, nil
}

// DecrementIfAvailable runs a single conditional update; a zero row count
// means the remaining quantity was insufficient and nothing changed.
func (r *PostgresRepository) DecrementIfAvailable(ctx context.Context, variantID string, qty int) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE stock_levels
		SET quantity = quantity - $1, updated_at = now()
		WHERE variant_id = $2 AND quantity >= $1`,
		qty, variantID,
	)
	if err != nil {
		return false, fmt.Errorf("decrement stock: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("decrement stock rows: %w", err)
	}
	return rows > 0, nil
}

func (r *PostgresRepository) Increment(ctx context.Context, variantID string, qty int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO stock_levels (variant_id, quantity, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (variant_id) DO UPDATE
		SET quantity = stock_levels.quantity + EXCLUDED.quantity, updated_at = now()`,
		variantID, qty,
	)
	if err != nil {
		return fmt.Errorf("increment stock: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Set(ctx context.Context, variantID string, qty int) error {
	if qty < 0 {
		return ErrNegativeQuantity
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO stock_levels (variant_id, quantity, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (variant_id) DO UPDATE
		SET quantity = EXCLUDED.quantity, updated_at = now()`,
		variantID, qty,
	)
	if err != nil {
		return fmt.Errorf("set stock: %w", err)
	}
	return nil
}
