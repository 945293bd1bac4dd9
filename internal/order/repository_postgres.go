package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateOrder commits a checkout in a single transaction: order row, item
// rows, conditional stock decrements, sold-count bumps, and the cart drain.
// A decrement matching zero rows means another checkout won the remaining
// stock; the transaction rolls back and nothing is written.
func (r *PostgresRepository) CreateOrder(ctx context.Context, ord Order, clearCartID string) (Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Order{}, fmt.Errorf("begin checkout tx: %w", err)
	}
	defer tx.Rollback()

	shippingJSON, err := json.Marshal(ord.ShippingAddress)
	if err != nil {
		return Order{}, fmt.Errorf("marshal shipping address: %w", err)
	}
	var billingJSON []byte
	if ord.BillingAddress != nil {
		if billingJSON, err = json.Marshal(ord.BillingAddress); err != nil {
			return Order{}, fmt.Errorf("marshal billing address: %w", err)
		}
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (id, order_number, session_key, user_id, customer_name,
		                    customer_email, customer_phone, shipping_address, billing_address,
		                    status, subtotal, shipping_cost, tax, total,
		                    payment_method, payment_status, transaction_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING created_at, updated_at`,
		ord.ID, ord.Number, ord.SessionKey, ord.UserID, ord.CustomerName,
		ord.CustomerEmail, ord.CustomerPhone, shippingJSON, billingJSON,
		ord.Status, ord.Subtotal, ord.ShippingCost, ord.Tax, ord.Total,
		ord.PaymentMethod, ord.PaymentStatus, ord.TransactionID,
	).Scan(&ord.CreatedAt, &ord.UpdatedAt)
	if err != nil {
		return Order{}, fmt.Errorf("insert order: %w", err)
	}

	for _, it := range ord.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, variant_id, product_name,
			                         product_slug, variant_weight, quantity, unit_price, total, image_url)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			it.ID, ord.ID, it.ProductID, it.VariantID, it.ProductName,
			it.ProductSlug, it.VariantWeight, it.Quantity, it.UnitPrice, it.Total, it.ImageURL,
		)
		if err != nil {
			return Order{}, fmt.Errorf("insert order item: %w", err)
		}
	}

	for _, it := range ord.Items {
		if it.VariantID != nil {
			result, err := tx.ExecContext(ctx, `
				UPDATE stock_levels SET quantity = quantity - $1, updated_at = now()
				WHERE variant_id = $2 AND quantity >= $1`,
				it.Quantity, *it.VariantID,
			)
			if err != nil {
				return Order{}, fmt.Errorf("decrement stock: %w", err)
			}
			rows, err := result.RowsAffected()
			if err != nil {
				return Order{}, fmt.Errorf("decrement stock: %w", err)
			}
			if rows == 0 {
				return Order{}, fmt.Errorf("variant %s: %w", *it.VariantID, ErrInsufficientStock)
			}
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE products SET sold_count = sold_count + $1, updated_at = now()
			WHERE id = $2`, it.Quantity, it.ProductID)
		if err != nil {
			return Order{}, fmt.Errorf("bump sold count: %w", err)
		}
	}

	if clearCartID != "" {
		if _, err := tx.ExecContext(ctx, `DELETE FROM cart_lines WHERE cart_id = $1`, clearCartID); err != nil {
			return Order{}, fmt.Errorf("clear cart: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Order{}, fmt.Errorf("commit checkout tx: %w", err)
	}
	return ord, nil
}

const orderColumns = `
	id, order_number, session_key, user_id, customer_name, customer_email,
	customer_phone, shipping_address, billing_address, status, subtotal,
	shipping_cost, tax, total, payment_method, payment_status, transaction_id,
	created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var ord Order
	var shippingJSON []byte
	var billingJSON []byte
	err := row.Scan(&ord.ID, &ord.Number, &ord.SessionKey, &ord.UserID, &ord.CustomerName,
		&ord.CustomerEmail, &ord.CustomerPhone, &shippingJSON, &billingJSON, &ord.Status,
		&ord.Subtotal, &ord.ShippingCost, &ord.Tax, &ord.Total, &ord.PaymentMethod,
		&ord.PaymentStatus, &ord.TransactionID, &ord.CreatedAt, &ord.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	if err := json.Unmarshal(shippingJSON, &ord.ShippingAddress); err != nil {
		return Order{}, fmt.Errorf("decode shipping address: %w", err)
	}
	if len(billingJSON) > 0 {
		ord.BillingAddress = &Address{}
		if err := json.Unmarshal(billingJSON, ord.BillingAddress); err != nil {
			return Order{}, fmt.Errorf("decode billing address: %w", err)
		}
	}
	return ord, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, where string, arg any) (Order, error) {
	ord, err := scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("query order: %w", err)
	}

	ord.Items, err = r.itemsForOrder(ctx, ord.ID)
	if err != nil {
		return Order{}, err
	}
	return ord, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (Order, error) {
	return r.getOne(ctx, `id = $1`, id)
}

func (r *PostgresRepository) GetByNumber(ctx context.Context, number string) (Order, error) {
	return r.getOne(ctx, `order_number = $1`, number)
}

func (r *PostgresRepository) itemsForOrder(ctx context.Context, orderID string) ([]Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, variant_id, product_name, product_slug,
		       variant_weight, quantity, unit_price, total, image_url
		FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.VariantID, &it.ProductName,
			&it.ProductSlug, &it.VariantWeight, &it.Quantity, &it.UnitPrice, &it.Total, &it.ImageURL); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *PostgresRepository) listWhere(ctx context.Context, where string, args ...any) ([]Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	if where != "" {
		query += ` WHERE ` + where
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]Order, 0)
	for rows.Next() {
		ord, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, ord)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		if orders[i].Items, err = r.itemsForOrder(ctx, orders[i].ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *PostgresRepository) ListBySessionKey(ctx context.Context, sessionKey string) ([]Order, error) {
	return r.listWhere(ctx, `session_key = $1`, sessionKey)
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	return r.listWhere(ctx, `user_id = $1`, userID)
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]Order, error) {
	return r.listWhere(ctx, "")
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status Status) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = now() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) AppendStatusEvent(ctx context.Context, ev StatusEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO order_status_events (id, order_id, from_status, to_status, actor_type, note)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.ID, ev.OrderID, ev.From, ev.To, ev.ActorType, ev.Note)
	if err != nil {
		return fmt.Errorf("insert status event: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListStatusEvents(ctx context.Context, orderID string) ([]StatusEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, from_status, to_status, actor_type, note, created_at
		FROM order_status_events WHERE order_id = $1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query status events: %w", err)
	}
	defer rows.Close()

	events := make([]StatusEvent, 0)
	for rows.Next() {
		var ev StatusEvent
		if err := rows.Scan(&ev.ID, &ev.OrderID, &ev.From, &ev.To, &ev.ActorType, &ev.Note, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan status event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
