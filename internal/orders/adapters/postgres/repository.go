package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/payflow/checkout/internal/orders/domain"
	"github.com/payflow/checkout/internal/orders/ports"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const orderColumns = `
	id, user_id, txn_id, shipping_address, payment_method, total_cents,
	is_paid, paid_at, payment_reference, payment_status, status, created_at, updated_at
`

func (r *Repository) Create(ctx context.Context, order domain.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	shipping, err := json.Marshal(order.Shipping)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}

	var reference, status *string
	if order.PaymentResult != nil {
		reference = &order.PaymentResult.Reference
		status = &order.PaymentResult.Status
	}

	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = tx.Exec(ctx, query,
		order.ID,
		nullable(order.UserID),
		order.TxnID,
		shipping,
		order.PaymentMethod,
		order.TotalCents,
		order.IsPaid,
		order.PaidAt,
		reference,
		status,
		order.Status,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i, item := range order.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (order_id, position, product_id, quantity, price_cents)
			VALUES ($1, $2, $3, $4, $5)
		`, order.ID, i, item.ProductID, item.Quantity, item.PriceCents)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}

	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.getByColumn(ctx, "id", id)
}

func (r *Repository) GetByTxnID(ctx context.Context, txnID string) (*domain.Order, error) {
	return r.getByColumn(ctx, "txn_id", txnID)
}

func (r *Repository) getByColumn(ctx context.Context, column, value string) (*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE ` + column + ` = $1
	`

	order, err := scanOrder(r.pool.QueryRow(ctx, query, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("select order: %w", err)
	}

	if err := r.loadItems(ctx, order); err != nil {
		return nil, err
	}

	return order, nil
}

func (r *Repository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE ($1::text IS NULL OR status = $1)
		  AND ($2::text IS NULL OR user_id = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`

	var statusFilter *string
	if filter.Status != nil {
		s := string(*filter.Status)
		statusFilter = &s
	}

	offset := (page - 1) * pageSize

	rows, err := r.pool.Query(ctx, query, statusFilter, nullable(filter.UserID), pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	for i := range orders {
		if err := r.loadItems(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}

	return orders, nil
}

// TransitionStatus moves an order between statuses as a single conditional
// write. Concurrent callers that observed the same starting status race on
// the status predicate and only one can win.
func (r *Repository) TransitionStatus(ctx context.Context, id string, from, to domain.OrderStatus) (bool, error) {
	query := `
		UPDATE orders
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`

	tag, err := r.pool.Exec(ctx, query, to, time.Now().UTC(), id, from)
	if err != nil {
		return false, fmt.Errorf("transition order status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
			return false, fmt.Errorf("check order exists: %w", err)
		}
		if !exists {
			return false, ports.ErrNotFound
		}
		return false, nil
	}

	return true, nil
}

func (r *Repository) SetPaymentIntent(ctx context.Context, id, txnID string, totalCents int64) error {
	query := `
		UPDATE orders
		SET txn_id = $1, total_cents = $2, updated_at = $3
		WHERE id = $4 AND is_paid = false
	`

	result, err := r.pool.Exec(ctx, query, txnID, totalCents, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set payment intent: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ports.ErrNotFound
	}

	return nil
}

// MarkPaid is a single conditional write: concurrent deliveries for the same
// transaction race on the is_paid = false predicate and only one can win.
// Cancelled orders are excluded so a late success delivery cannot confirm an
// order whose stock has already been released.
func (r *Repository) MarkPaid(ctx context.Context, txnID string, result domain.PaymentResult, paidAt time.Time) (bool, error) {
	query := `
		UPDATE orders
		SET is_paid = true,
		    paid_at = $1,
		    payment_reference = $2,
		    payment_status = $3,
		    status = $4,
		    updated_at = $5
		WHERE txn_id = $6 AND is_paid = false AND status <> $7
	`

	tag, err := r.pool.Exec(ctx, query,
		paidAt,
		result.Reference,
		result.Status,
		domain.StatusConfirmed,
		time.Now().UTC(),
		txnID,
		domain.StatusCancelled,
	)
	if err != nil {
		return false, fmt.Errorf("mark order paid: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *Repository) RecordPaymentFailure(ctx context.Context, txnID string, result domain.PaymentResult) error {
	query := `
		UPDATE orders
		SET payment_reference = $1, payment_status = $2, updated_at = $3
		WHERE txn_id = $4 AND is_paid = false
	`

	tag, err := r.pool.Exec(ctx, query, result.Reference, result.Status, time.Now().UTC(), txnID)
	if err != nil {
		return fmt.Errorf("record payment failure: %w", err)
	}

	// Paid orders are deliberately untouched; an unknown txn is reported.
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE txn_id = $1)`, txnID).Scan(&exists); err != nil {
			return fmt.Errorf("check order exists: %w", err)
		}
		if !exists {
			return ports.ErrNotFound
		}
	}

	return nil
}

func (r *Repository) loadItems(ctx context.Context, order *domain.Order) error {
	rows, err := r.pool.Query(ctx, `
		SELECT product_id, quantity, price_cents
		FROM order_items
		WHERE order_id = $1
		ORDER BY position
	`, order.ID)
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.LineItem
	for rows.Next() {
		var item domain.LineItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.PriceCents); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate order items: %w", err)
	}

	order.Items = items
	return nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		order     domain.Order
		userID    *string
		shipping  []byte
		reference *string
		status    *string
	)

	err := row.Scan(
		&order.ID,
		&userID,
		&order.TxnID,
		&shipping,
		&order.PaymentMethod,
		&order.TotalCents,
		&order.IsPaid,
		&order.PaidAt,
		&reference,
		&status,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if userID != nil {
		order.UserID = *userID
	}
	if len(shipping) > 0 {
		if err := json.Unmarshal(shipping, &order.Shipping); err != nil {
			return nil, fmt.Errorf("unmarshal shipping address: %w", err)
		}
	}
	if reference != nil || status != nil {
		order.PaymentResult = &domain.PaymentResult{}
		if reference != nil {
			order.PaymentResult.Reference = *reference
		}
		if status != nil {
			order.PaymentResult.Status = *status
		}
	}

	return &order, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
