package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/payflow/checkout/internal/catalog"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// GetByIDs loads products with their price variants and resolves each price
// to a single amount. Any missing id fails the whole lookup.
func (s *Store) GetByIDs(ctx context.Context, ids []string) ([]catalog.Product, error) {
	query := `
		SELECT id, name, price_cents, stock
		FROM products
		WHERE id = ANY($1)
	`

	rows, err := s.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]catalog.Product, len(ids))
	for rows.Next() {
		var (
			product    catalog.Product
			fixedCents *int64
		)
		if err := rows.Scan(&product.ID, &product.Name, &fixedCents, &product.Stock); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		var price catalog.Price
		if fixedCents != nil {
			price.FixedCents = *fixedCents
		}
		variants, err := s.loadVariants(ctx, product.ID)
		if err != nil {
			return nil, err
		}
		price.Variants = variants
		product.PriceCents = price.Resolve()
		byID[product.ID] = product
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	result := make([]catalog.Product, 0, len(ids))
	for _, id := range ids {
		product, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", catalog.ErrProductNotFound, id)
		}
		result = append(result, product)
	}

	return result, nil
}

func (s *Store) loadVariants(ctx context.Context, productID string) ([]catalog.PriceVariant, error) {
	query := `
		SELECT size, amount_cents
		FROM product_price_variants
		WHERE product_id = $1
		ORDER BY position
	`

	rows, err := s.pool.Query(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("query price variants: %w", err)
	}
	defer rows.Close()

	var variants []catalog.PriceVariant
	for rows.Next() {
		var v catalog.PriceVariant
		if err := rows.Scan(&v.Size, &v.AmountCents); err != nil {
			return nil, fmt.Errorf("scan price variant: %w", err)
		}
		variants = append(variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price variants: %w", err)
	}

	return variants, nil
}

// TryDecrement performs the conditional atomic stock decrement. The WHERE
// clause makes check-and-decrement a single statement, so concurrent
// reservations serialize per product inside the database.
func (s *Store) TryDecrement(ctx context.Context, productID string, quantity int) (bool, error) {
	query := `
		UPDATE products
		SET stock = stock - $2
		WHERE id = $1 AND stock >= $2
	`

	tag, err := s.pool.Exec(ctx, query, productID, quantity)
	if err != nil {
		return false, fmt.Errorf("decrement stock: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func (s *Store) Credit(ctx context.Context, productID string, quantity int) error {
	query := `
		UPDATE products
		SET stock = stock + $2
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query, productID, quantity)
	if err != nil {
		return fmt.Errorf("credit stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", catalog.ErrProductNotFound, productID)
	}

	return nil
}
