package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/payflow/checkout/internal/catalog"
)

// Store is an in-memory catalog and inventory useful for local development
// and tests. The mutex makes each check-and-decrement indivisible, matching
// the conditional-update guarantee of the postgres adapter.
type Store struct {
	mu       sync.Mutex
	products map[string]catalog.Product
}

// NewStore seeds a store. Prices are resolved at insertion, so lookups always
// see a single numeric amount.
func NewStore(products map[string]catalog.Price, names map[string]string, stock map[string]int) *Store {
	s := &Store{products: make(map[string]catalog.Product, len(products))}
	for id, price := range products {
		s.products[id] = catalog.Product{
			ID:         id,
			Name:       names[id],
			PriceCents: price.Resolve(),
			Stock:      stock[id],
		}
	}
	return s
}

func (s *Store) GetByIDs(_ context.Context, ids []string) ([]catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]catalog.Product, 0, len(ids))
	for _, id := range ids {
		product, ok := s.products[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", catalog.ErrProductNotFound, id)
		}
		result = append(result, product)
	}
	return result, nil
}

func (s *Store) TryDecrement(_ context.Context, productID string, quantity int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[productID]
	if !ok {
		return false, fmt.Errorf("%w: %s", catalog.ErrProductNotFound, productID)
	}
	if product.Stock < quantity {
		return false, nil
	}

	product.Stock -= quantity
	s.products[productID] = product
	return true, nil
}

func (s *Store) Credit(_ context.Context, productID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[productID]
	if !ok {
		return fmt.Errorf("%w: %s", catalog.ErrProductNotFound, productID)
	}

	product.Stock += quantity
	s.products[productID] = product
	return nil
}

// StockOf reports the current stock count, for tests and diagnostics.
func (s *Store) StockOf(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[productID].Stock
}
