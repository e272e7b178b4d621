package commands_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/payflow/checkout/internal/catalog"
	catalogmemory "github.com/payflow/checkout/internal/catalog/memory"
	"github.com/payflow/checkout/internal/orders/domain"
	"github.com/payflow/checkout/internal/orders/ports"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seededCatalog(prices map[string]int64, stock map[string]int) *catalogmemory.Store {
	catalogPrices := make(map[string]catalog.Price, len(prices))
	names := make(map[string]string, len(prices))
	for id, cents := range prices {
		catalogPrices[id] = catalog.Price{FixedCents: cents}
		names[id] = id
	}
	return catalogmemory.NewStore(catalogPrices, names, stock)
}

type mockPublisher struct {
	mu        sync.Mutex
	created   []string
	confirmed []string

	publishCreatedFn   func(ctx context.Context, orderID, txnID string) error
	publishConfirmedFn func(ctx context.Context, orderID, txnID string) error
}

func (m *mockPublisher) PublishOrderCreated(ctx context.Context, orderID, txnID string) error {
	m.mu.Lock()
	m.created = append(m.created, orderID)
	m.mu.Unlock()
	if m.publishCreatedFn != nil {
		return m.publishCreatedFn(ctx, orderID, txnID)
	}
	return nil
}

func (m *mockPublisher) PublishOrderConfirmed(ctx context.Context, orderID, txnID string) error {
	m.mu.Lock()
	m.confirmed = append(m.confirmed, orderID)
	m.mu.Unlock()
	if m.publishConfirmedFn != nil {
		return m.publishConfirmedFn(ctx, orderID, txnID)
	}
	return nil
}

func (m *mockPublisher) confirmedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.confirmed)
}

type mockRepository struct {
	createFn               func(ctx context.Context, order domain.Order) error
	getByIDFn              func(ctx context.Context, id string) (*domain.Order, error)
	getByTxnIDFn           func(ctx context.Context, txnID string) (*domain.Order, error)
	listFn                 func(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error)
	transitionStatusFn     func(ctx context.Context, id string, from, to domain.OrderStatus) (bool, error)
	setPaymentIntentFn     func(ctx context.Context, id, txnID string, totalCents int64) error
	markPaidFn             func(ctx context.Context, txnID string, result domain.PaymentResult, paidAt time.Time) (bool, error)
	recordPaymentFailureFn func(ctx context.Context, txnID string, result domain.PaymentResult) error
}

func (m *mockRepository) Create(ctx context.Context, order domain.Order) error {
	if m.createFn != nil {
		return m.createFn(ctx, order)
	}
	return nil
}

func (m *mockRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, ports.ErrNotFound
}

func (m *mockRepository) GetByTxnID(ctx context.Context, txnID string) (*domain.Order, error) {
	if m.getByTxnIDFn != nil {
		return m.getByTxnIDFn(ctx, txnID)
	}
	return nil, ports.ErrNotFound
}

func (m *mockRepository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return nil, nil
}

func (m *mockRepository) TransitionStatus(ctx context.Context, id string, from, to domain.OrderStatus) (bool, error) {
	if m.transitionStatusFn != nil {
		return m.transitionStatusFn(ctx, id, from, to)
	}
	return true, nil
}

func (m *mockRepository) SetPaymentIntent(ctx context.Context, id, txnID string, totalCents int64) error {
	if m.setPaymentIntentFn != nil {
		return m.setPaymentIntentFn(ctx, id, txnID, totalCents)
	}
	return nil
}

func (m *mockRepository) MarkPaid(ctx context.Context, txnID string, result domain.PaymentResult, paidAt time.Time) (bool, error) {
	if m.markPaidFn != nil {
		return m.markPaidFn(ctx, txnID, result, paidAt)
	}
	return false, nil
}

func (m *mockRepository) RecordPaymentFailure(ctx context.Context, txnID string, result domain.PaymentResult) error {
	if m.recordPaymentFailureFn != nil {
		return m.recordPaymentFailureFn(ctx, txnID, result)
	}
	return nil
}
