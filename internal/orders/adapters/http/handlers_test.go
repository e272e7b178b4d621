package http_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/payflow/checkout/internal/catalog"
	catalogmemory "github.com/payflow/checkout/internal/catalog/memory"
	journalmemory "github.com/payflow/checkout/internal/journal/memory"
	"github.com/payflow/checkout/internal/notifications"
	httpadapter "github.com/payflow/checkout/internal/orders/adapters/http"
	"github.com/payflow/checkout/internal/orders/adapters/memory"
	"github.com/payflow/checkout/internal/orders/app"
	"github.com/payflow/checkout/internal/orders/app/commands"
	"github.com/payflow/checkout/internal/orders/domain"
	"github.com/payflow/checkout/internal/payu"
)

const (
	testMerchantKey  = "merchant-key"
	testMerchantSalt = "merchant-salt"
)

type testServer struct {
	router  chi.Router
	service *app.Service
	store   *catalogmemory.Store
	journal *journalmemory.Store
	signer  *payu.Signer
}

func newTestServer(t *testing.T, allowedIPs []string) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := memory.NewRepository()
	store := catalogmemory.NewStore(
		map[string]catalog.Price{"p1": {FixedCents: 500}, "p2": {FixedCents: 250}},
		map[string]string{"p1": "Widget", "p2": "Shirt"},
		map[string]int{"p1": 5, "p2": 1},
	)
	eventJournal := journalmemory.NewStore()
	signer := payu.NewSigner(testMerchantKey, testMerchantSalt)

	service := app.NewService(app.Config{
		Repo:         repo,
		Products:     store,
		Reservations: catalog.NewReservationManager(store, logger),
		Journal:      eventJournal,
		Publisher:    notifications.NewNoopPublisher(),
		Signer:       signer,
		InitiationBuilder: payu.NewInitiationBuilder(payu.Config{
			MerchantKey:  testMerchantKey,
			MerchantSalt: testMerchantSalt,
			Mode:         "test",
		}),
		Logger: logger,
	})

	router := chi.NewRouter()
	httpadapter.NewHandler(service, allowedIPs, logger).Routes(router)

	return &testServer{router: router, service: service, store: store, journal: eventJournal, signer: signer}
}

func (ts *testServer) createOrder(t *testing.T) *domain.Order {
	t.Helper()
	order, err := ts.service.CreatePendingOrder(context.Background(), commands.CreatePendingOrderCommand{
		Items: []commands.ItemInput{{ProductID: "p1", Quantity: 1}},
		Shipping: domain.ShippingAddress{
			FirstName: "Asha",
			Email:     "asha@example.com",
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

func (ts *testServer) signedForm(txnID, status string) url.Values {
	n := payu.Notification{
		Key:    testMerchantKey,
		TxnID:  txnID,
		Amount: "5.00",
		Email:  "asha@example.com",
		Status: status,
	}
	n.Hash = ts.signer.ResponseHash(n)

	form := url.Values{}
	form.Set("key", n.Key)
	form.Set("txnid", n.TxnID)
	form.Set("amount", n.Amount)
	form.Set("email", n.Email)
	form.Set("status", n.Status)
	form.Set("hash", n.Hash)
	return form
}

func (ts *testServer) postForm(path string, form url.Values, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) postJSON(t *testing.T, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func TestCreateOrderEndpoint(t *testing.T) {
	t.Run("creates an order", func(t *testing.T) {
		ts := newTestServer(t, nil)

		rec := ts.postJSON(t, "/api/orders", map[string]any{
			"items": []map[string]any{{"product_id": "p1", "quantity": 2}},
		})

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp struct {
			Order domain.Order `json:"order"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Order.TotalCents != 1000 {
			t.Errorf("expected total 1000, got %d", resp.Order.TotalCents)
		}
	})

	t.Run("insufficient stock is a conflict naming the product", func(t *testing.T) {
		ts := newTestServer(t, nil)

		rec := ts.postJSON(t, "/api/orders", map[string]any{
			"items": []map[string]any{{"product_id": "p2", "quantity": 2}},
		})

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		var resp map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp["product_id"] != "p2" {
			t.Errorf("expected offending product p2, got %v", resp["product_id"])
		}
	})

	t.Run("unknown product is a bad request", func(t *testing.T) {
		ts := newTestServer(t, nil)

		rec := ts.postJSON(t, "/api/orders", map[string]any{
			"items": []map[string]any{{"product_id": "ghost", "quantity": 1}},
		})

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("malformed body is a bad request", func(t *testing.T) {
		ts := newTestServer(t, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		ts.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestGetOrderEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	order := ts.createOrder(t)

	t.Run("returns an existing order", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/orders/"+order.ID, nil)
		rec := httptest.NewRecorder()
		ts.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("unknown order is not found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/orders/ghost", nil)
		rec := httptest.NewRecorder()
		ts.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestCancelOrderEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	order := ts.createOrder(t)

	rec := ts.postForm("/api/orders/"+order.ID+"/cancel", url.Values{}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if got := ts.store.StockOf("p1"); got != 5 {
		t.Errorf("expected stock released to 5, got %d", got)
	}

	rec = ts.postForm("/api/orders/"+order.ID+"/cancel", url.Values{}, "")
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for double cancel, got %d", rec.Code)
	}
}

func TestWebhookEndpoint(t *testing.T) {
	t.Run("confirms the order and acknowledges", func(t *testing.T) {
		ts := newTestServer(t, nil)
		order := ts.createOrder(t)

		rec := ts.postForm("/api/payments/webhook", ts.signedForm(order.TxnID, "success"), "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if rec.Body.String() != "OK" {
			t.Errorf("expected OK body, got %q", rec.Body.String())
		}

		stored, err := ts.service.GetOrderByTxnID(context.Background(), order.TxnID)
		if err != nil {
			t.Fatal(err)
		}
		if !stored.IsPaid {
			t.Error("expected order paid")
		}
	})

	t.Run("rejects a bad signature", func(t *testing.T) {
		ts := newTestServer(t, nil)
		order := ts.createOrder(t)

		form := ts.signedForm(order.TxnID, "success")
		form.Set("amount", "9999.00")

		rec := ts.postForm("/api/payments/webhook", form, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("enforces the address allowlist", func(t *testing.T) {
		ts := newTestServer(t, []string{"203.0.113.9"})
		order := ts.createOrder(t)
		form := ts.signedForm(order.TxnID, "success")

		rec := ts.postForm("/api/payments/webhook", form, "198.51.100.7:40000")
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403 for disallowed source, got %d", rec.Code)
		}

		rec = ts.postForm("/api/payments/webhook", form, "203.0.113.9:40000")
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200 for allowed source, got %d", rec.Code)
		}
	})

	t.Run("acknowledges an unknown transaction after journaling", func(t *testing.T) {
		ts := newTestServer(t, nil)

		rec := ts.postForm("/api/payments/webhook", ts.signedForm("tx_ghost", "success"), "")
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200 for unknown transaction, got %d", rec.Code)
		}

		events := ts.journal.Events()
		if len(events) != 1 || events[0].FailureReason == "" {
			t.Error("expected journaled manual review entry")
		}
	})

	t.Run("redelivery after a redirect is acknowledged without reapplying", func(t *testing.T) {
		ts := newTestServer(t, nil)
		order := ts.createOrder(t)
		form := ts.signedForm(order.TxnID, "success")

		if rec := ts.postForm("/api/payments/success", form, ""); rec.Code != http.StatusOK {
			t.Fatalf("redirect: expected 200, got %d", rec.Code)
		}
		if rec := ts.postForm("/api/payments/webhook", form, ""); rec.Code != http.StatusOK {
			t.Fatalf("webhook: expected 200, got %d", rec.Code)
		}

		stored, err := ts.service.GetOrderByTxnID(context.Background(), order.TxnID)
		if err != nil {
			t.Fatal(err)
		}
		if stored.Status != domain.StatusConfirmed {
			t.Errorf("expected confirmed, got %s", stored.Status)
		}
	})
}

func TestRedirectEndpoints(t *testing.T) {
	t.Run("success redirect renders confirmation", func(t *testing.T) {
		ts := newTestServer(t, nil)
		order := ts.createOrder(t)

		rec := ts.postForm("/api/payments/success", ts.signedForm(order.TxnID, "success"), "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("expected html response, got %q", ct)
		}
		if !strings.Contains(rec.Body.String(), "Payment Successful") {
			t.Error("expected confirmation page")
		}
	})

	t.Run("success redirect with bad hash is rejected", func(t *testing.T) {
		ts := newTestServer(t, nil)
		order := ts.createOrder(t)

		form := ts.signedForm(order.TxnID, "success")
		form.Set("hash", "bogus")

		rec := ts.postForm("/api/payments/success", form, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("failure redirect records the outcome without paying the order", func(t *testing.T) {
		ts := newTestServer(t, nil)
		order := ts.createOrder(t)

		rec := ts.postForm("/api/payments/failure", ts.signedForm(order.TxnID, "failure"), "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		stored, err := ts.service.GetOrderByTxnID(context.Background(), order.TxnID)
		if err != nil {
			t.Fatal(err)
		}
		if stored.IsPaid {
			t.Error("expected order unpaid")
		}
		if stored.PaymentResult == nil || stored.PaymentResult.Status != "failure" {
			t.Error("expected failure result attached")
		}
	})
}

func TestInitiatePaymentEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	order := ts.createOrder(t)

	rec := ts.postJSON(t, "/api/payments/initiate", map[string]any{
		"order_id":  order.ID,
		"firstname": "Asha",
		"email":     "asha@example.com",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		TxnID      string            `json:"txn_id"`
		PaymentURL string            `json:"payment_url"`
		Fields     map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.TxnID == "" || resp.Fields["hash"] == "" {
		t.Error("expected signed initiation fields")
	}
	if resp.PaymentURL == "" {
		t.Error("expected a payment url")
	}

	t.Run("already paid order conflicts", func(t *testing.T) {
		form := ts.signedForm(resp.TxnID, "success")
		if rec := ts.postForm("/api/payments/webhook", form, ""); rec.Code != http.StatusOK {
			t.Fatalf("webhook: expected 200, got %d", rec.Code)
		}

		rec := ts.postJSON(t, "/api/payments/initiate", map[string]any{
			"order_id": order.ID,
			"email":    "asha@example.com",
		})
		if rec.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", rec.Code)
		}
	})
}
