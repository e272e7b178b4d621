package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/payflow/checkout/internal/catalog"
	"github.com/payflow/checkout/internal/orders/app"
	"github.com/payflow/checkout/internal/orders/app/commands"
	"github.com/payflow/checkout/internal/orders/app/queries"
	"github.com/payflow/checkout/internal/orders/domain"
	"github.com/payflow/checkout/internal/orders/ports"
	"github.com/payflow/checkout/internal/payu"
)

// maxWebhookBody caps gateway callback bodies; provider notifications are
// small form posts.
const maxWebhookBody = 1 << 20

// Handler exposes HTTP endpoints for order and payment operations.
type Handler struct {
	service    *app.Service
	allowedIPs []string
	logger     *slog.Logger
}

// NewHandler constructs a Handler. allowedIPs optionally restricts the
// webhook endpoint to the gateway's notification sources; empty means no
// restriction.
func NewHandler(service *app.Service, allowedIPs []string, logger *slog.Logger) *Handler {
	return &Handler{service: service, allowedIPs: allowedIPs, logger: logger}
}

// Routes binds the handlers to a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Post("/", h.createOrder)
		r.Get("/", h.listOrders)
		r.Get("/{id}", h.getOrder)
		r.Post("/{id}/cancel", h.cancelOrder)
		r.Post("/{id}/status", h.updateOrderStatus)
	})
	r.Route("/api/payments", func(r chi.Router) {
		r.Post("/initiate", h.initiatePayment)
		r.Post("/webhook", h.webhook)
		r.Post("/success", h.paymentSuccess)
		r.Post("/failure", h.paymentFailure)
	})
}

type createOrderRequest struct {
	UserID   string                 `json:"user_id"`
	Items    []createOrderItem      `json:"items"`
	Shipping domain.ShippingAddress `json:"shipping_address"`
}

type createOrderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var payload createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	cmd := commands.CreatePendingOrderCommand{
		UserID:   payload.UserID,
		Shipping: payload.Shipping,
	}
	for _, item := range payload.Items {
		cmd.Items = append(cmd.Items, commands.ItemInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	order, err := h.service.CreatePendingOrder(r.Context(), cmd)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"order": order})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	query := queries.ListOrdersQuery{
		Status: r.URL.Query().Get("status"),
		UserID: r.URL.Query().Get("user_id"),
	}
	if pageParam := r.URL.Query().Get("page"); pageParam != "" {
		if page, err := strconv.Atoi(pageParam); err == nil {
			query.Page = page
		}
	}
	if pageSizeParam := r.URL.Query().Get("page_size"); pageSizeParam != "" {
		if pageSize, err := strconv.Atoi(pageSizeParam); err == nil {
			query.PageSize = pageSize
		}
	}

	orders, err := h.service.ListOrders(r.Context(), query)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.CancelOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var payload updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	order, err := h.service.UpdateOrderStatus(r.Context(), chi.URLParam(r, "id"), domain.OrderStatus(payload.Status))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

type initiatePaymentRequest struct {
	OrderID   string `json:"order_id"`
	FirstName string `json:"firstname"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

func (h *Handler) initiatePayment(w http.ResponseWriter, r *http.Request) {
	var payload initiatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	initiation, err := h.service.InitiatePayment(r.Context(), commands.InitiatePaymentCommand{
		OrderID:   payload.OrderID,
		FirstName: payload.FirstName,
		Email:     payload.Email,
		Phone:     payload.Phone,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"txn_id":      initiation.TxnID,
		"payment_url": initiation.PaymentURL,
		"fields":      initiation.Fields,
	})
}

// webhook receives server-to-server gateway notifications. The body is
// journaled before any verdict; once the delivery is authenticated the
// response is always 200 so the gateway stops redelivering.
func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	if !h.remoteAllowed(r) {
		h.logger.WarnContext(r.Context(), "webhook from disallowed address", "remote_addr", r.RemoteAddr)
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	cmd, err := h.paymentCommandFromForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid form payload")
		return
	}

	outcome, err := h.service.ApplyPaymentConfirmation(r.Context(), cmd)
	switch {
	case errors.Is(err, ports.ErrInvalidSignature):
		writeError(w, http.StatusBadRequest, "signature verification failed")
		return
	case errors.Is(err, ports.ErrPaymentNotSuccessful):
		writeError(w, http.StatusBadRequest, "payment not successful")
		return
	case err != nil:
		h.writeServiceError(w, r, err)
		return
	}

	if outcome.ManualReview {
		h.logger.WarnContext(r.Context(), "webhook held for manual review", "txn_id", cmd.Notification.TxnID)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "OK")
}

// paymentSuccess handles the browser redirect after a completed payment. The
// signature is re-verified here; the redirect goes through the same apply
// path as the webhook, so whichever delivery lands first wins and the other
// becomes a no-op.
func (h *Handler) paymentSuccess(w http.ResponseWriter, r *http.Request) {
	cmd, err := h.paymentCommandFromForm(r)
	if err != nil {
		writeHTML(w, http.StatusBadRequest, "Payment Error", "We could not read the payment response.")
		return
	}

	outcome, err := h.service.ApplyPaymentConfirmation(r.Context(), cmd)
	switch {
	case errors.Is(err, ports.ErrInvalidSignature):
		writeHTML(w, http.StatusBadRequest, "Payment Error", "The payment response could not be verified.")
		return
	case errors.Is(err, ports.ErrPaymentNotSuccessful):
		writeHTML(w, http.StatusBadRequest, "Payment Failed", "The payment was not successful.")
		return
	case err != nil:
		h.logger.ErrorContext(r.Context(), "failed to process payment return", "error", err)
		writeHTML(w, http.StatusInternalServerError, "Payment Error", "Something went wrong while confirming your payment.")
		return
	}

	if outcome.ManualReview {
		writeHTML(w, http.StatusOK, "Payment Received", "Your payment was received and is being reviewed.")
		return
	}

	writeHTML(w, http.StatusOK, "Payment Successful", fmt.Sprintf("Your payment for order %s is confirmed.", outcome.Order.ID))
}

// paymentFailure handles the browser redirect after a failed payment.
func (h *Handler) paymentFailure(w http.ResponseWriter, r *http.Request) {
	cmd, err := h.paymentCommandFromForm(r)
	if err != nil {
		writeHTML(w, http.StatusBadRequest, "Payment Error", "We could not read the payment response.")
		return
	}

	if err := h.service.RecordPaymentFailure(r.Context(), cmd); err != nil {
		if errors.Is(err, ports.ErrInvalidSignature) {
			writeHTML(w, http.StatusBadRequest, "Payment Error", "The payment response could not be verified.")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to record payment failure", "error", err)
	}

	writeHTML(w, http.StatusOK, "Payment Failed", "Your payment was not completed. You can retry from your order page.")
}

// paymentCommandFromForm parses a form-encoded gateway callback, retaining
// the raw body for the journal.
func (h *Handler) paymentCommandFromForm(r *http.Request) (commands.ApplyPaymentCommand, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		return commands.ApplyPaymentCommand{}, fmt.Errorf("read body: %w", err)
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		return commands.ApplyPaymentCommand{}, fmt.Errorf("parse form: %w", err)
	}

	payload := make(map[string]string, len(form))
	for key := range form {
		payload[key] = form.Get(key)
	}

	return commands.ApplyPaymentCommand{
		Notification: payu.Notification{
			Key:         form.Get("key"),
			TxnID:       form.Get("txnid"),
			Amount:      form.Get("amount"),
			ProductInfo: form.Get("productinfo"),
			FirstName:   form.Get("firstname"),
			Email:       form.Get("email"),
			Status:      form.Get("status"),
			Hash:        form.Get("hash"),
		},
		Payload:      payload,
		RawBody:      body,
		RemoteAddr:   r.RemoteAddr,
		ProductsJSON: form.Get("products"),
		ShippingJSON: form.Get("shippingAddress"),
	}, nil
}

func (h *Handler) remoteAllowed(r *http.Request) bool {
	if len(h.allowedIPs) == 0 {
		return true
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	for _, allowed := range h.allowedIPs {
		if host == allowed {
			return true
		}
	}
	return false
}

// writeServiceError maps application errors onto the HTTP error taxonomy.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var stockErr *catalog.InsufficientStockError

	switch {
	case errors.Is(err, ports.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.As(err, &stockErr):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":      "insufficient stock",
			"product_id": stockErr.ProductID,
		})
	case errors.Is(err, catalog.ErrInsufficientStock):
		writeError(w, http.StatusConflict, "insufficient stock")
	case errors.Is(err, catalog.ErrProductNotFound):
		writeError(w, http.StatusBadRequest, "unknown product")
	case errors.Is(err, ports.ErrOrderAlreadyPaid):
		writeError(w, http.StatusConflict, "order already paid")
	case errors.Is(err, ports.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid order status transition")
	case isValidationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// isValidationError distinguishes command validation failures, which carry no
// wrapped sentinel, from infrastructure errors, which always wrap their cause.
func isValidationError(err error) bool {
	return errors.Unwrap(err) == nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func writeHTML(w http.ResponseWriter, status int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>%s</title></head>
<body><h1>%s</h1><p>%s</p></body>
</html>
`, title, title, message)
}
