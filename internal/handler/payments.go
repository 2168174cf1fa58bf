package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/supermandi/api/internal/database"
	"github.com/supermandi/api/internal/middleware"
	"github.com/supermandi/api/internal/service"
)

// PaymentServicer defines the service methods needed by payment
// handlers. Satisfied by *service.SaleService; narrow interface for
// testability.
type PaymentServicer interface {
	ConfirmSale(ctx context.Context, storeID, saleID uuid.UUID, paymentMode string) (*service.SaleResult, error)
	ConfirmUpiManual(ctx context.Context, storeID, paymentID uuid.UUID) (*service.SaleResult, error)
	InitUpiPayment(ctx context.Context, storeID, saleID uuid.UUID, upiIntent, transactionID string) (*service.UpiInitResult, error)
}

// PaymentHandler settles sales. UPI runs in two steps (init, then
// manual confirmation on the device); cash and due settle in one.
type PaymentHandler struct {
	svc PaymentServicer
	hub Broadcaster
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(svc PaymentServicer, hub Broadcaster) *PaymentHandler {
	return &PaymentHandler{svc: svc, hub: hub}
}

// RegisterRoutes registers the payment endpoints on the given Chi router.
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/payments/upi/init", h.InitUpi)
	r.Post("/payments/upi/confirm-manual", h.ConfirmUpiManual)
	r.Post("/payments/cash", h.ConfirmCash)
	r.Post("/payments/due", h.ConfirmDue)
}

// --- Request / Response types ---

type upiInitRequest struct {
	SaleID        string `json:"saleId"`
	UpiIntent     string `json:"upiIntent"`
	TransactionID string `json:"transactionId"`
}

type upiInitResponse struct {
	PaymentID   uuid.UUID `json:"paymentId"`
	BillRef     string    `json:"billRef"`
	AmountMinor int64     `json:"amountMinor"`
	StoreName   string    `json:"storeName"`
	UpiVpa      string    `json:"upiVpa"`
}

type upiConfirmRequest struct {
	PaymentID string `json:"paymentId"`
}

type settleRequest struct {
	SaleID string `json:"saleId"`
}

// --- Handlers ---

// InitUpi handles POST /payments/upi/init. The server hands back the
// raw fields; the device composes the UPI intent itself.
func (h *PaymentHandler) InitUpi(w http.ResponseWriter, r *http.Request) {
	device := middleware.DeviceFromContext(r.Context())
	if device == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "device_unauthorized"})
		return
	}

	var req upiInitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	saleID, err := uuid.Parse(req.SaleID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sale ID"})
		return
	}

	storeID := uuid.UUID(device.StoreID.Bytes)
	result, err := h.svc.InitUpiPayment(r.Context(), storeID, saleID, req.UpiIntent, req.TransactionID)
	if err != nil {
		writeServiceError(w, "init upi payment", err)
		return
	}

	writeJSON(w, http.StatusOK, upiInitResponse{
		PaymentID:   result.PaymentID,
		BillRef:     result.BillRef,
		AmountMinor: result.AmountMinor,
		StoreName:   result.StoreName,
		UpiVpa:      result.UpiVpa,
	})
}

// ConfirmUpiManual handles POST /payments/upi/confirm-manual.
func (h *PaymentHandler) ConfirmUpiManual(w http.ResponseWriter, r *http.Request) {
	device := middleware.DeviceFromContext(r.Context())
	if device == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "device_unauthorized"})
		return
	}

	var req upiConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	paymentID, err := uuid.Parse(req.PaymentID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment ID"})
		return
	}

	storeID := uuid.UUID(device.StoreID.Bytes)
	result, err := h.svc.ConfirmUpiManual(r.Context(), storeID, paymentID)
	if err != nil {
		writeServiceError(w, "confirm upi payment", err)
		return
	}

	h.broadcastConfirmed(storeID, result, string(database.PaymentModeUPI))
	writeJSON(w, http.StatusOK, map[string]interface{}{"sale": buildSalePayload(result)})
}

// ConfirmCash handles POST /payments/cash.
func (h *PaymentHandler) ConfirmCash(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, string(database.PaymentModeCASH))
}

// ConfirmDue handles POST /payments/due. The sale settles as a credit
// entry to collect later.
func (h *PaymentHandler) ConfirmDue(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, string(database.PaymentModeDUE))
}

// --- Helpers ---

func (h *PaymentHandler) settle(w http.ResponseWriter, r *http.Request, mode string) {
	device := middleware.DeviceFromContext(r.Context())
	if device == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "device_unauthorized"})
		return
	}

	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	saleID, err := uuid.Parse(req.SaleID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sale ID"})
		return
	}

	storeID := uuid.UUID(device.StoreID.Bytes)
	result, err := h.svc.ConfirmSale(r.Context(), storeID, saleID, mode)
	if err != nil {
		writeServiceError(w, "settle sale", err)
		return
	}

	h.broadcastConfirmed(storeID, result, mode)
	writeJSON(w, http.StatusOK, map[string]interface{}{"sale": buildSalePayload(result)})
}

func (h *PaymentHandler) broadcastConfirmed(storeID uuid.UUID, result *service.SaleResult, mode string) {
	broadcast(h.hub, storeID, "sale.confirmed", map[string]interface{}{
		"saleId":      result.Sale.ID,
		"billRef":     result.Sale.BillRef,
		"totalMinor":  result.Sale.TotalMinor,
		"status":      result.Sale.Status,
		"paymentMode": mode,
	})
}
