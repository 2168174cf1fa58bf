package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/supermandi/api/internal/database"
	"github.com/supermandi/api/internal/middleware"
	"github.com/supermandi/api/internal/service"
)

// SaleServicer defines the service methods needed by sale handlers.
// Satisfied by *service.SaleService; narrow interface for testability.
type SaleServicer interface {
	CreateSale(ctx context.Context, req service.CreateSaleRequest) (*service.SaleResult, error)
	ConfirmSale(ctx context.Context, storeID, saleID uuid.UUID, paymentMode string) (*service.SaleResult, error)
	CancelSale(ctx context.Context, storeID, saleID uuid.UUID) (*service.SaleResult, error)
}

// SaleHandler serves the two-phase sale flow: create PENDING, then
// confirm (deducting stock) or cancel.
type SaleHandler struct {
	svc SaleServicer
	hub Broadcaster
}

// NewSaleHandler creates a new SaleHandler.
func NewSaleHandler(svc SaleServicer, hub Broadcaster) *SaleHandler {
	return &SaleHandler{svc: svc, hub: hub}
}

// RegisterRoutes registers the sale endpoints on the given Chi router.
func (h *SaleHandler) RegisterRoutes(r chi.Router) {
	r.Post("/sales", h.Create)
	r.Post("/sales/{saleId}/confirm", h.Confirm)
	r.Post("/sales/{saleId}/cancel", h.Cancel)
}

// --- Request / Response types ---

type saleItemRequest struct {
	VariantID       string `json:"variantId"`
	ProductID       string `json:"productId"`
	GlobalProductID string `json:"globalProductId"`
	Quantity        int64  `json:"quantity"`
	PriceMinor      int64  `json:"priceMinor"`
	Name            string `json:"name"`
	Barcode         string `json:"barcode"`
}

type createSaleRequest struct {
	SaleID        string            `json:"saleId"`
	Items         []saleItemRequest `json:"items"`
	DiscountMinor int64             `json:"discountMinor"`
	Currency      string            `json:"currency"`
}

type confirmSaleRequest struct {
	PaymentMode string `json:"paymentMode"`
}

type saleItemPayload struct {
	VariantID      uuid.UUID `json:"variantId"`
	Name           string    `json:"name"`
	Quantity       int64     `json:"quantity"`
	PriceMinor     int64     `json:"priceMinor"`
	LineTotalMinor int64     `json:"lineTotalMinor"`
	Barcode        string    `json:"barcode,omitempty"`
}

type paymentPayload struct {
	PaymentID   uuid.UUID  `json:"paymentId"`
	Mode        string     `json:"mode"`
	Status      string     `json:"status"`
	AmountMinor int64      `json:"amountMinor"`
	ProviderRef string     `json:"providerRef,omitempty"`
	ConfirmedAt *time.Time `json:"confirmedAt,omitempty"`
}

type salePayload struct {
	SaleID        uuid.UUID         `json:"saleId"`
	BillRef       string            `json:"billRef"`
	Status        string            `json:"status"`
	SubtotalMinor int64             `json:"subtotalMinor"`
	DiscountMinor int64             `json:"discountMinor"`
	TotalMinor    int64             `json:"totalMinor"`
	Currency      string            `json:"currency"`
	CreatedAt     time.Time         `json:"createdAt"`
	Items         []saleItemPayload `json:"items"`
	Payment       *paymentPayload   `json:"payment,omitempty"`
}

// --- Handlers ---

// Create handles POST /sales.
func (h *SaleHandler) Create(w http.ResponseWriter, r *http.Request) {
	device := middleware.DeviceFromContext(r.Context())
	if device == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "device_unauthorized"})
		return
	}

	var req createSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	storeID := uuid.UUID(device.StoreID.Bytes)
	items := make([]service.SaleItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, service.SaleItemInput{
			VariantID:       it.VariantID,
			ProductID:       it.ProductID,
			GlobalProductID: it.GlobalProductID,
			Quantity:        it.Quantity,
			PriceMinor:      it.PriceMinor,
			Name:            it.Name,
			Barcode:         it.Barcode,
		})
	}

	result, err := h.svc.CreateSale(r.Context(), service.CreateSaleRequest{
		StoreID:       storeID,
		DeviceID:      device.ID,
		SaleID:        req.SaleID,
		Items:         items,
		DiscountMinor: req.DiscountMinor,
		Currency:      req.Currency,
	})
	if err != nil {
		// A client-supplied saleId that already exists in another store
		// hits the primary key instead of the idempotent replay path.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "sales_pkey" {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "sale_id_conflict"})
			return
		}
		writeServiceError(w, "create sale", err)
		return
	}

	status := http.StatusCreated
	if result.Existing {
		status = http.StatusOK
	} else {
		broadcast(h.hub, storeID, "sale.created", map[string]interface{}{
			"saleId":     result.Sale.ID,
			"billRef":    result.Sale.BillRef,
			"totalMinor": result.Sale.TotalMinor,
			"status":     result.Sale.Status,
		})
	}
	writeJSON(w, status, map[string]interface{}{"sale": buildSalePayload(result)})
}

// Confirm handles POST /sales/{saleId}/confirm.
func (h *SaleHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	device := middleware.DeviceFromContext(r.Context())
	if device == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "device_unauthorized"})
		return
	}

	saleID, err := uuid.Parse(chi.URLParam(r, "saleId"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sale ID"})
		return
	}

	var req confirmSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	storeID := uuid.UUID(device.StoreID.Bytes)
	result, err := h.svc.ConfirmSale(r.Context(), storeID, saleID, req.PaymentMode)
	if err != nil {
		writeServiceError(w, "confirm sale", err)
		return
	}

	broadcast(h.hub, storeID, "sale.confirmed", map[string]interface{}{
		"saleId":      result.Sale.ID,
		"billRef":     result.Sale.BillRef,
		"totalMinor":  result.Sale.TotalMinor,
		"status":      result.Sale.Status,
		"paymentMode": req.PaymentMode,
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{"sale": buildSalePayload(result)})
}

// Cancel handles POST /sales/{saleId}/cancel. Cancelling never touches
// stock: nothing was deducted while the sale was pending.
func (h *SaleHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	device := middleware.DeviceFromContext(r.Context())
	if device == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "device_unauthorized"})
		return
	}

	saleID, err := uuid.Parse(chi.URLParam(r, "saleId"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sale ID"})
		return
	}

	storeID := uuid.UUID(device.StoreID.Bytes)
	result, err := h.svc.CancelSale(r.Context(), storeID, saleID)
	if err != nil {
		writeServiceError(w, "cancel sale", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"sale": buildSalePayload(result)})
}

// --- Helpers ---

func buildSalePayload(result *service.SaleResult) salePayload {
	p := salePayload{
		SaleID:        result.Sale.ID,
		BillRef:       result.Sale.BillRef,
		Status:        string(result.Sale.Status),
		SubtotalMinor: result.Sale.SubtotalMinor,
		DiscountMinor: result.Sale.DiscountMinor,
		TotalMinor:    result.Sale.TotalMinor,
		Currency:      result.Sale.Currency,
		CreatedAt:     result.Sale.CreatedAt,
		Items:         make([]saleItemPayload, 0, len(result.Items)),
	}
	for _, it := range result.Items {
		line := saleItemPayload{
			VariantID:      it.VariantID,
			Name:           it.ItemName,
			Quantity:       it.Quantity,
			PriceMinor:     it.PriceMinor,
			LineTotalMinor: it.LineTotalMinor,
		}
		if it.Barcode.Valid {
			line.Barcode = it.Barcode.String
		}
		p.Items = append(p.Items, line)
	}
	if result.Payment != nil {
		p.Payment = buildPaymentPayload(*result.Payment)
	}
	return p
}

func buildPaymentPayload(pay database.Payment) *paymentPayload {
	p := &paymentPayload{
		PaymentID:   pay.ID,
		Mode:        string(pay.Mode),
		Status:      string(pay.Status),
		AmountMinor: pay.AmountMinor,
	}
	if pay.ProviderRef.Valid {
		p.ProviderRef = pay.ProviderRef.String
	}
	if pay.ConfirmedAt.Valid {
		t := pay.ConfirmedAt.Time
		p.ConfirmedAt = &t
	}
	return p
}
