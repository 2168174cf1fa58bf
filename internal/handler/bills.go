package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/supermandi/api/internal/database"
	"github.com/supermandi/api/internal/middleware"
)

// BillStore defines the database methods needed by bill handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type BillStore interface {
	ListSalesByStore(ctx context.Context, arg database.ListSalesByStoreParams) ([]database.Sale, error)
	GetSaleByStore(ctx context.Context, arg database.GetSaleByStoreParams) (database.Sale, error)
	ListSaleItems(ctx context.Context, saleID uuid.UUID) ([]database.SaleItem, error)
	ListPaymentsBySale(ctx context.Context, saleID pgtype.UUID) ([]database.Payment, error)
}

// BillHandler serves the bill history a device shows at the counter.
type BillHandler struct {
	store BillStore
}

// NewBillHandler creates a new BillHandler.
func NewBillHandler(store BillStore) *BillHandler {
	return &BillHandler{store: store}
}

// RegisterRoutes registers the bill endpoints on the given Chi router.
func (h *BillHandler) RegisterRoutes(r chi.Router) {
	r.Get("/bills", h.List)
	r.Get("/bills/{saleId}", h.Get)
}

// --- Response types ---

type billSummary struct {
	SaleID        uuid.UUID `json:"saleId"`
	BillRef       string    `json:"billRef"`
	Status        string    `json:"status"`
	SubtotalMinor int64     `json:"subtotalMinor"`
	DiscountMinor int64     `json:"discountMinor"`
	TotalMinor    int64     `json:"totalMinor"`
	Currency      string    `json:"currency"`
	CreatedAt     time.Time `json:"createdAt"`
}

// --- Handlers ---

// List handles GET /bills. Newest first, paged with limit and offset.
func (h *BillHandler) List(w http.ResponseWriter, r *http.Request) {
	device := middleware.DeviceFromContext(r.Context())
	if device == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "device_unauthorized"})
		return
	}

	limit := int32(20)
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		if n > 100 {
			n = 100
		}
		limit = int32(n)
	}
	offset := int32(0)
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid offset"})
			return
		}
		offset = int32(n)
	}

	sales, err := h.store.ListSalesByStore(r.Context(), database.ListSalesByStoreParams{
		StoreID: uuid.UUID(device.StoreID.Bytes),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		log.Printf("ERROR: list bills: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	bills := make([]billSummary, 0, len(sales))
	for _, s := range sales {
		bills = append(bills, billSummary{
			SaleID:        s.ID,
			BillRef:       s.BillRef,
			Status:        string(s.Status),
			SubtotalMinor: s.SubtotalMinor,
			DiscountMinor: s.DiscountMinor,
			TotalMinor:    s.TotalMinor,
			Currency:      s.Currency,
			CreatedAt:     s.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"bills": bills})
}

// Get handles GET /bills/{saleId}: one sale with its items and every
// payment recorded against it.
func (h *BillHandler) Get(w http.ResponseWriter, r *http.Request) {
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

	sale, err := h.store.GetSaleByStore(r.Context(), database.GetSaleByStoreParams{
		ID:      saleID,
		StoreID: uuid.UUID(device.StoreID.Bytes),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "sale_not_found"})
			return
		}
		log.Printf("ERROR: get bill: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListSaleItems(r.Context(), sale.ID)
	if err != nil {
		log.Printf("ERROR: list bill items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	payments, err := h.store.ListPaymentsBySale(r.Context(), pgtype.UUID{Bytes: sale.ID, Valid: true})
	if err != nil {
		log.Printf("ERROR: list bill payments: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	itemPayloads := make([]saleItemPayload, 0, len(items))
	for _, it := range items {
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
		itemPayloads = append(itemPayloads, line)
	}
	paymentPayloads := make([]*paymentPayload, 0, len(payments))
	for _, p := range payments {
		paymentPayloads = append(paymentPayloads, buildPaymentPayload(p))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sale": salePayload{
			SaleID:        sale.ID,
			BillRef:       sale.BillRef,
			Status:        string(sale.Status),
			SubtotalMinor: sale.SubtotalMinor,
			DiscountMinor: sale.DiscountMinor,
			TotalMinor:    sale.TotalMinor,
			Currency:      sale.Currency,
			CreatedAt:     sale.CreatedAt,
			Items:         itemPayloads,
		},
		"payments": paymentPayloads,
	})
}
