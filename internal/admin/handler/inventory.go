package handler

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/supermandi/api/internal/database"
)

const (
	defaultLedgerLimit = 50
	maxLedgerLimit     = 500
)

// InventoryAdminStore defines the database methods needed by inventory
// admin handlers. Satisfied by *database.Queries.
type InventoryAdminStore interface {
	ListStoreInventory(ctx context.Context, storeID uuid.UUID) ([]database.ListStoreInventoryRow, error)
	ListBulkInventoryByStore(ctx context.Context, storeID uuid.UUID) ([]database.ListBulkInventoryByStoreRow, error)
	ListLedgerByStore(ctx context.Context, arg database.ListLedgerByStoreParams) ([]database.ListLedgerByStoreRow, error)
	ListLedgerByStoreProduct(ctx context.Context, arg database.ListLedgerByStoreProductParams) ([]database.InventoryLedger, error)
	ReconcileInventory(ctx context.Context, storeID uuid.UUID) ([]database.ReconcileInventoryRow, error)
}

// InventoryHandler exposes stock views for the back office.
type InventoryHandler struct {
	store InventoryAdminStore
}

// NewInventoryHandler creates a new InventoryHandler.
func NewInventoryHandler(store InventoryAdminStore) *InventoryHandler {
	return &InventoryHandler{store: store}
}

// RegisterRoutes registers inventory admin endpoints on the given Chi router.
func (h *InventoryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/stores/{storeId}/inventory", h.GetInventory)
	r.Get("/stores/{storeId}/ledger", h.GetLedger)
	r.Get("/stores/{storeId}/reconciliation", h.Reconcile)
}

// --- Response types ---

type inventoryItemResponse struct {
	GlobalProductID  uuid.UUID `json:"globalProductId"`
	GlobalName       string    `json:"globalName"`
	StoreDisplayName string    `json:"storeDisplayName,omitempty"`
	AvailableQty     int64     `json:"availableQty"`
	SellPriceMinor   *int64    `json:"sellPriceMinor,omitempty"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type bulkInventoryResponse struct {
	ProductID    uuid.UUID `json:"productId"`
	ProductName  string    `json:"productName"`
	BaseUnit     string    `json:"baseUnit"`
	QuantityBase int64     `json:"quantityBase"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type ledgerEntryResponse struct {
	EntryID         uuid.UUID  `json:"entryId"`
	GlobalProductID uuid.UUID  `json:"globalProductId"`
	GlobalName      string     `json:"globalName,omitempty"`
	MovementType    string     `json:"movementType"`
	Quantity        int64      `json:"quantity"`
	UnitCostMinor   *int64     `json:"unitCostMinor,omitempty"`
	UnitSellMinor   *int64     `json:"unitSellMinor,omitempty"`
	Reason          string     `json:"reason,omitempty"`
	ReferenceType   string     `json:"referenceType,omitempty"`
	ReferenceID     *uuid.UUID `json:"referenceId,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

type reconciliationRowResponse struct {
	GlobalProductID uuid.UUID `json:"globalProductId"`
	GlobalName      string    `json:"globalName"`
	AvailableQty    int64     `json:"availableQty"`
	LedgerQty       int64     `json:"ledgerQty"`
	Drift           int64     `json:"drift"`
}

// --- Handlers ---

// GetInventory handles GET /stores/{storeId}/inventory. Unit-counted
// and bulk stock come back side by side.
func (h *InventoryHandler) GetInventory(w http.ResponseWriter, r *http.Request) {
	storeID, ok := parseStoreID(w, r)
	if !ok {
		return
	}

	unitRows, err := h.store.ListStoreInventory(r.Context(), storeID)
	if err != nil {
		log.Printf("ERROR: list store inventory: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	bulkRows, err := h.store.ListBulkInventoryByStore(r.Context(), storeID)
	if err != nil {
		log.Printf("ERROR: list bulk inventory: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items := make([]inventoryItemResponse, 0, len(unitRows))
	for _, row := range unitRows {
		item := inventoryItemResponse{
			GlobalProductID: row.GlobalProductID,
			GlobalName:      row.GlobalName,
			AvailableQty:    row.AvailableQty,
			UpdatedAt:       row.UpdatedAt,
		}
		if row.StoreDisplayName.Valid {
			item.StoreDisplayName = row.StoreDisplayName.String
		}
		if row.SellPriceMinor.Valid {
			price := row.SellPriceMinor.Int64
			item.SellPriceMinor = &price
		}
		items = append(items, item)
	}

	bulk := make([]bulkInventoryResponse, 0, len(bulkRows))
	for _, row := range bulkRows {
		bulk = append(bulk, bulkInventoryResponse{
			ProductID:    row.ProductID,
			ProductName:  row.ProductName,
			BaseUnit:     row.BaseUnit,
			QuantityBase: row.QuantityBase,
			UpdatedAt:    row.UpdatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"bulk":  bulk,
	})
}

// GetLedger handles GET /stores/{storeId}/ledger. An optional productId
// narrows the view to one product's movements.
func (h *InventoryHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	storeID, ok := parseStoreID(w, r)
	if !ok {
		return
	}

	limit := int32(defaultLedgerLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		if parsed > maxLedgerLimit {
			parsed = maxLedgerLimit
		}
		limit = int32(parsed)
	}

	var entries []ledgerEntryResponse
	if raw := r.URL.Query().Get("productId"); raw != "" {
		productID, err := uuid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
			return
		}
		rows, err := h.store.ListLedgerByStoreProduct(r.Context(), database.ListLedgerByStoreProductParams{
			StoreID:         storeID,
			GlobalProductID: productID,
			Limit:           limit,
		})
		if err != nil {
			log.Printf("ERROR: list product ledger: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		entries = make([]ledgerEntryResponse, 0, len(rows))
		for _, row := range rows {
			entries = append(entries, buildLedgerEntry(row, ""))
		}
	} else {
		rows, err := h.store.ListLedgerByStore(r.Context(), database.ListLedgerByStoreParams{
			StoreID: storeID,
			Limit:   limit,
		})
		if err != nil {
			log.Printf("ERROR: list store ledger: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		entries = make([]ledgerEntryResponse, 0, len(rows))
		for _, row := range rows {
			entries = append(entries, buildLedgerEntry(database.InventoryLedger{
				ID:              row.ID,
				StoreID:         row.StoreID,
				GlobalProductID: row.GlobalProductID,
				MovementType:    row.MovementType,
				Quantity:        row.Quantity,
				UnitCostMinor:   row.UnitCostMinor,
				UnitSellMinor:   row.UnitSellMinor,
				Reason:          row.Reason,
				ReferenceType:   row.ReferenceType,
				ReferenceID:     row.ReferenceID,
				CreatedAt:       row.CreatedAt,
			}, row.GlobalName))
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

// Reconcile handles GET /stores/{storeId}/reconciliation. It replays
// the ledger per product and reports any drift against the cached
// available quantity; a clean store returns all-zero drift.
func (h *InventoryHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	storeID, ok := parseStoreID(w, r)
	if !ok {
		return
	}

	rows, err := h.store.ReconcileInventory(r.Context(), storeID)
	if err != nil {
		log.Printf("ERROR: reconcile inventory: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	results := make([]reconciliationRowResponse, 0, len(rows))
	var drifted int
	for _, row := range rows {
		drift := row.LedgerQty - row.AvailableQty
		if drift != 0 {
			drifted++
		}
		results = append(results, reconciliationRowResponse{
			GlobalProductID: row.GlobalProductID,
			GlobalName:      row.GlobalName,
			AvailableQty:    row.AvailableQty,
			LedgerQty:       row.LedgerQty,
			Drift:           drift,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"products":     results,
		"driftedCount": drifted,
	})
}

// --- Response builders ---

func buildLedgerEntry(row database.InventoryLedger, globalName string) ledgerEntryResponse {
	entry := ledgerEntryResponse{
		EntryID:         row.ID,
		GlobalProductID: row.GlobalProductID,
		GlobalName:      globalName,
		MovementType:    string(row.MovementType),
		Quantity:        row.Quantity,
		CreatedAt:       row.CreatedAt,
	}
	if row.UnitCostMinor.Valid {
		v := row.UnitCostMinor.Int64
		entry.UnitCostMinor = &v
	}
	if row.UnitSellMinor.Valid {
		v := row.UnitSellMinor.Int64
		entry.UnitSellMinor = &v
	}
	if row.Reason.Valid {
		entry.Reason = row.Reason.String
	}
	if row.ReferenceType.Valid {
		entry.ReferenceType = row.ReferenceType.String
	}
	if row.ReferenceID.Valid {
		id := uuid.UUID(row.ReferenceID.Bytes)
		entry.ReferenceID = &id
	}
	return entry
}
