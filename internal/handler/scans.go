package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/supermandi/api/internal/catalog"
	"github.com/supermandi/api/internal/database"
	"github.com/supermandi/api/internal/enum"
	"github.com/supermandi/api/internal/middleware"
	"github.com/supermandi/api/internal/service"
	"github.com/supermandi/api/internal/ws"
)

// maxPriceMinor caps a selling price at one crore rupees in paise.
const maxPriceMinor = 100000000

// Broadcaster pushes store-scoped events to connected dashboards.
// Satisfied by *ws.Hub; nil disables the feed.
type Broadcaster interface {
	BroadcastToStore(storeID uuid.UUID, event ws.Event)
}

// ScanServicer defines the service methods needed by the scan handler.
// Satisfied by *service.ScanService; narrow interface for testability.
type ScanServicer interface {
	Resolve(ctx context.Context, req service.ResolveScanRequest) (*service.ResolveScanResult, error)
}

// PriceStore defines the database methods needed to set a selling
// price. Satisfied by *database.Queries.
type PriceStore interface {
	GetStoreProduct(ctx context.Context, arg database.GetStoreProductParams) (database.StoreProduct, error)
	UpdateStoreProduct(ctx context.Context, arg database.UpdateStoreProductParams) (database.StoreProduct, error)
	GetGlobalProduct(ctx context.Context, id uuid.UUID) (database.GlobalProduct, error)
	GetProductByGlobalProduct(ctx context.Context, globalProductID pgtype.UUID) (database.Product, error)
	GetDefaultVariantByProduct(ctx context.Context, productID uuid.UUID) (database.Variant, error)
	UpsertRetailerVariant(ctx context.Context, arg database.UpsertRetailerVariantParams) (database.RetailerVariant, error)
	GetStoreInventory(ctx context.Context, arg database.GetStoreInventoryParams) (database.StoreInventory, error)
}

// NewPriceStore creates a PriceStore from a DBTX (pool or tx).
type NewPriceStore func(db database.DBTX) PriceStore

// ScanHandler serves scan resolution and the price prompt that follows
// an unpriced hit.
type ScanHandler struct {
	svc      ScanServicer
	pool     service.TxBeginner
	newStore NewPriceStore
	hub      Broadcaster
}

// NewScanHandler creates a new ScanHandler.
func NewScanHandler(svc ScanServicer, pool service.TxBeginner, newStore NewPriceStore, hub Broadcaster) *ScanHandler {
	return &ScanHandler{svc: svc, pool: pool, newStore: newStore, hub: hub}
}

// RegisterRoutes registers the scan endpoints on the given Chi router.
func (h *ScanHandler) RegisterRoutes(r chi.Router) {
	r.Post("/scan/resolve", h.Resolve)
	r.Post("/products/price", h.SetPrice)
}

// --- Request / Response types ---

type resolveScanRequest struct {
	ScanValue  string `json:"scanValue"`
	Mode       string `json:"mode"`
	FormatHint string `json:"formatHint"`
	Name       string `json:"name"`
}

// productPayload is the store's view of a product, shared by the scan
// and price responses.
type productPayload struct {
	GlobalProductID    uuid.UUID  `json:"globalProductId"`
	GlobalName         string     `json:"globalName"`
	StoreDisplayName   string     `json:"storeDisplayName"`
	SellPriceMinor     *int64     `json:"sellPriceMinor"`
	PurchasePriceMinor *int64     `json:"purchasePriceMinor"`
	Unit               string     `json:"unit,omitempty"`
	Variant            string     `json:"variant,omitempty"`
	Currency           string     `json:"currency"`
	AvailableQty       int64      `json:"availableQty"`
	FirstTimeInStore   bool       `json:"is_first_time_in_store"`
	VariantID          *uuid.UUID `json:"variantId,omitempty"`
	Barcode            string     `json:"barcode,omitempty"`
}

type resolveScanResponse struct {
	Action          string          `json:"action,omitempty"`
	CodeType        string          `json:"codeType,omitempty"`
	NormalizedValue string          `json:"normalizedValue,omitempty"`
	Product         *productPayload `json:"product,omitempty"`
	NotFound        bool            `json:"product_not_found_for_store,omitempty"`
}

type setPriceRequest struct {
	ProductID  string `json:"productId"`
	PriceMinor int64  `json:"priceMinor"`
}

// --- Handlers ---

// Resolve handles POST /scan/resolve.
func (h *ScanHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	device := middleware.DeviceFromContext(r.Context())
	if device == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "device_unauthorized"})
		return
	}

	var req resolveScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	storeID := uuid.UUID(device.StoreID.Bytes)
	result, err := h.svc.Resolve(r.Context(), service.ResolveScanRequest{
		StoreID:    storeID,
		DeviceID:   device.ID,
		ScanValue:  req.ScanValue,
		FormatHint: req.FormatHint,
		Mode:       req.Mode,
		Name:       req.Name,
	})
	if err != nil {
		writeServiceError(w, "resolve scan", err)
		return
	}

	resp := resolveScanResponse{
		Action:          result.Action,
		CodeType:        result.CodeType,
		NormalizedValue: result.NormalizedValue,
		NotFound:        result.NotFound,
	}
	switch {
	case result.Match != nil:
		resp.Product = matchPayload(result.Match)
	case result.Digitised != nil:
		resp.Product = digitisePayload(result.Digitised)
	}

	if result.Action == enum.ScanActionDigitised && result.Digitised != nil {
		broadcast(h.hub, storeID, "scan.digitised", map[string]interface{}{
			"globalProductId": result.Digitised.Listing.Global.ID,
			"name":            result.Digitised.Listing.DisplayName(),
			"variantId":       result.Digitised.Variant.ID,
			"barcode":         result.Digitised.Barcode.Barcode,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// SetPrice handles POST /products/price. The product must already be
// listed for the store, which a preceding scan resolve guarantees.
func (h *ScanHandler) SetPrice(w http.ResponseWriter, r *http.Request) {
	device := middleware.DeviceFromContext(r.Context())
	if device == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "device_unauthorized"})
		return
	}

	var req setPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid_item", errors.New("productId must be a UUID")))
		return
	}
	if req.PriceMinor < 1 || req.PriceMinor > maxPriceMinor {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid_item", errors.New("priceMinor out of range")))
		return
	}

	storeID := uuid.UUID(device.StoreID.Bytes)

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin tx for set price: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(r.Context())

	store := h.newStore(tx)

	listed, err := store.GetStoreProduct(r.Context(), database.GetStoreProductParams{
		StoreID:         storeID,
		GlobalProductID: productID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product_not_found"})
			return
		}
		log.Printf("ERROR: get store product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	listed, err = store.UpdateStoreProduct(r.Context(), database.UpdateStoreProductParams{
		StoreID:         storeID,
		GlobalProductID: productID,
		SellPriceMinor:  pgtype.Int8{Int64: req.PriceMinor, Valid: true},
	})
	if err != nil {
		log.Printf("ERROR: update store product price: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	// Keep the variant-level price in step so scans that resolve through
	// the retailer variant see the same number.
	var variantID *uuid.UUID
	product, err := store.GetProductByGlobalProduct(r.Context(), pgtype.UUID{Bytes: productID, Valid: true})
	switch {
	case err == nil:
		variant, err := store.GetDefaultVariantByProduct(r.Context(), product.ID)
		switch {
		case err == nil:
			if _, err := store.UpsertRetailerVariant(r.Context(), database.UpsertRetailerVariantParams{
				StoreID:           storeID,
				VariantID:         variant.ID,
				SellingPriceMinor: pgtype.Int8{Int64: req.PriceMinor, Valid: true},
			}); err != nil {
				log.Printf("ERROR: upsert retailer variant price: %v", err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				return
			}
			variantID = &variant.ID
		case !errors.Is(err, pgx.ErrNoRows):
			log.Printf("ERROR: get default variant: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
	case !errors.Is(err, pgx.ErrNoRows):
		log.Printf("ERROR: get product for price: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	global, err := store.GetGlobalProduct(r.Context(), productID)
	if err != nil {
		log.Printf("ERROR: get global product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	available := int64(0)
	if inv, err := store.GetStoreInventory(r.Context(), database.GetStoreInventoryParams{
		StoreID:         storeID,
		GlobalProductID: productID,
	}); err == nil {
		available = inv.AvailableQty
	} else if !errors.Is(err, pgx.ErrNoRows) {
		log.Printf("ERROR: get store inventory: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit tx for set price: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	payload := listingPayload(catalog.StoreListing{
		Global:    global,
		Listed:    listed,
		Available: available,
	})
	payload.VariantID = variantID

	writeJSON(w, http.StatusOK, map[string]interface{}{"product": payload})
}

// --- Helpers ---

func listingPayload(l catalog.StoreListing) *productPayload {
	p := &productPayload{
		GlobalProductID:  l.Global.ID,
		GlobalName:       l.Global.GlobalName,
		StoreDisplayName: l.DisplayName(),
		Currency:         l.Listed.Currency,
		AvailableQty:     l.Available,
		FirstTimeInStore: l.FirstTime,
	}
	if l.Listed.SellPriceMinor.Valid {
		v := l.Listed.SellPriceMinor.Int64
		p.SellPriceMinor = &v
	}
	if l.Listed.PurchasePriceMinor.Valid {
		v := l.Listed.PurchasePriceMinor.Int64
		p.PurchasePriceMinor = &v
	}
	if l.Listed.Unit.Valid {
		p.Unit = l.Listed.Unit.String
	}
	if l.Listed.Variant.Valid {
		p.Variant = l.Listed.Variant.String
	}
	return p
}

func matchPayload(m *catalog.ScanMatch) *productPayload {
	p := listingPayload(m.Listing)
	if m.VariantID != uuid.Nil {
		id := m.VariantID
		p.VariantID = &id
	}
	if m.SellPriceMinor.Valid {
		v := m.SellPriceMinor.Int64
		p.SellPriceMinor = &v
	}
	return p
}

func digitisePayload(d *catalog.DigitiseResult) *productPayload {
	p := listingPayload(d.Listing)
	id := d.Variant.ID
	p.VariantID = &id
	p.Barcode = d.Barcode.Barcode
	return p
}

// broadcast marshals and pushes one store event; the feed is best
// effort and never fails the request.
func broadcast(hub Broadcaster, storeID uuid.UUID, eventType string, payload interface{}) {
	if hub == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ERROR: marshal %s event: %v", eventType, err)
		return
	}
	hub.BroadcastToStore(storeID, ws.Event{Type: eventType, Payload: raw})
}
