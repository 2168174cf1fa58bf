package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/supermandi/api/internal/middleware"
	"github.com/supermandi/api/internal/service"
)

// PurchaseServicer defines the service methods needed by purchase
// handlers. Satisfied by *service.PurchaseService; narrow interface
// for testability.
type PurchaseServicer interface {
	Create(ctx context.Context, req service.CreatePurchaseRequest) (*service.PurchaseResult, error)
}

// PurchaseHandler records stock received from suppliers.
type PurchaseHandler struct {
	svc PurchaseServicer
	hub Broadcaster
}

// NewPurchaseHandler creates a new PurchaseHandler.
func NewPurchaseHandler(svc PurchaseServicer, hub Broadcaster) *PurchaseHandler {
	return &PurchaseHandler{svc: svc, hub: hub}
}

// RegisterRoutes registers the purchase endpoints on the given Chi router.
func (h *PurchaseHandler) RegisterRoutes(r chi.Router) {
	r.Post("/purchases", h.Create)
}

// --- Request / Response types ---

type purchaseItemRequest struct {
	ProductID         string          `json:"productId"`
	Barcode           string          `json:"barcode"`
	Name              string          `json:"name"`
	Quantity          decimal.Decimal `json:"quantity"`
	Unit              string          `json:"unit"`
	UnitCostMinor     int64           `json:"unitCostMinor"`
	SellingPriceMinor *int64          `json:"sellingPriceMinor"`
}

type createPurchaseRequest struct {
	PurchaseID   string                `json:"purchaseId"`
	SupplierName string                `json:"supplierName"`
	Currency     string                `json:"currency"`
	SkipIfExists bool                  `json:"skipIfExists"`
	Items        []purchaseItemRequest `json:"items"`
}

type purchaseItemPayload struct {
	ProductID      uuid.UUID  `json:"productId"`
	VariantID      *uuid.UUID `json:"variantId,omitempty"`
	Quantity       int64      `json:"quantity"`
	Unit           string     `json:"unit,omitempty"`
	QuantityBase   *int64     `json:"quantityBase,omitempty"`
	UnitCostMinor  int64      `json:"unitCostMinor"`
	LineTotalMinor int64      `json:"lineTotalMinor"`
}

type purchasePayload struct {
	PurchaseID   uuid.UUID             `json:"purchaseId"`
	SupplierName string                `json:"supplierName,omitempty"`
	TotalMinor   int64                 `json:"totalMinor"`
	Currency     string                `json:"currency"`
	CreatedAt    time.Time             `json:"createdAt"`
	Items        []purchaseItemPayload `json:"items"`
}

// --- Handlers ---

// Create handles POST /purchases.
func (h *PurchaseHandler) Create(w http.ResponseWriter, r *http.Request) {
	device := middleware.DeviceFromContext(r.Context())
	if device == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "device_unauthorized"})
		return
	}

	var req createPurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	storeID := uuid.UUID(device.StoreID.Bytes)
	items := make([]service.PurchaseItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, service.PurchaseItemInput{
			ProductID:         it.ProductID,
			Barcode:           it.Barcode,
			Name:              it.Name,
			Quantity:          it.Quantity,
			Unit:              it.Unit,
			UnitCostMinor:     it.UnitCostMinor,
			SellingPriceMinor: it.SellingPriceMinor,
		})
	}

	result, err := h.svc.Create(r.Context(), service.CreatePurchaseRequest{
		StoreID:      storeID,
		PurchaseID:   req.PurchaseID,
		SupplierName: req.SupplierName,
		Currency:     req.Currency,
		SkipIfExists: req.SkipIfExists,
		Items:        items,
	})
	if err != nil {
		writeServiceError(w, "create purchase", err)
		return
	}

	status := http.StatusCreated
	if result.Existing {
		status = http.StatusOK
	} else {
		broadcast(h.hub, storeID, "purchase.recorded", map[string]interface{}{
			"purchaseId": result.Purchase.ID,
			"totalMinor": result.Purchase.TotalMinor,
			"itemCount":  len(result.Items),
		})
	}
	writeJSON(w, status, map[string]interface{}{"purchase": buildPurchasePayload(result)})
}

// --- Helpers ---

func buildPurchasePayload(result *service.PurchaseResult) purchasePayload {
	p := purchasePayload{
		PurchaseID: result.Purchase.ID,
		TotalMinor: result.Purchase.TotalMinor,
		Currency:   result.Purchase.Currency,
		CreatedAt:  result.Purchase.CreatedAt,
		Items:      make([]purchaseItemPayload, 0, len(result.Items)),
	}
	if result.Purchase.SupplierName.Valid {
		p.SupplierName = result.Purchase.SupplierName.String
	}
	for _, it := range result.Items {
		line := purchaseItemPayload{
			ProductID:      it.ProductID,
			Quantity:       it.Quantity,
			UnitCostMinor:  it.UnitCostMinor,
			LineTotalMinor: it.LineTotalMinor,
		}
		if it.VariantID.Valid {
			id := uuid.UUID(it.VariantID.Bytes)
			line.VariantID = &id
		}
		if it.Unit.Valid {
			line.Unit = it.Unit.String
		}
		if it.QuantityBase.Valid {
			v := it.QuantityBase.Int64
			line.QuantityBase = &v
		}
		p.Items = append(p.Items, line)
	}
	return p
}
