package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/supermandi/api/internal/database"
	"golang.org/x/sync/errgroup"
)

// istLocation is the timezone used for daily reporting boundaries.
var istLocation *time.Location

func init() {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		// Fallback for environments without tzdata.
		loc = time.FixedZone("IST", 5*60*60+30*60)
	}
	istLocation = loc
}

const (
	dashboardTopItems    = 5
	dashboardCollections = 10
	dashboardPurchases   = 10
)

// DashboardStore defines the database methods needed by the dashboard
// handler. Satisfied by *database.Queries.
type DashboardStore interface {
	GetStoreSalesSummary(ctx context.Context, arg database.GetStoreSalesSummaryParams) (database.GetStoreSalesSummaryRow, error)
	GetPaymentModeBreakdown(ctx context.Context, arg database.GetPaymentModeBreakdownParams) ([]database.GetPaymentModeBreakdownRow, error)
	GetTopSellingItems(ctx context.Context, arg database.GetTopSellingItemsParams) ([]database.GetTopSellingItemsRow, error)
	ListCollectionsByStore(ctx context.Context, arg database.ListCollectionsByStoreParams) ([]database.Collection, error)
	ListPurchasesByStore(ctx context.Context, arg database.ListPurchasesByStoreParams) ([]database.Purchase, error)
	CountPendingSales(ctx context.Context, storeID uuid.UUID) (int64, error)
}

// DashboardHandler serves the per-store daily snapshot.
type DashboardHandler struct {
	store DashboardStore
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(store DashboardStore) *DashboardHandler {
	return &DashboardHandler{store: store}
}

// RegisterRoutes registers dashboard endpoints on the given Chi router.
func (h *DashboardHandler) RegisterRoutes(r chi.Router) {
	r.Get("/stores/{storeId}/dashboard", h.GetDashboard)
}

// --- Response types ---

type dashboardResponse struct {
	Date         string                    `json:"date"`
	Sales        salesSummaryResponse      `json:"sales"`
	PaymentModes []paymentModeResponse     `json:"paymentModes"`
	TopItems     []topItemResponse         `json:"topItems"`
	Collections  []collectionResponse      `json:"collections"`
	Purchases    []purchaseSummaryResponse `json:"purchases"`
	PendingSales int64                     `json:"pendingSales"`
}

type salesSummaryResponse struct {
	SaleCount  int64 `json:"saleCount"`
	TotalMinor int64 `json:"totalMinor"`
}

type paymentModeResponse struct {
	Mode         string `json:"mode"`
	PaymentCount int64  `json:"paymentCount"`
	AmountMinor  int64  `json:"amountMinor"`
}

type topItemResponse struct {
	Name          string `json:"name"`
	TotalQuantity int64  `json:"totalQuantity"`
	TotalMinor    int64  `json:"totalMinor"`
}

type collectionResponse struct {
	CollectionID uuid.UUID `json:"collectionId"`
	AmountMinor  int64     `json:"amountMinor"`
	Mode         string    `json:"mode"`
	Reference    string    `json:"reference,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}

type purchaseSummaryResponse struct {
	PurchaseID   uuid.UUID `json:"purchaseId"`
	SupplierName string    `json:"supplierName,omitempty"`
	TotalMinor   int64     `json:"totalMinor"`
	Currency     string    `json:"currency"`
	CreatedAt    time.Time `json:"createdAt"`
}

// --- Handlers ---

// GetDashboard handles GET /stores/{storeId}/dashboard. An optional
// ?date=YYYY-MM-DD picks the reporting day; it defaults to today in
// IST, which is where the stores trade.
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	storeID, ok := parseStoreID(w, r)
	if !ok {
		return
	}

	day := time.Now().In(istLocation)
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, istLocation)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date, use YYYY-MM-DD"})
			return
		}
		day = parsed
	}
	startTime := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, istLocation)
	endTime := startTime.AddDate(0, 0, 1)

	var (
		summary     database.GetStoreSalesSummaryRow
		breakdown   []database.GetPaymentModeBreakdownRow
		topItems    []database.GetTopSellingItemsRow
		collections []database.Collection
		purchases   []database.Purchase
		pending     int64
	)

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		summary, err = h.store.GetStoreSalesSummary(ctx, database.GetStoreSalesSummaryParams{
			StoreID:   storeID,
			StartTime: startTime,
			EndTime:   endTime,
		})
		return err
	})
	g.Go(func() error {
		var err error
		breakdown, err = h.store.GetPaymentModeBreakdown(ctx, database.GetPaymentModeBreakdownParams{
			StoreID:   storeID,
			StartTime: startTime,
			EndTime:   endTime,
		})
		return err
	})
	g.Go(func() error {
		var err error
		topItems, err = h.store.GetTopSellingItems(ctx, database.GetTopSellingItemsParams{
			StoreID:   storeID,
			StartTime: startTime,
			EndTime:   endTime,
			Limit:     dashboardTopItems,
		})
		return err
	})
	g.Go(func() error {
		var err error
		collections, err = h.store.ListCollectionsByStore(ctx, database.ListCollectionsByStoreParams{
			StoreID: storeID,
			Limit:   dashboardCollections,
		})
		return err
	})
	g.Go(func() error {
		var err error
		purchases, err = h.store.ListPurchasesByStore(ctx, database.ListPurchasesByStoreParams{
			StoreID: storeID,
			Limit:   dashboardPurchases,
			Offset:  0,
		})
		return err
	})
	g.Go(func() error {
		var err error
		pending, err = h.store.CountPendingSales(ctx, storeID)
		return err
	})
	if err := g.Wait(); err != nil {
		log.Printf("ERROR: dashboard: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, buildDashboardResponse(startTime, summary, breakdown, topItems, collections, purchases, pending))
}

// --- Response builders ---

func buildDashboardResponse(
	day time.Time,
	summary database.GetStoreSalesSummaryRow,
	breakdown []database.GetPaymentModeBreakdownRow,
	topItems []database.GetTopSellingItemsRow,
	collections []database.Collection,
	purchases []database.Purchase,
	pending int64,
) dashboardResponse {
	resp := dashboardResponse{
		Date: day.Format("2006-01-02"),
		Sales: salesSummaryResponse{
			SaleCount:  summary.SaleCount,
			TotalMinor: summary.TotalMinor,
		},
		PaymentModes: make([]paymentModeResponse, 0, len(breakdown)),
		TopItems:     make([]topItemResponse, 0, len(topItems)),
		Collections:  make([]collectionResponse, 0, len(collections)),
		Purchases:    make([]purchaseSummaryResponse, 0, len(purchases)),
		PendingSales: pending,
	}
	for _, row := range breakdown {
		resp.PaymentModes = append(resp.PaymentModes, paymentModeResponse{
			Mode:         string(row.Mode),
			PaymentCount: row.PaymentCount,
			AmountMinor:  row.AmountMinor,
		})
	}
	for _, row := range topItems {
		resp.TopItems = append(resp.TopItems, topItemResponse{
			Name:          row.ItemName,
			TotalQuantity: row.TotalQuantity,
			TotalMinor:    row.TotalMinor,
		})
	}
	for _, c := range collections {
		col := collectionResponse{
			CollectionID: c.ID,
			AmountMinor:  c.AmountMinor,
			Mode:         c.Mode,
			Status:       c.Status,
			CreatedAt:    c.CreatedAt,
		}
		if c.Reference.Valid {
			col.Reference = c.Reference.String
		}
		resp.Collections = append(resp.Collections, col)
	}
	for _, p := range purchases {
		purchase := purchaseSummaryResponse{
			PurchaseID: p.ID,
			TotalMinor: p.TotalMinor,
			Currency:   p.Currency,
			CreatedAt:  p.CreatedAt,
		}
		if p.SupplierName.Valid {
			purchase.SupplierName = p.SupplierName.String
		}
		resp.Purchases = append(resp.Purchases, purchase)
	}
	return resp
}
