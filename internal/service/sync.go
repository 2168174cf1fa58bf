package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/supermandi/api/internal/catalog"
	"github.com/supermandi/api/internal/database"
	"github.com/supermandi/api/internal/enum"
)

// Stable rejection strings; clients switch on them to decide whether a
// queued event is retried or abandoned.
var (
	errUnknownEventType = errors.New("unknown event type")
	errInvalidPayload   = errors.New("invalid payload")
)

// SyncStore defines the DB methods needed to replay offline events: the
// full sale and purchase pipelines plus the processed-event guard,
// collections and device bookkeeping.
// Satisfied by *database.Queries (and its WithTx variant).
type SyncStore interface {
	SaleStore
	PurchaseStore
	InsertProcessedEvent(ctx context.Context, arg database.InsertProcessedEventParams) (int64, error)
	GetSaleByOfflineReceipt(ctx context.Context, arg database.GetSaleByOfflineReceiptParams) (database.Sale, error)
	ListPaymentsBySale(ctx context.Context, saleID pgtype.UUID) ([]database.Payment, error)
	GetCollectionByStore(ctx context.Context, arg database.GetCollectionByStoreParams) (database.Collection, error)
	CreateCollection(ctx context.Context, arg database.CreateCollectionParams) (database.Collection, error)
	UpdateDeviceHeartbeat(ctx context.Context, arg database.UpdateDeviceHeartbeatParams) error
	UpdateDeviceSynced(ctx context.Context, arg database.UpdateDeviceSyncedParams) error
}

// NewSyncStore creates a SyncStore from a DBTX (pool or tx).
type NewSyncStore func(db database.DBTX) SyncStore

// SyncPool is the pool surface the sync engine needs: heartbeat updates
// run directly on the pool while every event gets its own transaction.
// Satisfied by *pgxpool.Pool.
type SyncPool interface {
	TxBeginner
	database.DBTX
}

// SyncEvent is one entry of a device's offline outbox.
type SyncEvent struct {
	EventID string          `json:"eventId"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// SyncRequest is a device's accumulated offline batch.
type SyncRequest struct {
	StoreID            uuid.UUID
	DeviceID           uuid.UUID
	PendingOutboxCount int32
	AppVersion         string
	Events             []SyncEvent
}

// SyncResult is the per-event outcome a device reconciles its outbox
// against. Applied and duplicate_ignored both clear the event.
type SyncResult struct {
	EventID string `json:"eventId"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// SaleMapping tells the device which server-side sale and bill
// reference a locally created sale became.
type SaleMapping struct {
	LocalSaleID string `json:"localSaleId"`
	SaleID      string `json:"saleId"`
	BillRef     string `json:"billRef"`
}

// CollectionMapping pairs a locally recorded collection with its
// server-side row.
type CollectionMapping struct {
	LocalCollectionID string `json:"localCollectionId"`
	CollectionID      string `json:"collectionId"`
}

// SyncResponse summarizes a processed batch.
type SyncResponse struct {
	Results            []SyncResult        `json:"results"`
	SaleMappings       []SaleMapping       `json:"saleMappings"`
	CollectionMappings []CollectionMapping `json:"collectionMappings"`
}

// Event payloads. Unknown JSON fields are ignored; required fields are
// validated per type after decoding.

type productUpsertPayload struct {
	Barcode           string `json:"barcode"`
	Name              string `json:"name"`
	SellingPriceMinor *int64 `json:"sellingPriceMinor"`
}

type productPriceSetPayload struct {
	VariantID         string `json:"variantId"`
	Barcode           string `json:"barcode"`
	SellingPriceMinor int64  `json:"sellingPriceMinor"`
}

type saleItemPayload struct {
	VariantID       string `json:"variantId"`
	ProductID       string `json:"productId"`
	GlobalProductID string `json:"globalProductId"`
	Quantity        int64  `json:"quantity"`
	PriceMinor      int64  `json:"priceMinor"`
	Name            string `json:"name"`
	Barcode         string `json:"barcode"`
}

type saleCreatedPayload struct {
	SaleID            string            `json:"saleId"`
	OfflineReceiptRef string            `json:"offlineReceiptRef"`
	DiscountMinor     int64             `json:"discountMinor"`
	Currency          string            `json:"currency"`
	Items             []saleItemPayload `json:"items"`
}

type paymentPayload struct {
	SaleID            string `json:"saleId"`
	OfflineReceiptRef string `json:"offlineReceiptRef"`
}

type collectionCreatedPayload struct {
	CollectionID string `json:"collectionId"`
	AmountMinor  int64  `json:"amountMinor"`
	Mode         string `json:"mode"`
	Reference    string `json:"reference"`
}

type purchaseItemPayload struct {
	ProductID         string          `json:"productId"`
	Barcode           string          `json:"barcode"`
	Name              string          `json:"name"`
	Quantity          decimal.Decimal `json:"quantity"`
	Unit              string          `json:"unit"`
	UnitCostMinor     int64           `json:"unitCostMinor"`
	SellingPriceMinor *int64          `json:"sellingPriceMinor"`
}

type purchaseSubmitPayload struct {
	PurchaseID   string                `json:"purchaseId"`
	SupplierName string                `json:"supplierName"`
	Currency     string                `json:"currency"`
	Items        []purchaseItemPayload `json:"items"`
}

// SyncService replays a device's offline outbox.
type SyncService struct {
	pool     SyncPool
	newStore NewSyncStore
}

// NewSyncService creates a new SyncService.
func NewSyncService(pool SyncPool, newStore NewSyncStore) *SyncService {
	return &SyncService{pool: pool, newStore: newStore}
}

// eventOutcome is the committed result of one event: its status plus
// any id mapping the device needs to reconcile local rows.
type eventOutcome struct {
	result  SyncResult
	saleMap *SaleMapping
	collMap *CollectionMapping
}

func rejectedOutcome(eventID, msg string) eventOutcome {
	return eventOutcome{result: SyncResult{
		EventID: eventID,
		Status:  enum.SyncStatusRejected,
		Error:   msg,
	}}
}

// ProcessBatch applies a device's offline events one transaction at a
// time. A rejected event never aborts the rest of the batch. The
// device's heartbeat brackets the run: pendingOutboxCount on entry,
// lastSyncAt with the remaining count on exit.
func (s *SyncService) ProcessBatch(ctx context.Context, req SyncRequest) (*SyncResponse, error) {
	poolStore := s.newStore(s.pool)
	if err := poolStore.UpdateDeviceHeartbeat(ctx, database.UpdateDeviceHeartbeatParams{
		ID:                 req.DeviceID,
		PendingOutboxCount: req.PendingOutboxCount,
		AppVersion:         optionalText(req.AppVersion),
	}); err != nil {
		return nil, fmt.Errorf("update heartbeat: %w", err)
	}

	resp := &SyncResponse{
		Results:            make([]SyncResult, 0, len(req.Events)),
		SaleMappings:       []SaleMapping{},
		CollectionMappings: []CollectionMapping{},
	}
	var settled int32
	for _, ev := range req.Events {
		outcome := s.processEvent(ctx, req, ev)
		resp.Results = append(resp.Results, outcome.result)
		if outcome.saleMap != nil {
			resp.SaleMappings = append(resp.SaleMappings, *outcome.saleMap)
		}
		if outcome.collMap != nil {
			resp.CollectionMappings = append(resp.CollectionMappings, *outcome.collMap)
		}
		if outcome.result.Status != enum.SyncStatusRejected {
			settled++
		}
	}

	remaining := req.PendingOutboxCount - settled
	if remaining < 0 {
		remaining = 0
	}
	if err := poolStore.UpdateDeviceSynced(ctx, database.UpdateDeviceSyncedParams{
		ID:                 req.DeviceID,
		PendingOutboxCount: remaining,
	}); err != nil {
		return nil, fmt.Errorf("update sync state: %w", err)
	}
	return resp, nil
}

// processEvent wraps one event in its own transaction. Bill reference
// collisions, serialization conflicts and races against a concurrent
// replay of the same rows restart the event; the retried probe then
// finds the persisted row and reports a duplicate instead.
func (s *SyncService) processEvent(ctx context.Context, req SyncRequest, ev SyncEvent) eventOutcome {
	eventID := strings.TrimSpace(ev.EventID)
	if eventID == "" {
		return rejectedOutcome(ev.EventID, "event id required")
	}
	eventType := strings.ToUpper(strings.TrimSpace(ev.Type))

	var lastErr error
	for attempt := 0; attempt <= maxSaleTxRetries; attempt++ {
		outcome, err := s.applyEventTx(ctx, req, eventID, eventType, ev.Payload)
		if err == nil {
			return outcome
		}
		if isBillRefConflict(err) || isSerializationFailure(err) || isReplayConflict(err) {
			lastErr = err
			continue
		}
		return rejectedOutcome(eventID, err.Error())
	}
	return rejectedOutcome(eventID, lastErr.Error())
}

func (s *SyncService) applyEventTx(ctx context.Context, req SyncRequest, eventID, eventType string, payload json.RawMessage) (eventOutcome, error) {
	var txOpts pgx.TxOptions
	if eventType == enum.EventTypeSaleCreated {
		// The only replayed type that verifies and deducts stock.
		txOpts.IsoLevel = pgx.Serializable
	}
	tx, err := s.pool.BeginTx(ctx, txOpts)
	if err != nil {
		return eventOutcome{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	rows, err := store.InsertProcessedEvent(ctx, database.InsertProcessedEventParams{
		EventID:   eventID,
		DeviceID:  req.DeviceID,
		StoreID:   req.StoreID,
		EventType: eventType,
	})
	if err != nil {
		return eventOutcome{}, fmt.Errorf("record event: %w", err)
	}
	if rows == 0 {
		// Replayed event id: leave the transaction uncommitted and
		// re-emit the mapping the device may have lost.
		outcome := eventOutcome{result: SyncResult{EventID: eventID, Status: enum.SyncStatusDuplicateIgnored}}
		switch eventType {
		case enum.EventTypeSaleCreated:
			outcome.saleMap = lookupSaleMapping(ctx, store, req.StoreID, payload)
		case enum.EventTypeCollectionCreated:
			outcome.collMap = lookupCollectionMapping(ctx, store, req.StoreID, payload)
		}
		return outcome, nil
	}

	outcome := eventOutcome{result: SyncResult{EventID: eventID, Status: enum.SyncStatusApplied}}
	var existing bool
	switch eventType {
	case enum.EventTypeProductUpsert:
		err = applyProductUpsert(ctx, store, req.StoreID, payload)
	case enum.EventTypeProductPriceSet:
		err = applyProductPriceSet(ctx, store, req.StoreID, payload)
	case enum.EventTypeSaleCreated:
		outcome.saleMap, existing, err = applySyncSale(ctx, store, req, payload)
	case enum.EventTypePaymentCash:
		err = applySyncPayment(ctx, store, req.StoreID, payload, database.PaymentModeCASH)
	case enum.EventTypePaymentDue:
		err = applySyncPayment(ctx, store, req.StoreID, payload, database.PaymentModeDUE)
	case enum.EventTypeCollectionCreated:
		outcome.collMap, existing, err = applySyncCollection(ctx, store, req, payload)
	case enum.EventTypePurchaseSubmit, enum.EventTypePurchaseCreated:
		err = applySyncPurchase(ctx, store, req.StoreID, payload)
	default:
		return eventOutcome{}, errUnknownEventType
	}
	if err != nil {
		return eventOutcome{}, err
	}
	if existing {
		// The rows were persisted under an earlier event id. Commit so
		// this event id joins the processed set, but report a duplicate.
		outcome.result.Status = enum.SyncStatusDuplicateIgnored
	}

	if err := tx.Commit(ctx); err != nil {
		return eventOutcome{}, fmt.Errorf("commit tx: %w", err)
	}
	return outcome, nil
}

// --- Event appliers ---

// applyProductUpsert makes sure a device-entered product exists and is
// listed for the store, registering its selling price when given.
func applyProductUpsert(ctx context.Context, store SyncStore, storeID uuid.UUID, payload json.RawMessage) error {
	var p productUpsertPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return errInvalidPayload
	}
	if strings.TrimSpace(p.Barcode) == "" && strings.TrimSpace(p.Name) == "" {
		return ErrInvalidItem
	}

	_, variantID, err := resolvePurchaseProduct(ctx, store, storeID, PurchaseItemInput{
		Barcode: p.Barcode,
		Name:    p.Name,
	})
	if err != nil {
		return err
	}
	if err := store.LinkRetailerVariant(ctx, database.LinkRetailerVariantParams{
		StoreID:   storeID,
		VariantID: variantID.Bytes,
	}); err != nil {
		return fmt.Errorf("link variant: %w", err)
	}
	if p.SellingPriceMinor != nil {
		if _, err := store.UpsertRetailerVariant(ctx, database.UpsertRetailerVariantParams{
			StoreID:           storeID,
			VariantID:         variantID.Bytes,
			SellingPriceMinor: pgtype.Int8{Int64: *p.SellingPriceMinor, Valid: true},
		}); err != nil {
			return fmt.Errorf("register selling price: %w", err)
		}
	}
	return nil
}

// applyProductPriceSet records a device-set selling price. An unknown
// barcode is digitised first so price events survive arriving before
// their product upsert.
func applyProductPriceSet(ctx context.Context, store SyncStore, storeID uuid.UUID, payload json.RawMessage) error {
	var p productPriceSetPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return errInvalidPayload
	}
	if p.SellingPriceMinor <= 0 {
		return fmt.Errorf("sellingPriceMinor: %w", ErrInvalidItem)
	}

	variantID, err := parseOptionalID(p.VariantID)
	if err != nil {
		return fmt.Errorf("variantId: %w", ErrInvalidItem)
	}
	if variantID != uuid.Nil {
		if _, err := store.GetVariant(ctx, variantID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return catalog.ErrVariantNotFound
			}
			return fmt.Errorf("get variant: %w", err)
		}
	} else {
		if strings.TrimSpace(p.Barcode) == "" {
			return fmt.Errorf("variantId or barcode: %w", ErrInvalidItem)
		}
		_, pgVariantID, err := resolvePurchaseProduct(ctx, store, storeID, PurchaseItemInput{Barcode: p.Barcode})
		if err != nil {
			return err
		}
		variantID = pgVariantID.Bytes
	}

	if _, err := store.UpsertRetailerVariant(ctx, database.UpsertRetailerVariantParams{
		StoreID:           storeID,
		VariantID:         variantID,
		SellingPriceMinor: pgtype.Int8{Int64: p.SellingPriceMinor, Valid: true},
	}); err != nil {
		return fmt.Errorf("register selling price: %w", err)
	}
	return nil
}

// applySyncSale replays a checkout the device completed offline. The
// sale lands in the CREATED state with its stock already committed;
// payment events settle it afterwards.
func applySyncSale(ctx context.Context, store SyncStore, req SyncRequest, payload json.RawMessage) (*SaleMapping, bool, error) {
	var p saleCreatedPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, false, errInvalidPayload
	}
	clientID, err := parseClientID(p.SaleID)
	if err != nil || !clientID.Valid {
		return nil, false, fmt.Errorf("saleId: %w", ErrInvalidItem)
	}

	// The same checkout can come back under a fresh event id after the
	// device rebuilds its outbox. The sale row, not the event id, is
	// authoritative.
	if sale, ok, err := findSyncSale(ctx, store, req.StoreID, p.SaleID, p.OfflineReceiptRef); err != nil {
		return nil, false, err
	} else if ok {
		return saleMappingFor(p.SaleID, sale), true, nil
	}

	if len(p.Items) == 0 {
		return nil, false, ErrItemsRequired
	}
	items := make([]SaleItemInput, 0, len(p.Items))
	for _, it := range p.Items {
		items = append(items, SaleItemInput{
			VariantID:       it.VariantID,
			ProductID:       it.ProductID,
			GlobalProductID: it.GlobalProductID,
			Quantity:        it.Quantity,
			PriceMinor:      it.PriceMinor,
			Name:            it.Name,
			Barcode:         it.Barcode,
		})
	}
	if err := validateSaleItems(items); err != nil {
		return nil, false, err
	}

	lines, err := resolveSaleInputs(ctx, store, req.StoreID, items)
	if err != nil {
		return nil, false, err
	}
	if err := ensureSaleAvailability(ctx, store, req.StoreID, lines); err != nil {
		return nil, false, err
	}

	subtotal, total := saleTotals(lines, p.DiscountMinor)
	billRef, err := newBillRef()
	if err != nil {
		return nil, false, err
	}
	currency := strings.TrimSpace(p.Currency)
	if currency == "" {
		currency = catalog.DefaultCurrency
	}

	sale, err := store.CreateSale(ctx, database.CreateSaleParams{
		ID:                clientID,
		StoreID:           req.StoreID,
		DeviceID:          pgtype.UUID{Bytes: req.DeviceID, Valid: req.DeviceID != uuid.Nil},
		BillRef:           billRef,
		OfflineReceiptRef: optionalText(p.OfflineReceiptRef),
		SubtotalMinor:     subtotal,
		DiscountMinor:     max64(0, p.DiscountMinor),
		TotalMinor:        total,
		Currency:          currency,
		Status:            database.SaleStatusCREATED,
	})
	if err != nil {
		return nil, false, fmt.Errorf("create sale: %w", err)
	}

	for i, ln := range lines {
		if _, err := store.CreateSaleItem(ctx, database.CreateSaleItemParams{
			SaleID:         sale.ID,
			VariantID:      ln.variant.ID,
			Quantity:       ln.quantity,
			PriceMinor:     ln.priceMinor,
			LineTotalMinor: ln.quantity * ln.priceMinor,
			ItemName:       ln.name,
			Barcode:        ln.barcode,
		}); err != nil {
			return nil, false, fmt.Errorf("create sale item[%d]: %w", i, err)
		}
	}

	// The device already handed the goods over; commit the stock now.
	if err := deductSaleLines(ctx, store, req.StoreID, sale.ID, lines); err != nil {
		return nil, false, err
	}
	return saleMappingFor(p.SaleID, sale), false, nil
}

// applySyncPayment settles a synced sale. The confirmation transition
// is shared with the interactive path, so a replayed payment against an
// online PENDING cart still deducts its stock exactly once.
func applySyncPayment(ctx context.Context, store SyncStore, storeID uuid.UUID, payload json.RawMessage, mode database.PaymentMode) error {
	var p paymentPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return errInvalidPayload
	}
	sale, ok, err := findSyncSale(ctx, store, storeID, p.SaleID, p.OfflineReceiptRef)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSaleNotFound
	}

	_, target, payStatus, err := parsePaymentMode(string(mode))
	if err != nil {
		return err
	}

	if sale.Status == target {
		// Already settled by an earlier replay. Backfill the payment row
		// if the earlier attempt lost it.
		payments, err := store.ListPaymentsBySale(ctx, pgUUID(sale.ID))
		if err != nil {
			return fmt.Errorf("list payments: %w", err)
		}
		for _, pay := range payments {
			if pay.Mode == mode && pay.Status == payStatus {
				return nil
			}
		}
		confirmedAt := pgtype.Timestamptz{}
		if payStatus == database.PaymentStatusPAID {
			confirmedAt = pgtype.Timestamptz{Time: time.Now().UTC(), Valid: true}
		}
		if _, err := store.CreatePayment(ctx, database.CreatePaymentParams{
			SaleID:      pgUUID(sale.ID),
			Mode:        mode,
			Status:      payStatus,
			AmountMinor: sale.TotalMinor,
			ConfirmedAt: confirmedAt,
		}); err != nil {
			return fmt.Errorf("record payment: %w", err)
		}
		return nil
	}

	_, err = confirmSaleLocked(ctx, store, storeID, sale.ID, pgtype.UUID{}, mode, target, payStatus)
	return err
}

// applySyncCollection records an offline cash or UPI collection.
func applySyncCollection(ctx context.Context, store SyncStore, req SyncRequest, payload json.RawMessage) (*CollectionMapping, bool, error) {
	var p collectionCreatedPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, false, errInvalidPayload
	}
	clientID, err := parseClientID(p.CollectionID)
	if err != nil || !clientID.Valid {
		return nil, false, fmt.Errorf("collectionId: %w", ErrInvalidItem)
	}

	existing, err := store.GetCollectionByStore(ctx, database.GetCollectionByStoreParams{
		ID:      clientID.Bytes,
		StoreID: req.StoreID,
	})
	if err == nil {
		return collectionMappingFor(p.CollectionID, existing), true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("look up collection: %w", err)
	}

	mode := strings.ToUpper(strings.TrimSpace(p.Mode))
	switch mode {
	case enum.CollectionModeCash, enum.CollectionModeUPI:
	default:
		return nil, false, fmt.Errorf("mode: %w", ErrInvalidPaymentMode)
	}
	if p.AmountMinor <= 0 {
		return nil, false, fmt.Errorf("amountMinor: %w", ErrInvalidItem)
	}

	created, err := store.CreateCollection(ctx, database.CreateCollectionParams{
		ID:          clientID,
		StoreID:     req.StoreID,
		DeviceID:    pgtype.UUID{Bytes: req.DeviceID, Valid: req.DeviceID != uuid.Nil},
		AmountMinor: p.AmountMinor,
		Mode:        mode,
		Reference:   optionalText(p.Reference),
		Status:      enum.CollectionStatusRecorded,
	})
	if err != nil {
		return nil, false, fmt.Errorf("create collection: %w", err)
	}
	return collectionMappingFor(p.CollectionID, created), false, nil
}

// applySyncPurchase replays an offline purchase through the same
// pipeline the interactive endpoint uses, keyed by the client's
// purchase id.
func applySyncPurchase(ctx context.Context, store SyncStore, storeID uuid.UUID, payload json.RawMessage) error {
	var p purchaseSubmitPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return errInvalidPayload
	}
	clientID, err := parseClientID(p.PurchaseID)
	if err != nil || !clientID.Valid {
		return fmt.Errorf("purchaseId: %w", ErrInvalidItem)
	}
	if len(p.Items) == 0 {
		return ErrItemsRequired
	}
	items := make([]PurchaseItemInput, 0, len(p.Items))
	for _, it := range p.Items {
		items = append(items, PurchaseItemInput{
			ProductID:         it.ProductID,
			Barcode:           it.Barcode,
			Name:              it.Name,
			Quantity:          it.Quantity,
			Unit:              it.Unit,
			UnitCostMinor:     it.UnitCostMinor,
			SellingPriceMinor: it.SellingPriceMinor,
		})
	}
	if err := validatePurchaseItems(items); err != nil {
		return err
	}

	_, err = applyPurchase(ctx, store, CreatePurchaseRequest{
		StoreID:      storeID,
		PurchaseID:   p.PurchaseID,
		SupplierName: p.SupplierName,
		Currency:     p.Currency,
		SkipIfExists: true,
		Items:        items,
	}, clientID)
	return err
}

// --- Duplicate mapping re-emission ---

// lookupSaleMapping rebuilds the mapping for an already-applied
// SALE_CREATED event. Best effort: a missing row re-emits nothing.
func lookupSaleMapping(ctx context.Context, store SyncStore, storeID uuid.UUID, payload json.RawMessage) *SaleMapping {
	var p saleCreatedPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil
	}
	sale, ok, err := findSyncSale(ctx, store, storeID, p.SaleID, p.OfflineReceiptRef)
	if err != nil || !ok {
		return nil
	}
	return saleMappingFor(p.SaleID, sale)
}

func lookupCollectionMapping(ctx context.Context, store SyncStore, storeID uuid.UUID, payload json.RawMessage) *CollectionMapping {
	var p collectionCreatedPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil
	}
	id, err := parseOptionalID(p.CollectionID)
	if err != nil || id == uuid.Nil {
		return nil
	}
	collection, err := store.GetCollectionByStore(ctx, database.GetCollectionByStoreParams{
		ID:      id,
		StoreID: storeID,
	})
	if err != nil {
		return nil
	}
	return collectionMappingFor(p.CollectionID, collection)
}

// --- Helpers ---

// findSyncSale probes for a sale by client id and then by offline
// receipt, both scoped to the store.
func findSyncSale(ctx context.Context, store SyncStore, storeID uuid.UUID, saleID, receiptRef string) (database.Sale, bool, error) {
	if id, err := parseOptionalID(saleID); err == nil && id != uuid.Nil {
		sale, err := store.GetSaleByStore(ctx, database.GetSaleByStoreParams{ID: id, StoreID: storeID})
		if err == nil {
			return sale, true, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return database.Sale{}, false, fmt.Errorf("look up sale: %w", err)
		}
	}
	if ref := strings.TrimSpace(receiptRef); ref != "" {
		sale, err := store.GetSaleByOfflineReceipt(ctx, database.GetSaleByOfflineReceiptParams{
			StoreID:           storeID,
			OfflineReceiptRef: pgtype.Text{String: ref, Valid: true},
		})
		if err == nil {
			return sale, true, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return database.Sale{}, false, fmt.Errorf("look up sale by receipt: %w", err)
		}
	}
	return database.Sale{}, false, nil
}

func saleMappingFor(localID string, sale database.Sale) *SaleMapping {
	return &SaleMapping{LocalSaleID: localID, SaleID: sale.ID.String(), BillRef: sale.BillRef}
}

func collectionMappingFor(localID string, collection database.Collection) *CollectionMapping {
	return &CollectionMapping{LocalCollectionID: localID, CollectionID: collection.ID.String()}
}

// isReplayConflict reports that a concurrent transaction already
// persisted the row this event creates. The retried attempt's probe
// finds that row and settles the event as a duplicate.
func isReplayConflict(err error) bool {
	return isUniqueViolation(err, "sales_pkey") ||
		isUniqueViolation(err, "sales_store_id_offline_receipt_ref_key") ||
		isUniqueViolation(err, "collections_pkey") ||
		isUniqueViolation(err, "purchases_pkey")
}
