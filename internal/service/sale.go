package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/supermandi/api/internal/catalog"
	"github.com/supermandi/api/internal/database"
	"github.com/supermandi/api/internal/enum"
	"github.com/supermandi/api/internal/inventory"
)

const (
	// maxSaleTxRetries bounds wholesale transaction restarts on bill
	// reference collisions and serialization conflicts.
	maxSaleTxRetries  = 3
	maxSaleQuantity   = 100000
	maxSalePriceMinor = 100000000
)

// Errors returned by the sale service.
var (
	ErrItemsRequired        = errors.New("items_required")
	ErrInvalidQuantity      = errors.New("invalid_quantity")
	ErrInvalidItem          = errors.New("invalid_item")
	ErrSaleNotFound         = errors.New("sale_not_found")
	ErrSaleNotPending       = errors.New("sale_not_pending")
	ErrSaleAlreadyConfirmed = errors.New("sale_already_confirmed")
	ErrCannotCancel         = errors.New("cannot_cancel")
	ErrInvalidPaymentMode   = errors.New("invalid_payment_mode")
	ErrUpiIntentNotAllowed  = errors.New("upi_intent_not_allowed")
	ErrPaymentNotFound      = errors.New("payment_not_found")
)

// TxBeginner starts database transactions. Satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// SaleStore defines the DB methods needed by the sales flow.
// Satisfied by *database.Queries (and its WithTx variant).
type SaleStore interface {
	catalog.Store
	inventory.Store
	GetStore(ctx context.Context, id uuid.UUID) (database.Store, error)
	GetSaleByStore(ctx context.Context, arg database.GetSaleByStoreParams) (database.Sale, error)
	GetSaleForUpdate(ctx context.Context, arg database.GetSaleForUpdateParams) (database.Sale, error)
	CreateSale(ctx context.Context, arg database.CreateSaleParams) (database.Sale, error)
	CreateSaleItem(ctx context.Context, arg database.CreateSaleItemParams) (database.SaleItem, error)
	ListSaleItems(ctx context.Context, saleID uuid.UUID) ([]database.SaleItem, error)
	UpdateSaleStatus(ctx context.Context, arg database.UpdateSaleStatusParams) (database.Sale, error)
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	GetPayment(ctx context.Context, id uuid.UUID) (database.Payment, error)
	UpdatePaymentStatus(ctx context.Context, arg database.UpdatePaymentStatusParams) (database.Payment, error)
}

// NewSaleStore creates a SaleStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewSaleStore func(db database.DBTX) SaleStore

// SaleItemInput is a single line of a sale request. Exactly one of
// VariantID, ProductID or GlobalProductID must identify the item.
type SaleItemInput struct {
	VariantID       string
	ProductID       string
	GlobalProductID string
	Quantity        int64
	PriceMinor      int64
	Name            string
	Barcode         string
}

// CreateSaleRequest is the validated input for creating a sale.
type CreateSaleRequest struct {
	StoreID       uuid.UUID
	DeviceID      uuid.UUID
	SaleID        string // optional client-generated id for idempotent retries
	Items         []SaleItemInput
	DiscountMinor int64
	Currency      string
}

// SaleResult is a sale with its items and, after confirmation, the
// payment that settled it.
type SaleResult struct {
	Sale     database.Sale
	Items    []database.SaleItem
	Payment  *database.Payment
	Existing bool // true when a client-supplied saleId matched a stored sale
}

// UpiInitResult carries everything the device needs to compose a UPI
// intent locally. The server never builds the intent string.
type UpiInitResult struct {
	PaymentID   uuid.UUID
	BillRef     string
	AmountMinor int64
	StoreName   string
	UpiVpa      string
}

// SaleService handles the two-phase sale state machine.
type SaleService struct {
	pool     TxBeginner
	newStore NewSaleStore
}

// NewSaleService creates a new SaleService.
func NewSaleService(pool TxBeginner, newStore NewSaleStore) *SaleService {
	return &SaleService{pool: pool, newStore: newStore}
}

// saleLine is one resolved sale item ready for valuation and stock checks.
type saleLine struct {
	variant    database.Variant
	product    database.Product
	quantity   int64
	priceMinor int64
	name       string
	barcode    pgtype.Text
}

// bulkTracked reports whether the line's stock lives in bulk inventory.
// A variant with a known pack size deducts base units per pack sold.
func (l saleLine) bulkTracked() bool {
	return l.variant.UnitBase.Valid && l.variant.SizeBase.Valid && l.variant.SizeBase.Int64 > 0
}

// unitTracked reports whether the line moves through the unit ledger.
// Legacy variants without a global product carry no tracked stock.
func (l saleLine) unitTracked() bool {
	return !l.bulkTracked() && l.product.GlobalProductID.Valid
}

// CreateSale validates items, checks availability and persists a PENDING
// sale. Stock is not deducted until confirmation. Retries wholesale on
// bill reference collisions and serialization conflicts.
func (s *SaleService) CreateSale(ctx context.Context, req CreateSaleRequest) (*SaleResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrItemsRequired
	}
	clientID, err := parseClientID(req.SaleID)
	if err != nil {
		return nil, fmt.Errorf("saleId: %w", err)
	}
	if err := validateSaleItems(req.Items); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= maxSaleTxRetries; attempt++ {
		result, err := s.createSaleTx(ctx, req, clientID)
		if err == nil {
			return result, nil
		}
		if isBillRefConflict(err) || isSerializationFailure(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// createSaleTx executes the full sale creation in a single serializable
// transaction.
func (s *SaleService) createSaleTx(ctx context.Context, req CreateSaleRequest, clientID pgtype.UUID) (*SaleResult, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// A client-generated id makes retried requests idempotent: return
	// the stored totals verbatim.
	if clientID.Valid {
		existing, err := store.GetSaleByStore(ctx, database.GetSaleByStoreParams{
			ID:      clientID.Bytes,
			StoreID: req.StoreID,
		})
		if err == nil {
			items, err := store.ListSaleItems(ctx, existing.ID)
			if err != nil {
				return nil, fmt.Errorf("list sale items: %w", err)
			}
			return &SaleResult{Sale: existing, Items: items, Existing: true}, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("look up sale: %w", err)
		}
	}

	lines, err := resolveSaleInputs(ctx, store, req.StoreID, req.Items)
	if err != nil {
		return nil, err
	}
	if err := ensureSaleAvailability(ctx, store, req.StoreID, lines); err != nil {
		return nil, err
	}

	subtotal, total := saleTotals(lines, req.DiscountMinor)
	billRef, err := newBillRef()
	if err != nil {
		return nil, err
	}

	currency := strings.TrimSpace(req.Currency)
	if currency == "" {
		currency = catalog.DefaultCurrency
	}

	sale, err := store.CreateSale(ctx, database.CreateSaleParams{
		ID:            clientID,
		StoreID:       req.StoreID,
		DeviceID:      pgtype.UUID{Bytes: req.DeviceID, Valid: req.DeviceID != uuid.Nil},
		BillRef:       billRef,
		SubtotalMinor: subtotal,
		DiscountMinor: max64(0, req.DiscountMinor),
		TotalMinor:    total,
		Currency:      currency,
		Status:        database.SaleStatusPENDING,
	})
	if err != nil {
		return nil, fmt.Errorf("create sale: %w", err)
	}

	items := make([]database.SaleItem, 0, len(lines))
	for i, ln := range lines {
		item, err := store.CreateSaleItem(ctx, database.CreateSaleItemParams{
			SaleID:         sale.ID,
			VariantID:      ln.variant.ID,
			Quantity:       ln.quantity,
			PriceMinor:     ln.priceMinor,
			LineTotalMinor: ln.quantity * ln.priceMinor,
			ItemName:       ln.name,
			Barcode:        ln.barcode,
		})
		if err != nil {
			return nil, fmt.Errorf("create sale item[%d]: %w", i, err)
		}
		items = append(items, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &SaleResult{Sale: sale, Items: items}, nil
}

// ConfirmSale settles a sale: it re-verifies availability, deducts stock,
// records the payment and moves the sale to its terminal paid state, all
// in one serializable transaction.
func (s *SaleService) ConfirmSale(ctx context.Context, storeID, saleID uuid.UUID, paymentMode string) (*SaleResult, error) {
	mode, target, payStatus, err := parsePaymentMode(paymentMode)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= maxSaleTxRetries; attempt++ {
		result, err := s.confirmTx(ctx, storeID, saleID, mode, target, payStatus)
		if err == nil {
			return result, nil
		}
		if isSerializationFailure(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func (s *SaleService) confirmTx(ctx context.Context, storeID, saleID uuid.UUID, mode database.PaymentMode, target database.SaleStatus, payStatus database.PaymentStatus) (*SaleResult, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	result, err := confirmSaleLocked(ctx, store, storeID, saleID, pgtype.UUID{}, mode, target, payStatus)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return result, nil
}

// ConfirmUpiManual settles the sale behind a previously initialised UPI
// payment, marking that payment PAID instead of inserting a new row.
func (s *SaleService) ConfirmUpiManual(ctx context.Context, storeID, paymentID uuid.UUID) (*SaleResult, error) {
	var lastErr error
	for attempt := 0; attempt <= maxSaleTxRetries; attempt++ {
		result, err := s.confirmManualTx(ctx, storeID, paymentID)
		if err == nil {
			return result, nil
		}
		if isSerializationFailure(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func (s *SaleService) confirmManualTx(ctx context.Context, storeID, paymentID uuid.UUID) (*SaleResult, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	payment, err := store.GetPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	if !payment.SaleID.Valid {
		return nil, ErrPaymentNotFound
	}

	result, err := confirmSaleLocked(ctx, store, storeID, payment.SaleID.Bytes, pgUUID(paymentID),
		database.PaymentModeUPI, database.SaleStatusPAIDUPI, database.PaymentStatusPAID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return result, nil
}

// confirmSaleLocked runs the confirmation state transition inside the
// caller's transaction. Stock is deducted only for PENDING sales; sales
// in the offline-created state already committed their stock at sync
// time and only need the payment recorded.
func confirmSaleLocked(ctx context.Context, store SaleStore, storeID, saleID uuid.UUID, paymentID pgtype.UUID, mode database.PaymentMode, target database.SaleStatus, payStatus database.PaymentStatus) (*SaleResult, error) {
	sale, err := store.GetSaleForUpdate(ctx, database.GetSaleForUpdateParams{ID: saleID, StoreID: storeID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSaleNotFound
		}
		return nil, fmt.Errorf("lock sale: %w", err)
	}

	switch sale.Status {
	case database.SaleStatusPENDING, database.SaleStatusCREATED:
	case database.SaleStatusCANCELLED:
		return nil, ErrSaleNotPending
	default:
		return nil, ErrSaleAlreadyConfirmed
	}

	items, err := store.ListSaleItems(ctx, sale.ID)
	if err != nil {
		return nil, fmt.Errorf("list sale items: %w", err)
	}

	if sale.Status == database.SaleStatusPENDING {
		lines, err := loadSaleLines(ctx, store, items)
		if err != nil {
			return nil, err
		}
		// Stock may have moved since the cart went PENDING.
		if err := ensureSaleAvailability(ctx, store, storeID, lines); err != nil {
			return nil, err
		}
		if err := deductSaleLines(ctx, store, storeID, sale.ID, lines); err != nil {
			return nil, err
		}
	}

	confirmedAt := pgtype.Timestamptz{}
	if payStatus == database.PaymentStatusPAID {
		confirmedAt = pgtype.Timestamptz{Time: time.Now().UTC(), Valid: true}
	}

	var payment database.Payment
	if paymentID.Valid {
		payment, err = store.UpdatePaymentStatus(ctx, database.UpdatePaymentStatusParams{
			ID:          paymentID.Bytes,
			Status:      payStatus,
			ConfirmedAt: confirmedAt,
		})
	} else {
		payment, err = store.CreatePayment(ctx, database.CreatePaymentParams{
			SaleID:      pgUUID(sale.ID),
			Mode:        mode,
			Status:      payStatus,
			AmountMinor: sale.TotalMinor,
			ConfirmedAt: confirmedAt,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}

	updated, err := store.UpdateSaleStatus(ctx, database.UpdateSaleStatusParams{ID: sale.ID, Status: target})
	if err != nil {
		return nil, fmt.Errorf("update sale status: %w", err)
	}

	return &SaleResult{Sale: updated, Items: items, Payment: &payment}, nil
}

// CancelSale moves a PENDING sale to CANCELLED. No stock was committed
// for a PENDING sale, so there is nothing to restock.
func (s *SaleService) CancelSale(ctx context.Context, storeID, saleID uuid.UUID) (*SaleResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	sale, err := store.GetSaleForUpdate(ctx, database.GetSaleForUpdateParams{ID: saleID, StoreID: storeID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSaleNotFound
		}
		return nil, fmt.Errorf("lock sale: %w", err)
	}
	if sale.Status != database.SaleStatusPENDING {
		return nil, ErrCannotCancel
	}

	updated, err := store.UpdateSaleStatus(ctx, database.UpdateSaleStatusParams{
		ID:     sale.ID,
		Status: database.SaleStatusCANCELLED,
	})
	if err != nil {
		return nil, fmt.Errorf("update sale status: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &SaleResult{Sale: updated}, nil
}

// InitUpiPayment opens a PENDING UPI payment for a sale and returns the
// fields the device composes its UPI intent from. Requests that carry a
// pre-composed intent are rejected outright.
func (s *SaleService) InitUpiPayment(ctx context.Context, storeID, saleID uuid.UUID, upiIntent, transactionID string) (*UpiInitResult, error) {
	if strings.TrimSpace(upiIntent) != "" {
		return nil, ErrUpiIntentNotAllowed
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	sale, err := store.GetSaleByStore(ctx, database.GetSaleByStoreParams{ID: saleID, StoreID: storeID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSaleNotFound
		}
		return nil, fmt.Errorf("get sale: %w", err)
	}
	switch sale.Status {
	case database.SaleStatusPENDING, database.SaleStatusCREATED:
	case database.SaleStatusCANCELLED:
		return nil, ErrSaleNotPending
	default:
		return nil, ErrSaleAlreadyConfirmed
	}

	storeRow, err := store.GetStore(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("get store: %w", err)
	}

	payment, err := store.CreatePayment(ctx, database.CreatePaymentParams{
		SaleID:      pgUUID(sale.ID),
		Mode:        database.PaymentModeUPI,
		Status:      database.PaymentStatusPENDING,
		AmountMinor: sale.TotalMinor,
		ProviderRef: optionalText(transactionID),
	})
	if err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &UpiInitResult{
		PaymentID:   payment.ID,
		BillRef:     sale.BillRef,
		AmountMinor: sale.TotalMinor,
		StoreName:   storeRow.Name,
		UpiVpa:      storeRow.UpiVpa.String,
	}, nil
}

// --- Shared sale plumbing (also used by the sync engine) ---

// resolveSaleInputs resolves every input line to a variant and its
// backing product inside the caller's transaction.
func resolveSaleInputs(ctx context.Context, store SaleStore, storeID uuid.UUID, items []SaleItemInput) ([]saleLine, error) {
	lines := make([]saleLine, 0, len(items))
	for i, item := range items {
		sel, err := parseVariantSelector(item)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, err)
		}
		variant, err := catalog.ResolveVariantForSale(ctx, store, storeID, sel)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, err)
		}
		product, err := store.GetProduct(ctx, variant.ProductID)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: load product: %w", i, err)
		}
		name := strings.TrimSpace(item.Name)
		if name == "" {
			name = variant.Name
		}
		lines = append(lines, saleLine{
			variant:    variant,
			product:    product,
			quantity:   item.Quantity,
			priceMinor: item.PriceMinor,
			name:       name,
			barcode:    optionalText(item.Barcode),
		})
	}
	return lines, nil
}

// loadSaleLines rebuilds resolved lines from persisted sale items for the
// confirmation path.
func loadSaleLines(ctx context.Context, store SaleStore, items []database.SaleItem) ([]saleLine, error) {
	lines := make([]saleLine, 0, len(items))
	for _, item := range items {
		variant, err := store.GetVariant(ctx, item.VariantID)
		if err != nil {
			return nil, fmt.Errorf("load variant %s: %w", item.VariantID, err)
		}
		product, err := store.GetProduct(ctx, variant.ProductID)
		if err != nil {
			return nil, fmt.Errorf("load product %s: %w", variant.ProductID, err)
		}
		lines = append(lines, saleLine{
			variant:    variant,
			product:    product,
			quantity:   item.Quantity,
			priceMinor: item.PriceMinor,
			name:       item.ItemName,
			barcode:    item.Barcode,
		})
	}
	return lines, nil
}

// ensureSaleAvailability verifies unit and bulk stock for all lines and
// merges shortfalls from both engines into one insufficient_stock error.
func ensureSaleAvailability(ctx context.Context, store SaleStore, storeID uuid.UUID, lines []saleLine) error {
	var unitReqs []inventory.Requirement
	var bulkReqs []inventory.BulkRequirement
	for _, ln := range lines {
		switch {
		case ln.bulkTracked():
			bulkReqs = append(bulkReqs, inventory.BulkRequirement{
				ProductID:    ln.variant.ProductID,
				RequiredBase: ln.quantity * ln.variant.SizeBase.Int64,
				BaseUnit:     ln.variant.UnitBase.String,
				Name:         ln.name,
			})
		case ln.unitTracked():
			unitReqs = append(unitReqs, inventory.Requirement{
				GlobalProductID: uuid.UUID(ln.product.GlobalProductID.Bytes),
				Required:        ln.quantity,
				Name:            ln.name,
			})
		}
	}

	var short []inventory.InsufficientStockItem
	if err := inventory.EnsureAvailability(ctx, store, storeID, unitReqs); err != nil {
		var stockErr *inventory.InsufficientStockError
		if !errors.As(err, &stockErr) {
			return err
		}
		short = append(short, stockErr.Items...)
	}
	if err := inventory.EnsureBulkAvailability(ctx, store, storeID, bulkReqs); err != nil {
		var stockErr *inventory.InsufficientStockError
		if !errors.As(err, &stockErr) {
			return err
		}
		short = append(short, stockErr.Items...)
	}
	if len(short) > 0 {
		return &inventory.InsufficientStockError{Items: short}
	}
	return nil
}

// deductSaleLines commits the stock for a sale: pack-sized variants drain
// bulk inventory, everything else moves through the unit ledger.
func deductSaleLines(ctx context.Context, store SaleStore, storeID, saleID uuid.UUID, lines []saleLine) error {
	var bulkReqs []inventory.BulkRequirement
	for _, ln := range lines {
		switch {
		case ln.bulkTracked():
			bulkReqs = append(bulkReqs, inventory.BulkRequirement{
				ProductID:    ln.variant.ProductID,
				RequiredBase: ln.quantity * ln.variant.SizeBase.Int64,
				BaseUnit:     ln.variant.UnitBase.String,
				Name:         ln.name,
			})
		case ln.unitTracked():
			if _, err := inventory.ApplyMovement(ctx, store, inventory.Movement{
				StoreID:         storeID,
				GlobalProductID: uuid.UUID(ln.product.GlobalProductID.Bytes),
				Type:            database.MovementTypeSELL,
				Quantity:        ln.quantity,
				Name:            ln.name,
				UnitSellMinor:   pgtype.Int8{Int64: ln.priceMinor, Valid: true},
				ReferenceType:   enum.ReferenceTypeSale,
				ReferenceID:     saleID,
			}); err != nil {
				return err
			}
		}
	}
	return inventory.ApplyBulkDeductions(ctx, store, storeID, bulkReqs)
}

// validateSaleItems enforces the quantity and price bounds shared by the
// interactive create path and the sync replay path.
func validateSaleItems(items []SaleItemInput) error {
	for i, item := range items {
		if item.Quantity < 1 || item.Quantity > maxSaleQuantity {
			return fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		if item.PriceMinor < 1 || item.PriceMinor > maxSalePriceMinor {
			return fmt.Errorf("item[%d]: %w", i, ErrInvalidItem)
		}
	}
	return nil
}

// saleTotals computes the authoritative sale amounts.
func saleTotals(lines []saleLine, discountMinor int64) (subtotal, total int64) {
	for _, ln := range lines {
		subtotal += ln.quantity * ln.priceMinor
	}
	total = max64(0, subtotal-max64(0, discountMinor))
	return subtotal, total
}

func parseVariantSelector(item SaleItemInput) (catalog.VariantSelector, error) {
	var sel catalog.VariantSelector
	var err error
	if sel.VariantID, err = parseOptionalID(item.VariantID); err != nil {
		return sel, ErrInvalidItem
	}
	if sel.ProductID, err = parseOptionalID(item.ProductID); err != nil {
		return sel, ErrInvalidItem
	}
	if sel.GlobalProductID, err = parseOptionalID(item.GlobalProductID); err != nil {
		return sel, ErrInvalidItem
	}
	return sel, nil
}

func parsePaymentMode(mode string) (database.PaymentMode, database.SaleStatus, database.PaymentStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(mode)) {
	case string(database.PaymentModeCASH):
		return database.PaymentModeCASH, database.SaleStatusPAIDCASH, database.PaymentStatusPAID, nil
	case string(database.PaymentModeUPI):
		return database.PaymentModeUPI, database.SaleStatusPAIDUPI, database.PaymentStatusPAID, nil
	case string(database.PaymentModeDUE):
		return database.PaymentModeDUE, database.SaleStatusDUE, database.PaymentStatusDUE, nil
	}
	return "", "", "", ErrInvalidPaymentMode
}

// newBillRef builds a 13-char bill reference: the last 8 digits of the
// unix timestamp plus 5 base36 chars from 24 random bits.
func newBillRef() (string, error) {
	var buf [3]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("bill ref entropy: %w", err)
	}
	n := uint64(buf[0])<<16 | uint64(buf[1])<<8 | uint64(buf[2])
	suffix := strings.ToUpper(strconv.FormatUint(n, 36))
	for len(suffix) < 5 {
		suffix = "0" + suffix
	}
	return fmt.Sprintf("%08d%s", time.Now().Unix()%100000000, suffix), nil
}

// isUniqueViolation checks for a unique constraint violation (pgconn
// error code 23505) on a named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
	}
	return false
}

func isBillRefConflict(err error) bool {
	return isUniqueViolation(err, "sales_bill_ref_key")
}

// isSerializationFailure reports a serializable-isolation conflict
// (SQLSTATE 40001). The whole transaction is safe to retry.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001"
	}
	return false
}

// --- Helpers ---

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

// parseClientID parses an optional client-generated row id. An empty
// string is valid and yields a NULL id.
func parseClientID(s string) (pgtype.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.UUID{}, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{}, ErrInvalidItem
	}
	return pgUUID(id), nil
}

func optionalText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	return pgtype.Text{String: s, Valid: s != ""}
}

func parseOptionalID(s string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(s)
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
