package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createSale = `-- name: CreateSale :one
INSERT INTO sales (id, store_id, device_id, bill_ref, offline_receipt_ref, subtotal_minor, discount_minor, total_minor, currency, status)
VALUES (COALESCE($1, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id, store_id, device_id, bill_ref, offline_receipt_ref, subtotal_minor, discount_minor, total_minor, currency, status, created_at, updated_at
`

type CreateSaleParams struct {
	ID                pgtype.UUID
	StoreID           uuid.UUID
	DeviceID          pgtype.UUID
	BillRef           string
	OfflineReceiptRef pgtype.Text
	SubtotalMinor     int64
	DiscountMinor     int64
	TotalMinor        int64
	Currency          string
	Status            SaleStatus
}

// CreateSale inserts a sale, honouring a client-generated id when one is
// supplied so that retried requests stay idempotent.
func (q *Queries) CreateSale(ctx context.Context, arg CreateSaleParams) (Sale, error) {
	row := q.db.QueryRow(ctx, createSale,
		arg.ID,
		arg.StoreID,
		arg.DeviceID,
		arg.BillRef,
		arg.OfflineReceiptRef,
		arg.SubtotalMinor,
		arg.DiscountMinor,
		arg.TotalMinor,
		arg.Currency,
		arg.Status,
	)
	var i Sale
	err := row.Scan(
		&i.ID,
		&i.StoreID,
		&i.DeviceID,
		&i.BillRef,
		&i.OfflineReceiptRef,
		&i.SubtotalMinor,
		&i.DiscountMinor,
		&i.TotalMinor,
		&i.Currency,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getSale = `-- name: GetSale :one
SELECT id, store_id, device_id, bill_ref, offline_receipt_ref, subtotal_minor, discount_minor, total_minor, currency, status, created_at, updated_at
FROM sales
WHERE id = $1
`

func (q *Queries) GetSale(ctx context.Context, id uuid.UUID) (Sale, error) {
	row := q.db.QueryRow(ctx, getSale, id)
	var i Sale
	err := row.Scan(
		&i.ID,
		&i.StoreID,
		&i.DeviceID,
		&i.BillRef,
		&i.OfflineReceiptRef,
		&i.SubtotalMinor,
		&i.DiscountMinor,
		&i.TotalMinor,
		&i.Currency,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getSaleByStore = `-- name: GetSaleByStore :one
SELECT id, store_id, device_id, bill_ref, offline_receipt_ref, subtotal_minor, discount_minor, total_minor, currency, status, created_at, updated_at
FROM sales
WHERE id = $1 AND store_id = $2
`

type GetSaleByStoreParams struct {
	ID      uuid.UUID
	StoreID uuid.UUID
}

func (q *Queries) GetSaleByStore(ctx context.Context, arg GetSaleByStoreParams) (Sale, error) {
	row := q.db.QueryRow(ctx, getSaleByStore, arg.ID, arg.StoreID)
	var i Sale
	err := row.Scan(
		&i.ID,
		&i.StoreID,
		&i.DeviceID,
		&i.BillRef,
		&i.OfflineReceiptRef,
		&i.SubtotalMinor,
		&i.DiscountMinor,
		&i.TotalMinor,
		&i.Currency,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getSaleForUpdate = `-- name: GetSaleForUpdate :one
SELECT id, store_id, device_id, bill_ref, offline_receipt_ref, subtotal_minor, discount_minor, total_minor, currency, status, created_at, updated_at
FROM sales
WHERE id = $1 AND store_id = $2
FOR UPDATE
`

type GetSaleForUpdateParams struct {
	ID      uuid.UUID
	StoreID uuid.UUID
}

func (q *Queries) GetSaleForUpdate(ctx context.Context, arg GetSaleForUpdateParams) (Sale, error) {
	row := q.db.QueryRow(ctx, getSaleForUpdate, arg.ID, arg.StoreID)
	var i Sale
	err := row.Scan(
		&i.ID,
		&i.StoreID,
		&i.DeviceID,
		&i.BillRef,
		&i.OfflineReceiptRef,
		&i.SubtotalMinor,
		&i.DiscountMinor,
		&i.TotalMinor,
		&i.Currency,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getSaleByBillRef = `-- name: GetSaleByBillRef :one
SELECT id, store_id, device_id, bill_ref, offline_receipt_ref, subtotal_minor, discount_minor, total_minor, currency, status, created_at, updated_at
FROM sales
WHERE bill_ref = $1 AND store_id = $2
`

type GetSaleByBillRefParams struct {
	BillRef string
	StoreID uuid.UUID
}

func (q *Queries) GetSaleByBillRef(ctx context.Context, arg GetSaleByBillRefParams) (Sale, error) {
	row := q.db.QueryRow(ctx, getSaleByBillRef, arg.BillRef, arg.StoreID)
	var i Sale
	err := row.Scan(
		&i.ID,
		&i.StoreID,
		&i.DeviceID,
		&i.BillRef,
		&i.OfflineReceiptRef,
		&i.SubtotalMinor,
		&i.DiscountMinor,
		&i.TotalMinor,
		&i.Currency,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getSaleByOfflineReceipt = `-- name: GetSaleByOfflineReceipt :one
SELECT id, store_id, device_id, bill_ref, offline_receipt_ref, subtotal_minor, discount_minor, total_minor, currency, status, created_at, updated_at
FROM sales
WHERE store_id = $1 AND offline_receipt_ref = $2
`

type GetSaleByOfflineReceiptParams struct {
	StoreID           uuid.UUID
	OfflineReceiptRef pgtype.Text
}

func (q *Queries) GetSaleByOfflineReceipt(ctx context.Context, arg GetSaleByOfflineReceiptParams) (Sale, error) {
	row := q.db.QueryRow(ctx, getSaleByOfflineReceipt, arg.StoreID, arg.OfflineReceiptRef)
	var i Sale
	err := row.Scan(
		&i.ID,
		&i.StoreID,
		&i.DeviceID,
		&i.BillRef,
		&i.OfflineReceiptRef,
		&i.SubtotalMinor,
		&i.DiscountMinor,
		&i.TotalMinor,
		&i.Currency,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const updateSaleStatus = `-- name: UpdateSaleStatus :one
UPDATE sales
SET status = $2, updated_at = now()
WHERE id = $1
RETURNING id, store_id, device_id, bill_ref, offline_receipt_ref, subtotal_minor, discount_minor, total_minor, currency, status, created_at, updated_at
`

type UpdateSaleStatusParams struct {
	ID     uuid.UUID
	Status SaleStatus
}

func (q *Queries) UpdateSaleStatus(ctx context.Context, arg UpdateSaleStatusParams) (Sale, error) {
	row := q.db.QueryRow(ctx, updateSaleStatus, arg.ID, arg.Status)
	var i Sale
	err := row.Scan(
		&i.ID,
		&i.StoreID,
		&i.DeviceID,
		&i.BillRef,
		&i.OfflineReceiptRef,
		&i.SubtotalMinor,
		&i.DiscountMinor,
		&i.TotalMinor,
		&i.Currency,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listSalesByStore = `-- name: ListSalesByStore :many
SELECT id, store_id, device_id, bill_ref, offline_receipt_ref, subtotal_minor, discount_minor, total_minor, currency, status, created_at, updated_at
FROM sales
WHERE store_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

type ListSalesByStoreParams struct {
	StoreID uuid.UUID
	Limit   int32
	Offset  int32
}

func (q *Queries) ListSalesByStore(ctx context.Context, arg ListSalesByStoreParams) ([]Sale, error) {
	rows, err := q.db.Query(ctx, listSalesByStore, arg.StoreID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Sale
	for rows.Next() {
		var i Sale
		if err := rows.Scan(
			&i.ID,
			&i.StoreID,
			&i.DeviceID,
			&i.BillRef,
			&i.OfflineReceiptRef,
			&i.SubtotalMinor,
			&i.DiscountMinor,
			&i.TotalMinor,
			&i.Currency,
			&i.Status,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createSaleItem = `-- name: CreateSaleItem :one
INSERT INTO sale_items (sale_id, variant_id, quantity, price_minor, line_total_minor, item_name, barcode)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, sale_id, variant_id, quantity, price_minor, line_total_minor, item_name, barcode
`

type CreateSaleItemParams struct {
	SaleID         uuid.UUID
	VariantID      uuid.UUID
	Quantity       int64
	PriceMinor     int64
	LineTotalMinor int64
	ItemName       string
	Barcode        pgtype.Text
}

func (q *Queries) CreateSaleItem(ctx context.Context, arg CreateSaleItemParams) (SaleItem, error) {
	row := q.db.QueryRow(ctx, createSaleItem,
		arg.SaleID,
		arg.VariantID,
		arg.Quantity,
		arg.PriceMinor,
		arg.LineTotalMinor,
		arg.ItemName,
		arg.Barcode,
	)
	var i SaleItem
	err := row.Scan(
		&i.ID,
		&i.SaleID,
		&i.VariantID,
		&i.Quantity,
		&i.PriceMinor,
		&i.LineTotalMinor,
		&i.ItemName,
		&i.Barcode,
	)
	return i, err
}

const listSaleItems = `-- name: ListSaleItems :many
SELECT id, sale_id, variant_id, quantity, price_minor, line_total_minor, item_name, barcode
FROM sale_items
WHERE sale_id = $1
ORDER BY item_name
`

func (q *Queries) ListSaleItems(ctx context.Context, saleID uuid.UUID) ([]SaleItem, error) {
	rows, err := q.db.Query(ctx, listSaleItems, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SaleItem
	for rows.Next() {
		var i SaleItem
		if err := rows.Scan(
			&i.ID,
			&i.SaleID,
			&i.VariantID,
			&i.Quantity,
			&i.PriceMinor,
			&i.LineTotalMinor,
			&i.ItemName,
			&i.Barcode,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createPayment = `-- name: CreatePayment :one
INSERT INTO payments (sale_id, mode, status, amount_minor, provider_ref, confirmed_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, sale_id, mode, status, amount_minor, provider_ref, confirmed_at, created_at
`

type CreatePaymentParams struct {
	SaleID      pgtype.UUID
	Mode        PaymentMode
	Status      PaymentStatus
	AmountMinor int64
	ProviderRef pgtype.Text
	ConfirmedAt pgtype.Timestamptz
}

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, createPayment,
		arg.SaleID,
		arg.Mode,
		arg.Status,
		arg.AmountMinor,
		arg.ProviderRef,
		arg.ConfirmedAt,
	)
	var i Payment
	err := row.Scan(
		&i.ID,
		&i.SaleID,
		&i.Mode,
		&i.Status,
		&i.AmountMinor,
		&i.ProviderRef,
		&i.ConfirmedAt,
		&i.CreatedAt,
	)
	return i, err
}

const getPayment = `-- name: GetPayment :one
SELECT id, sale_id, mode, status, amount_minor, provider_ref, confirmed_at, created_at
FROM payments
WHERE id = $1
`

func (q *Queries) GetPayment(ctx context.Context, id uuid.UUID) (Payment, error) {
	row := q.db.QueryRow(ctx, getPayment, id)
	var i Payment
	err := row.Scan(
		&i.ID,
		&i.SaleID,
		&i.Mode,
		&i.Status,
		&i.AmountMinor,
		&i.ProviderRef,
		&i.ConfirmedAt,
		&i.CreatedAt,
	)
	return i, err
}

const updatePaymentStatus = `-- name: UpdatePaymentStatus :one
UPDATE payments
SET status = $2, confirmed_at = $3
WHERE id = $1
RETURNING id, sale_id, mode, status, amount_minor, provider_ref, confirmed_at, created_at
`

type UpdatePaymentStatusParams struct {
	ID          uuid.UUID
	Status      PaymentStatus
	ConfirmedAt pgtype.Timestamptz
}

func (q *Queries) UpdatePaymentStatus(ctx context.Context, arg UpdatePaymentStatusParams) (Payment, error) {
	row := q.db.QueryRow(ctx, updatePaymentStatus, arg.ID, arg.Status, arg.ConfirmedAt)
	var i Payment
	err := row.Scan(
		&i.ID,
		&i.SaleID,
		&i.Mode,
		&i.Status,
		&i.AmountMinor,
		&i.ProviderRef,
		&i.ConfirmedAt,
		&i.CreatedAt,
	)
	return i, err
}

const listPaymentsBySale = `-- name: ListPaymentsBySale :many
SELECT id, sale_id, mode, status, amount_minor, provider_ref, confirmed_at, created_at
FROM payments
WHERE sale_id = $1
ORDER BY created_at
`

func (q *Queries) ListPaymentsBySale(ctx context.Context, saleID pgtype.UUID) ([]Payment, error) {
	rows, err := q.db.Query(ctx, listPaymentsBySale, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Payment
	for rows.Next() {
		var i Payment
		if err := rows.Scan(
			&i.ID,
			&i.SaleID,
			&i.Mode,
			&i.Status,
			&i.AmountMinor,
			&i.ProviderRef,
			&i.ConfirmedAt,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createCollection = `-- name: CreateCollection :one
INSERT INTO collections (id, store_id, device_id, amount_minor, mode, reference, status)
VALUES (COALESCE($1, gen_random_uuid()), $2, $3, $4, $5, $6, $7)
RETURNING id, store_id, device_id, amount_minor, mode, reference, status, created_at
`

type CreateCollectionParams struct {
	ID          pgtype.UUID
	StoreID     uuid.UUID
	DeviceID    pgtype.UUID
	AmountMinor int64
	Mode        string
	Reference   pgtype.Text
	Status      string
}

// CreateCollection inserts a collection, honouring a client-generated id
// when one is supplied so that replayed events stay idempotent.
func (q *Queries) CreateCollection(ctx context.Context, arg CreateCollectionParams) (Collection, error) {
	row := q.db.QueryRow(ctx, createCollection,
		arg.ID,
		arg.StoreID,
		arg.DeviceID,
		arg.AmountMinor,
		arg.Mode,
		arg.Reference,
		arg.Status,
	)
	var i Collection
	err := row.Scan(
		&i.ID,
		&i.StoreID,
		&i.DeviceID,
		&i.AmountMinor,
		&i.Mode,
		&i.Reference,
		&i.Status,
		&i.CreatedAt,
	)
	return i, err
}

const getCollectionByStore = `-- name: GetCollectionByStore :one
SELECT id, store_id, device_id, amount_minor, mode, reference, status, created_at
FROM collections
WHERE id = $1 AND store_id = $2
`

type GetCollectionByStoreParams struct {
	ID      uuid.UUID
	StoreID uuid.UUID
}

func (q *Queries) GetCollectionByStore(ctx context.Context, arg GetCollectionByStoreParams) (Collection, error) {
	row := q.db.QueryRow(ctx, getCollectionByStore, arg.ID, arg.StoreID)
	var i Collection
	err := row.Scan(
		&i.ID,
		&i.StoreID,
		&i.DeviceID,
		&i.AmountMinor,
		&i.Mode,
		&i.Reference,
		&i.Status,
		&i.CreatedAt,
	)
	return i, err
}

const listCollectionsByStore = `-- name: ListCollectionsByStore :many
SELECT id, store_id, device_id, amount_minor, mode, reference, status, created_at
FROM collections
WHERE store_id = $1
ORDER BY created_at DESC
LIMIT $2
`

type ListCollectionsByStoreParams struct {
	StoreID uuid.UUID
	Limit   int32
}

func (q *Queries) ListCollectionsByStore(ctx context.Context, arg ListCollectionsByStoreParams) ([]Collection, error) {
	rows, err := q.db.Query(ctx, listCollectionsByStore, arg.StoreID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Collection
	for rows.Next() {
		var i Collection
		if err := rows.Scan(
			&i.ID,
			&i.StoreID,
			&i.DeviceID,
			&i.AmountMinor,
			&i.Mode,
			&i.Reference,
			&i.Status,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getStoreSalesSummary = `-- name: GetStoreSalesSummary :one
SELECT COUNT(*) AS sale_count,
       COALESCE(SUM(total_minor), 0)::bigint AS total_minor
FROM sales
WHERE store_id = $1
  AND status IN ('PAID_CASH', 'PAID_UPI', 'DUE')
  AND created_at >= $2 AND created_at < $3
`

type GetStoreSalesSummaryParams struct {
	StoreID   uuid.UUID
	StartTime time.Time
	EndTime   time.Time
}

type GetStoreSalesSummaryRow struct {
	SaleCount  int64
	TotalMinor int64
}

func (q *Queries) GetStoreSalesSummary(ctx context.Context, arg GetStoreSalesSummaryParams) (GetStoreSalesSummaryRow, error) {
	row := q.db.QueryRow(ctx, getStoreSalesSummary, arg.StoreID, arg.StartTime, arg.EndTime)
	var i GetStoreSalesSummaryRow
	err := row.Scan(&i.SaleCount, &i.TotalMinor)
	return i, err
}

const getPaymentModeBreakdown = `-- name: GetPaymentModeBreakdown :many
SELECT p.mode,
       COUNT(*) AS payment_count,
       COALESCE(SUM(p.amount_minor), 0)::bigint AS amount_minor
FROM payments p
JOIN sales s ON s.id = p.sale_id
WHERE s.store_id = $1
  AND p.status IN ('PAID', 'DUE')
  AND p.created_at >= $2 AND p.created_at < $3
GROUP BY p.mode
ORDER BY p.mode
`

type GetPaymentModeBreakdownParams struct {
	StoreID   uuid.UUID
	StartTime time.Time
	EndTime   time.Time
}

type GetPaymentModeBreakdownRow struct {
	Mode         PaymentMode
	PaymentCount int64
	AmountMinor  int64
}

func (q *Queries) GetPaymentModeBreakdown(ctx context.Context, arg GetPaymentModeBreakdownParams) ([]GetPaymentModeBreakdownRow, error) {
	rows, err := q.db.Query(ctx, getPaymentModeBreakdown, arg.StoreID, arg.StartTime, arg.EndTime)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetPaymentModeBreakdownRow
	for rows.Next() {
		var i GetPaymentModeBreakdownRow
		if err := rows.Scan(&i.Mode, &i.PaymentCount, &i.AmountMinor); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getTopSellingItems = `-- name: GetTopSellingItems :many
SELECT si.item_name,
       SUM(si.quantity)::bigint AS total_quantity,
       SUM(si.line_total_minor)::bigint AS total_minor
FROM sale_items si
JOIN sales s ON s.id = si.sale_id
WHERE s.store_id = $1
  AND s.status IN ('PAID_CASH', 'PAID_UPI', 'DUE')
  AND s.created_at >= $2 AND s.created_at < $3
GROUP BY si.item_name
ORDER BY total_quantity DESC
LIMIT $4
`

type GetTopSellingItemsParams struct {
	StoreID   uuid.UUID
	StartTime time.Time
	EndTime   time.Time
	Limit     int32
}

type GetTopSellingItemsRow struct {
	ItemName      string
	TotalQuantity int64
	TotalMinor    int64
}

func (q *Queries) GetTopSellingItems(ctx context.Context, arg GetTopSellingItemsParams) ([]GetTopSellingItemsRow, error) {
	rows, err := q.db.Query(ctx, getTopSellingItems,
		arg.StoreID,
		arg.StartTime,
		arg.EndTime,
		arg.Limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetTopSellingItemsRow
	for rows.Next() {
		var i GetTopSellingItemsRow
		if err := rows.Scan(&i.ItemName, &i.TotalQuantity, &i.TotalMinor); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countPendingSales = `-- name: CountPendingSales :one
SELECT COUNT(*)
FROM sales
WHERE store_id = $1 AND status = 'PENDING'
`

func (q *Queries) CountPendingSales(ctx context.Context, storeID uuid.UUID) (int64, error) {
	row := q.db.QueryRow(ctx, countPendingSales, storeID)
	var count int64
	err := row.Scan(&count)
	return count, err
}
