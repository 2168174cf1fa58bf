package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createPurchase = `-- name: CreatePurchase :one
INSERT INTO purchases (id, store_id, supplier_name, total_minor, currency)
VALUES (COALESCE($1, gen_random_uuid()), $2, $3, $4, $5)
RETURNING id, store_id, supplier_name, total_minor, currency, created_at
`

type CreatePurchaseParams struct {
	ID           pgtype.UUID
	StoreID      uuid.UUID
	SupplierName pgtype.Text
	TotalMinor   int64
	Currency     string
}

// CreatePurchase inserts a purchase, honouring a client-generated id when
// one is supplied so that retried submissions stay idempotent.
func (q *Queries) CreatePurchase(ctx context.Context, arg CreatePurchaseParams) (Purchase, error) {
	row := q.db.QueryRow(ctx, createPurchase,
		arg.ID,
		arg.StoreID,
		arg.SupplierName,
		arg.TotalMinor,
		arg.Currency,
	)
	var i Purchase
	err := row.Scan(
		&i.ID,
		&i.StoreID,
		&i.SupplierName,
		&i.TotalMinor,
		&i.Currency,
		&i.CreatedAt,
	)
	return i, err
}

const getPurchaseByStore = `-- name: GetPurchaseByStore :one
SELECT id, store_id, supplier_name, total_minor, currency, created_at
FROM purchases
WHERE id = $1 AND store_id = $2
`

type GetPurchaseByStoreParams struct {
	ID      uuid.UUID
	StoreID uuid.UUID
}

func (q *Queries) GetPurchaseByStore(ctx context.Context, arg GetPurchaseByStoreParams) (Purchase, error) {
	row := q.db.QueryRow(ctx, getPurchaseByStore, arg.ID, arg.StoreID)
	var i Purchase
	err := row.Scan(
		&i.ID,
		&i.StoreID,
		&i.SupplierName,
		&i.TotalMinor,
		&i.Currency,
		&i.CreatedAt,
	)
	return i, err
}

const updatePurchaseTotal = `-- name: UpdatePurchaseTotal :one
UPDATE purchases
SET total_minor = $2
WHERE id = $1
RETURNING id, store_id, supplier_name, total_minor, currency, created_at
`

type UpdatePurchaseTotalParams struct {
	ID         uuid.UUID
	TotalMinor int64
}

func (q *Queries) UpdatePurchaseTotal(ctx context.Context, arg UpdatePurchaseTotalParams) (Purchase, error) {
	row := q.db.QueryRow(ctx, updatePurchaseTotal, arg.ID, arg.TotalMinor)
	var i Purchase
	err := row.Scan(
		&i.ID,
		&i.StoreID,
		&i.SupplierName,
		&i.TotalMinor,
		&i.Currency,
		&i.CreatedAt,
	)
	return i, err
}

const listPurchasesByStore = `-- name: ListPurchasesByStore :many
SELECT id, store_id, supplier_name, total_minor, currency, created_at
FROM purchases
WHERE store_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

type ListPurchasesByStoreParams struct {
	StoreID uuid.UUID
	Limit   int32
	Offset  int32
}

func (q *Queries) ListPurchasesByStore(ctx context.Context, arg ListPurchasesByStoreParams) ([]Purchase, error) {
	rows, err := q.db.Query(ctx, listPurchasesByStore, arg.StoreID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Purchase
	for rows.Next() {
		var i Purchase
		if err := rows.Scan(
			&i.ID,
			&i.StoreID,
			&i.SupplierName,
			&i.TotalMinor,
			&i.Currency,
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

const createPurchaseItem = `-- name: CreatePurchaseItem :one
INSERT INTO purchase_items (purchase_id, product_id, variant_id, quantity, unit, quantity_base, unit_cost_minor, line_total_minor)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, purchase_id, product_id, variant_id, quantity, unit, quantity_base, unit_cost_minor, line_total_minor
`

type CreatePurchaseItemParams struct {
	PurchaseID     uuid.UUID
	ProductID      uuid.UUID
	VariantID      pgtype.UUID
	Quantity       int64
	Unit           pgtype.Text
	QuantityBase   pgtype.Int8
	UnitCostMinor  int64
	LineTotalMinor int64
}

func (q *Queries) CreatePurchaseItem(ctx context.Context, arg CreatePurchaseItemParams) (PurchaseItem, error) {
	row := q.db.QueryRow(ctx, createPurchaseItem,
		arg.PurchaseID,
		arg.ProductID,
		arg.VariantID,
		arg.Quantity,
		arg.Unit,
		arg.QuantityBase,
		arg.UnitCostMinor,
		arg.LineTotalMinor,
	)
	var i PurchaseItem
	err := row.Scan(
		&i.ID,
		&i.PurchaseID,
		&i.ProductID,
		&i.VariantID,
		&i.Quantity,
		&i.Unit,
		&i.QuantityBase,
		&i.UnitCostMinor,
		&i.LineTotalMinor,
	)
	return i, err
}

const listPurchaseItems = `-- name: ListPurchaseItems :many
SELECT pi.id, pi.purchase_id, pi.product_id, pi.variant_id, pi.quantity, pi.unit, pi.quantity_base, pi.unit_cost_minor, pi.line_total_minor,
       p.name AS product_name
FROM purchase_items pi
JOIN products p ON p.id = pi.product_id
WHERE pi.purchase_id = $1
ORDER BY p.name
`

type ListPurchaseItemsRow struct {
	ID             uuid.UUID
	PurchaseID     uuid.UUID
	ProductID      uuid.UUID
	VariantID      pgtype.UUID
	Quantity       int64
	Unit           pgtype.Text
	QuantityBase   pgtype.Int8
	UnitCostMinor  int64
	LineTotalMinor int64
	ProductName    string
}

func (q *Queries) ListPurchaseItems(ctx context.Context, purchaseID uuid.UUID) ([]ListPurchaseItemsRow, error) {
	rows, err := q.db.Query(ctx, listPurchaseItems, purchaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListPurchaseItemsRow
	for rows.Next() {
		var i ListPurchaseItemsRow
		if err := rows.Scan(
			&i.ID,
			&i.PurchaseID,
			&i.ProductID,
			&i.VariantID,
			&i.Quantity,
			&i.Unit,
			&i.QuantityBase,
			&i.UnitCostMinor,
			&i.LineTotalMinor,
			&i.ProductName,
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
