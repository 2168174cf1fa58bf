package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createStore = `-- name: CreateStore :one
INSERT INTO stores (name, upi_vpa)
VALUES ($1, $2)
RETURNING id, name, upi_vpa, scan_lookup_v2_enabled, created_at, updated_at
`

type CreateStoreParams struct {
	Name   string
	UpiVpa pgtype.Text
}

func (q *Queries) CreateStore(ctx context.Context, arg CreateStoreParams) (Store, error) {
	row := q.db.QueryRow(ctx, createStore, arg.Name, arg.UpiVpa)
	var i Store
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.UpiVpa,
		&i.ScanLookupV2Enabled,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getStore = `-- name: GetStore :one
SELECT id, name, upi_vpa, scan_lookup_v2_enabled, created_at, updated_at
FROM stores
WHERE id = $1
`

func (q *Queries) GetStore(ctx context.Context, id uuid.UUID) (Store, error) {
	row := q.db.QueryRow(ctx, getStore, id)
	var i Store
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.UpiVpa,
		&i.ScanLookupV2Enabled,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getStoreStatus = `-- name: GetStoreStatus :one
SELECT id,
       name,
       (upi_vpa IS NOT NULL AND upi_vpa <> '') AS active,
       scan_lookup_v2_enabled
FROM stores
WHERE id = $1
`

type GetStoreStatusRow struct {
	ID                  uuid.UUID
	Name                string
	Active              bool
	ScanLookupV2Enabled bool
}

func (q *Queries) GetStoreStatus(ctx context.Context, id uuid.UUID) (GetStoreStatusRow, error) {
	row := q.db.QueryRow(ctx, getStoreStatus, id)
	var i GetStoreStatusRow
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Active,
		&i.ScanLookupV2Enabled,
	)
	return i, err
}

const listStores = `-- name: ListStores :many
SELECT s.id, s.name, s.upi_vpa, s.scan_lookup_v2_enabled, s.created_at, s.updated_at,
       COUNT(d.id) FILTER (WHERE d.active) AS active_devices
FROM stores s
LEFT JOIN pos_devices d ON d.store_id = s.id
GROUP BY s.id
ORDER BY s.created_at
`

type ListStoresRow struct {
	ID                  uuid.UUID
	Name                string
	UpiVpa              pgtype.Text
	ScanLookupV2Enabled bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
	ActiveDevices       int64
}

func (q *Queries) ListStores(ctx context.Context) ([]ListStoresRow, error) {
	rows, err := q.db.Query(ctx, listStores)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListStoresRow
	for rows.Next() {
		var i ListStoresRow
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.UpiVpa,
			&i.ScanLookupV2Enabled,
			&i.CreatedAt,
			&i.UpdatedAt,
			&i.ActiveDevices,
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

const updateStore = `-- name: UpdateStore :one
UPDATE stores
SET name = COALESCE($2, name),
    upi_vpa = COALESCE($3, upi_vpa),
    scan_lookup_v2_enabled = COALESCE($4, scan_lookup_v2_enabled),
    updated_at = now()
WHERE id = $1
RETURNING id, name, upi_vpa, scan_lookup_v2_enabled, created_at, updated_at
`

type UpdateStoreParams struct {
	ID                  uuid.UUID
	Name                pgtype.Text
	UpiVpa              pgtype.Text
	ScanLookupV2Enabled pgtype.Bool
}

func (q *Queries) UpdateStore(ctx context.Context, arg UpdateStoreParams) (Store, error) {
	row := q.db.QueryRow(ctx, updateStore,
		arg.ID,
		arg.Name,
		arg.UpiVpa,
		arg.ScanLookupV2Enabled,
	)
	var i Store
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.UpiVpa,
		&i.ScanLookupV2Enabled,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
