package database

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type BarcodeType string

const (
	BarcodeTypeSupermandi   BarcodeType = "supermandi"
	BarcodeTypeManufacturer BarcodeType = "manufacturer"
)

func (e *BarcodeType) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = BarcodeType(s)
	case string:
		*e = BarcodeType(s)
	default:
		return fmt.Errorf("unsupported scan type for BarcodeType: %T", src)
	}
	return nil
}

type NullBarcodeType struct {
	BarcodeType BarcodeType
	Valid       bool // Valid is true if BarcodeType is not NULL
}

// Scan implements the Scanner interface.
func (ns *NullBarcodeType) Scan(value interface{}) error {
	if value == nil {
		ns.BarcodeType, ns.Valid = "", false
		return nil
	}
	ns.Valid = true
	return ns.BarcodeType.Scan(value)
}

// Value implements the driver Valuer interface.
func (ns NullBarcodeType) Value() (driver.Value, error) {
	if !ns.Valid {
		return nil, nil
	}
	return string(ns.BarcodeType), nil
}

type MovementType string

const (
	MovementTypeRECEIVE    MovementType = "RECEIVE"
	MovementTypeSELL       MovementType = "SELL"
	MovementTypeADJUSTMENT MovementType = "ADJUSTMENT"
)

func (e *MovementType) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = MovementType(s)
	case string:
		*e = MovementType(s)
	default:
		return fmt.Errorf("unsupported scan type for MovementType: %T", src)
	}
	return nil
}

type NullMovementType struct {
	MovementType MovementType
	Valid        bool // Valid is true if MovementType is not NULL
}

// Scan implements the Scanner interface.
func (ns *NullMovementType) Scan(value interface{}) error {
	if value == nil {
		ns.MovementType, ns.Valid = "", false
		return nil
	}
	ns.Valid = true
	return ns.MovementType.Scan(value)
}

// Value implements the driver Valuer interface.
func (ns NullMovementType) Value() (driver.Value, error) {
	if !ns.Valid {
		return nil, nil
	}
	return string(ns.MovementType), nil
}

type PaymentMode string

const (
	PaymentModeCASH PaymentMode = "CASH"
	PaymentModeUPI  PaymentMode = "UPI"
	PaymentModeDUE  PaymentMode = "DUE"
)

func (e *PaymentMode) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = PaymentMode(s)
	case string:
		*e = PaymentMode(s)
	default:
		return fmt.Errorf("unsupported scan type for PaymentMode: %T", src)
	}
	return nil
}

type NullPaymentMode struct {
	PaymentMode PaymentMode
	Valid       bool // Valid is true if PaymentMode is not NULL
}

// Scan implements the Scanner interface.
func (ns *NullPaymentMode) Scan(value interface{}) error {
	if value == nil {
		ns.PaymentMode, ns.Valid = "", false
		return nil
	}
	ns.Valid = true
	return ns.PaymentMode.Scan(value)
}

// Value implements the driver Valuer interface.
func (ns NullPaymentMode) Value() (driver.Value, error) {
	if !ns.Valid {
		return nil, nil
	}
	return string(ns.PaymentMode), nil
}

type PaymentStatus string

const (
	PaymentStatusPENDING PaymentStatus = "PENDING"
	PaymentStatusPAID    PaymentStatus = "PAID"
	PaymentStatusDUE     PaymentStatus = "DUE"
)

func (e *PaymentStatus) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = PaymentStatus(s)
	case string:
		*e = PaymentStatus(s)
	default:
		return fmt.Errorf("unsupported scan type for PaymentStatus: %T", src)
	}
	return nil
}

type NullPaymentStatus struct {
	PaymentStatus PaymentStatus
	Valid         bool // Valid is true if PaymentStatus is not NULL
}

// Scan implements the Scanner interface.
func (ns *NullPaymentStatus) Scan(value interface{}) error {
	if value == nil {
		ns.PaymentStatus, ns.Valid = "", false
		return nil
	}
	ns.Valid = true
	return ns.PaymentStatus.Scan(value)
}

// Value implements the driver Valuer interface.
func (ns NullPaymentStatus) Value() (driver.Value, error) {
	if !ns.Valid {
		return nil, nil
	}
	return string(ns.PaymentStatus), nil
}

type SaleStatus string

const (
	SaleStatusPENDING   SaleStatus = "PENDING"
	SaleStatusPAIDCASH  SaleStatus = "PAID_CASH"
	SaleStatusPAIDUPI   SaleStatus = "PAID_UPI"
	SaleStatusDUE       SaleStatus = "DUE"
	SaleStatusCANCELLED SaleStatus = "CANCELLED"
	SaleStatusCREATED   SaleStatus = "CREATED"
)

func (e *SaleStatus) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = SaleStatus(s)
	case string:
		*e = SaleStatus(s)
	default:
		return fmt.Errorf("unsupported scan type for SaleStatus: %T", src)
	}
	return nil
}

type NullSaleStatus struct {
	SaleStatus SaleStatus
	Valid      bool // Valid is true if SaleStatus is not NULL
}

// Scan implements the Scanner interface.
func (ns *NullSaleStatus) Scan(value interface{}) error {
	if value == nil {
		ns.SaleStatus, ns.Valid = "", false
		return nil
	}
	ns.Valid = true
	return ns.SaleStatus.Scan(value)
}

// Value implements the driver Valuer interface.
func (ns NullSaleStatus) Value() (driver.Value, error) {
	if !ns.Valid {
		return nil, nil
	}
	return string(ns.SaleStatus), nil
}

type Barcode struct {
	Barcode   string
	VariantID uuid.UUID
	Type      BarcodeType
	CreatedAt time.Time
}

type BulkInventory struct {
	StoreID      uuid.UUID
	ProductID    uuid.UUID
	BaseUnit     string
	QuantityBase int64
	UpdatedAt    time.Time
}

type Collection struct {
	ID          uuid.UUID
	StoreID     uuid.UUID
	DeviceID    pgtype.UUID
	AmountMinor int64
	Mode        string
	Reference   pgtype.Text
	Status      string
	CreatedAt   time.Time
}

type DeviceEnrollmentCode struct {
	Code      string
	StoreID   uuid.UUID
	ExpiresAt time.Time
	UsedAt    pgtype.Timestamptz
	CreatedAt time.Time
}

type GlobalProduct struct {
	ID         uuid.UUID
	GlobalName string
	Category   pgtype.Text
	CreatedAt  time.Time
}

type GlobalProductIdentifier struct {
	ID              uuid.UUID
	GlobalProductID uuid.UUID
	CodeType        string
	RawValue        string
	NormalizedValue string
	CreatedAt       time.Time
}

type InventoryLedger struct {
	ID              uuid.UUID
	StoreID         uuid.UUID
	GlobalProductID uuid.UUID
	MovementType    MovementType
	Quantity        int64
	UnitCostMinor   pgtype.Int8
	UnitSellMinor   pgtype.Int8
	Reason          pgtype.Text
	ReferenceType   pgtype.Text
	ReferenceID     pgtype.UUID
	CreatedAt       time.Time
}

type Payment struct {
	ID          uuid.UUID
	SaleID      pgtype.UUID
	Mode        PaymentMode
	Status      PaymentStatus
	AmountMinor int64
	ProviderRef pgtype.Text
	ConfirmedAt pgtype.Timestamptz
	CreatedAt   time.Time
}

type PosDevice struct {
	ID                 uuid.UUID
	StoreID            pgtype.UUID
	DeviceToken        pgtype.Text
	Active             bool
	Label              string
	DeviceType         string
	PrintingMode       string
	AppVersion         pgtype.Text
	LastSeenOnline     pgtype.Timestamptz
	LastSyncAt         pgtype.Timestamptz
	PendingOutboxCount int32
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type PosEvent struct {
	ID        uuid.UUID
	DeviceID  pgtype.UUID
	StoreID   pgtype.UUID
	EventName string
	Payload   []byte
	CreatedAt time.Time
}

type ProcessedEvent struct {
	EventID    string
	DeviceID   uuid.UUID
	StoreID    uuid.UUID
	EventType  string
	ReceivedAt time.Time
}

type Product struct {
	ID              uuid.UUID
	GlobalProductID pgtype.UUID
	Name            string
	UnitBase        pgtype.Text
	CreatedAt       time.Time
}

type Purchase struct {
	ID           uuid.UUID
	StoreID      uuid.UUID
	SupplierName pgtype.Text
	TotalMinor   int64
	Currency     string
	CreatedAt    time.Time
}

type PurchaseItem struct {
	ID             uuid.UUID
	PurchaseID     uuid.UUID
	ProductID      uuid.UUID
	VariantID      pgtype.UUID
	Quantity       int64
	Unit           pgtype.Text
	QuantityBase   pgtype.Int8
	UnitCostMinor  int64
	LineTotalMinor int64
}

type RetailerVariant struct {
	ID                uuid.UUID
	StoreID           uuid.UUID
	VariantID         uuid.UUID
	SellingPriceMinor pgtype.Int8
	PriceUpdatedAt    pgtype.Timestamptz
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Sale struct {
	ID                uuid.UUID
	StoreID           uuid.UUID
	DeviceID          pgtype.UUID
	BillRef           string
	OfflineReceiptRef pgtype.Text
	SubtotalMinor     int64
	DiscountMinor     int64
	TotalMinor        int64
	Currency          string
	Status            SaleStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type SaleItem struct {
	ID             uuid.UUID
	SaleID         uuid.UUID
	VariantID      uuid.UUID
	Quantity       int64
	PriceMinor     int64
	LineTotalMinor int64
	ItemName       string
	Barcode        pgtype.Text
}

type ScanEvent struct {
	ID        uuid.UUID
	StoreID   uuid.UUID
	DeviceID  pgtype.UUID
	ScanValue string
	Mode      string
	Action    string
	VariantID pgtype.UUID
	CreatedAt time.Time
}

type Store struct {
	ID                  uuid.UUID
	Name                string
	UpiVpa              pgtype.Text
	ScanLookupV2Enabled bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type StoreInventory struct {
	StoreID         uuid.UUID
	GlobalProductID uuid.UUID
	AvailableQty    int64
	UpdatedAt       time.Time
}

type StoreProduct struct {
	ID                 uuid.UUID
	StoreID            uuid.UUID
	GlobalProductID    uuid.UUID
	StoreDisplayName   pgtype.Text
	SellPriceMinor     pgtype.Int8
	PurchasePriceMinor pgtype.Int8
	Unit               pgtype.Text
	Variant            pgtype.Text
	Currency           string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type Variant struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	Name      string
	Currency  string
	UnitBase  pgtype.Text
	SizeBase  pgtype.Int8
	CreatedAt time.Time
}
