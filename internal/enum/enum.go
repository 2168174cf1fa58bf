package enum

// ── Group A: State machines (native enums in DB, mirrored in database pkg) ──
//
// SaleStatus, PaymentMode, PaymentStatus and MovementType are Postgres
// enum types; their Go constants live in internal/database. The groups
// below cover TEXT columns and wire-level vocabularies.

// ── Group B: Scan vocabulary ──

const (
	ScanModeSell     = "SELL"
	ScanModeDigitise = "DIGITISE"
)

const (
	ScanActionAddToCart        = "ADD_TO_CART"
	ScanActionPromptPrice      = "PROMPT_PRICE"
	ScanActionDigitised        = "DIGITISED"
	ScanActionAlreadyDigitised = "ALREADY_DIGITISED"
	ScanActionIgnored          = "IGNORED"
)

const (
	CodeTypeGS1        = "GS1"
	CodeTypeEAN        = "EAN"
	CodeTypeUPC        = "UPC"
	CodeTypeCode128    = "CODE128"
	CodeTypeQR         = "QR"
	CodeTypeDataMatrix = "DATAMATRIX"
)

// Text fallbacks carry the symbology family plus a _TEXT suffix so the
// catalog can later migrate them to the strongly-typed base code.
const (
	CodeTypeQRText         = "QR_TEXT"
	CodeTypeCode128Text    = "CODE128_TEXT"
	CodeTypeDataMatrixText = "DATAMATRIX_TEXT"
	CodeTypeUnknownText    = "UNKNOWN_TEXT"
)

// ── Group C: Units (CHECK constrained in DB) ──

const (
	UnitBaseGram       = "g"
	UnitBaseMilliliter = "ml"
)

const (
	UnitKilogram = "kg"
	UnitLiter    = "l"
)

// ── Group D: Offline sync events ──

const (
	EventTypeProductUpsert     = "PRODUCT_UPSERT"
	EventTypeProductPriceSet   = "PRODUCT_PRICE_SET"
	EventTypeSaleCreated       = "SALE_CREATED"
	EventTypePaymentCash       = "PAYMENT_CASH"
	EventTypePaymentDue        = "PAYMENT_DUE"
	EventTypeCollectionCreated = "COLLECTION_CREATED"
	EventTypePurchaseSubmit    = "PURCHASE_SUBMIT"
	EventTypePurchaseCreated   = "PURCHASE_CREATED"
)

const (
	SyncStatusApplied          = "applied"
	SyncStatusDuplicateIgnored = "duplicate_ignored"
	SyncStatusRejected         = "rejected"
)

// ── Group E: Ledger references ──

const (
	ReferenceTypeSale     = "SALE"
	ReferenceTypePurchase = "PURCHASE"
)

// ── Group F: Configurable labels (no DB constraint) ──

const (
	DeviceTypeHandheld = "HANDHELD"
	DeviceTypeDesktop  = "DESKTOP"
)

const (
	PrintingModeNone      = "NONE"
	PrintingModeBluetooth = "BLUETOOTH"
	PrintingModeUSB       = "USB"
)

const (
	CollectionModeCash = "CASH"
	CollectionModeUPI  = "UPI"
)

const CollectionStatusRecorded = "RECORDED"
