package catalog

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/supermandi/api/internal/database"
)

// ErrBarcodeInUse is returned when a barcode cannot be attached because
// the value already belongs to another variant.
var ErrBarcodeInUse = errors.New("barcode_in_use")

// StandardPackSizes are the loose-sale pack sizes, in base units.
var StandardPackSizes = []int64{100, 250, 500, 1000}

var internalBarcodePattern = regexp.MustCompile(`^SM[0-9A-F]{12}$`)

// IsInternalBarcode reports whether value looks like one of our printed
// SM labels. Matching is case-insensitive; reads upper-case first.
func IsInternalBarcode(value string) bool {
	return internalBarcodePattern.MatchString(strings.ToUpper(value))
}

// BarcodeKey is the lookup form of a scanned barcode: internal labels
// are case-normalized, everything else is matched verbatim.
func BarcodeKey(value string) string {
	if IsInternalBarcode(value) {
		return strings.ToUpper(value)
	}
	return value
}

// EnsureInternalBarcode returns the variant's SM label, minting one if
// the variant has none yet. Random collisions are retried a few times
// before giving up.
func EnsureInternalBarcode(ctx context.Context, store Store, variantID uuid.UUID) (database.Barcode, error) {
	existing, err := store.GetBarcodeForVariant(ctx, database.GetBarcodeForVariantParams{
		VariantID: variantID,
		Type:      database.BarcodeTypeSupermandi,
	})
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.Barcode{}, fmt.Errorf("get internal barcode: %w", err)
	}

	const maxAttempts = 5
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := newInternalBarcode()
		if err != nil {
			return database.Barcode{}, err
		}
		created, err := store.CreateBarcode(ctx, database.CreateBarcodeParams{
			Barcode:   code,
			VariantID: variantID,
			Type:      database.BarcodeTypeSupermandi,
		})
		switch {
		case err == nil:
			return created, nil
		case isUniqueViolation(err, "barcodes_variant_id_type_key"):
			// A concurrent mint for the same variant won; use its label.
			return store.GetBarcodeForVariant(ctx, database.GetBarcodeForVariantParams{
				VariantID: variantID,
				Type:      database.BarcodeTypeSupermandi,
			})
		case isUniqueViolation(err, "barcodes_pkey"):
			continue
		default:
			return database.Barcode{}, fmt.Errorf("create internal barcode: %w", err)
		}
	}
	return database.Barcode{}, fmt.Errorf("create internal barcode: exhausted %d attempts: %w", maxAttempts, ErrBarcodeInUse)
}

// AttachBarcode records an externally printed code against a variant.
func AttachBarcode(ctx context.Context, store Store, variantID uuid.UUID, value string) (database.Barcode, error) {
	created, err := store.CreateBarcode(ctx, database.CreateBarcodeParams{
		Barcode:   BarcodeKey(value),
		VariantID: variantID,
		Type:      database.BarcodeTypeManufacturer,
	})
	if err != nil {
		if isUniqueViolation(err, "barcodes_pkey") {
			return database.Barcode{}, ErrBarcodeInUse
		}
		return database.Barcode{}, fmt.Errorf("attach barcode: %w", err)
	}
	return created, nil
}

// EnsureStandardPacks materializes the standard pack variants for a
// product sold loose, each carrying its own SM label and a price link
// for the store. Safe to call repeatedly.
func EnsureStandardPacks(ctx context.Context, store Store, storeID uuid.UUID, product database.Product, baseUnit string) error {
	for _, size := range StandardPackSizes {
		variant, err := store.GetVariantByPack(ctx, database.GetVariantByPackParams{
			ProductID: product.ID,
			UnitBase:  pgtype.Text{String: baseUnit, Valid: true},
			SizeBase:  pgtype.Int8{Int64: size, Valid: true},
		})
		if errors.Is(err, pgx.ErrNoRows) {
			variant, err = store.CreateVariant(ctx, database.CreateVariantParams{
				ProductID: product.ID,
				Name:      fmt.Sprintf("%s %d%s", product.Name, size, baseUnit),
				Currency:  DefaultCurrency,
				UnitBase:  pgtype.Text{String: baseUnit, Valid: true},
				SizeBase:  pgtype.Int8{Int64: size, Valid: true},
			})
			if isUniqueViolation(err, "variants_standard_pack_key") {
				variant, err = store.GetVariantByPack(ctx, database.GetVariantByPackParams{
					ProductID: product.ID,
					UnitBase:  pgtype.Text{String: baseUnit, Valid: true},
					SizeBase:  pgtype.Int8{Int64: size, Valid: true},
				})
			}
		}
		if err != nil {
			return fmt.Errorf("pack %d%s: %w", size, baseUnit, err)
		}

		if _, err := EnsureInternalBarcode(ctx, store, variant.ID); err != nil {
			return fmt.Errorf("pack %d%s: %w", size, baseUnit, err)
		}
		if err := store.LinkRetailerVariant(ctx, database.LinkRetailerVariantParams{
			StoreID:   storeID,
			VariantID: variant.ID,
		}); err != nil {
			return fmt.Errorf("pack %d%s: %w", size, baseUnit, err)
		}
	}
	return nil
}

func newInternalBarcode() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("random barcode: %w", err)
	}
	return "SM" + strings.ToUpper(hex.EncodeToString(buf)), nil
}

