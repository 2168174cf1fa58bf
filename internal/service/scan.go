package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/supermandi/api/internal/catalog"
	"github.com/supermandi/api/internal/database"
	"github.com/supermandi/api/internal/enum"
	"github.com/supermandi/api/internal/scan"
)

// ScanDedupWindow is how long an identical scan in the same store and
// mode is treated as a double-read of one physical scan.
const ScanDedupWindow = 500 * time.Millisecond

// Errors returned by the scan service.
var (
	ErrInvalidScanMode = errors.New("invalid_mode")
	ErrInvalidScan     = errors.New("invalid_scan")
)

// ScanStore defines the DB methods needed to resolve scans.
// Satisfied by *database.Queries (and its WithTx variant).
type ScanStore interface {
	catalog.Store
	CreateScanEvent(ctx context.Context, arg database.CreateScanEventParams) (database.ScanEvent, error)
	GetLastScanEvent(ctx context.Context, arg database.GetLastScanEventParams) (database.ScanEvent, error)
}

// NewScanStore creates a ScanStore from a DBTX (pool or tx).
type NewScanStore func(db database.DBTX) ScanStore

// ResolveScanRequest is the validated input for resolving a scan.
type ResolveScanRequest struct {
	StoreID    uuid.UUID
	DeviceID   uuid.UUID
	ScanValue  string
	FormatHint string
	Mode       string
	Name       string // optional caller-supplied product name for DIGITISE
}

// ResolveScanResult is the outcome of one scan.
type ResolveScanResult struct {
	Action          string
	NotFound        bool // SELL scan of a code with no catalog entry
	CodeType        string
	NormalizedValue string
	Match           *catalog.ScanMatch      // set for SELL hits
	Digitised       *catalog.DigitiseResult // set for DIGITISE
}

// ScanService resolves device scans against the catalog and records the
// scan trail.
type ScanService struct {
	pool     TxBeginner
	newStore NewScanStore
	dedup    *scan.Deduper
	window   time.Duration
	now      func() time.Time
}

// NewScanService creates a new ScanService.
func NewScanService(pool TxBeginner, newStore NewScanStore) *ScanService {
	return &ScanService{
		pool:     pool,
		newStore: newStore,
		dedup:    scan.NewDeduper(ScanDedupWindow),
		window:   ScanDedupWindow,
		now:      time.Now,
	}
}

// Resolve normalizes a scan, resolves it against the catalog for the
// bound store, and records a scan event. Rapid duplicates of the same
// physical scan yield action IGNORED without touching the catalog.
func (s *ScanService) Resolve(ctx context.Context, req ResolveScanRequest) (*ResolveScanResult, error) {
	mode := strings.ToUpper(strings.TrimSpace(req.Mode))
	if mode != enum.ScanModeSell && mode != enum.ScanModeDigitise {
		return nil, ErrInvalidScanMode
	}
	value := strings.TrimSpace(req.ScanValue)
	if value == "" {
		return nil, ErrInvalidScan
	}

	normalized := scan.Normalize(req.FormatHint, value)
	if normalized == nil {
		return nil, ErrInvalidScan
	}

	duplicate := s.dedup.Observe(req.StoreID.String(), mode, value)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// The in-memory window is advisory and empty after a restart; the
	// scan_events table is the durable record.
	if !duplicate {
		last, err := store.GetLastScanEvent(ctx, database.GetLastScanEventParams{
			StoreID:   req.StoreID,
			Mode:      mode,
			ScanValue: value,
		})
		switch {
		case err == nil:
			duplicate = s.now().Sub(last.CreatedAt) < s.window
		case !errors.Is(err, pgx.ErrNoRows):
			return nil, fmt.Errorf("look up last scan: %w", err)
		}
	}

	result := &ResolveScanResult{
		CodeType:        normalized.CodeType,
		NormalizedValue: normalized.NormalizedValue,
	}

	if duplicate {
		result.Action = enum.ScanActionIgnored
		if err := s.recordEvent(ctx, store, req, mode, value, result.Action, uuid.Nil); err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit tx: %w", err)
		}
		return result, nil
	}

	switch mode {
	case enum.ScanModeSell:
		match, err := catalog.ResolveForSale(ctx, store, req.StoreID, normalized.CodeType, normalized.NormalizedValue)
		if err != nil {
			if errors.Is(err, catalog.ErrProductNotFound) {
				// Unknown code in SELL mode: nothing to record an event
				// against; the device is expected to offer digitising.
				result.NotFound = true
				return result, nil
			}
			return nil, err
		}
		result.Match = &match
		result.Action = enum.ScanActionPromptPrice
		if match.SellPriceMinor.Valid && match.SellPriceMinor.Int64 > 0 {
			result.Action = enum.ScanActionAddToCart
		}
		if err := s.recordEvent(ctx, store, req, mode, value, result.Action, match.VariantID); err != nil {
			return nil, err
		}

	case enum.ScanModeDigitise:
		digitised, err := catalog.Digitise(ctx, store, req.StoreID, catalog.IdentifierRef{
			CodeType:        normalized.CodeType,
			RawValue:        value,
			NormalizedValue: normalized.NormalizedValue,
		}, req.Name)
		if err != nil {
			return nil, err
		}
		result.Digitised = &digitised
		result.Action = enum.ScanActionAlreadyDigitised
		if digitised.Created {
			result.Action = enum.ScanActionDigitised
		}
		if err := s.recordEvent(ctx, store, req, mode, value, result.Action, digitised.Variant.ID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return result, nil
}

func (s *ScanService) recordEvent(ctx context.Context, store ScanStore, req ResolveScanRequest, mode, value, action string, variantID uuid.UUID) error {
	_, err := store.CreateScanEvent(ctx, database.CreateScanEventParams{
		StoreID:   req.StoreID,
		DeviceID:  pgtype.UUID{Bytes: req.DeviceID, Valid: req.DeviceID != uuid.Nil},
		ScanValue: value,
		Mode:      mode,
		Action:    action,
		VariantID: pgtype.UUID{Bytes: variantID, Valid: variantID != uuid.Nil},
	})
	if err != nil {
		return fmt.Errorf("record scan event: %w", err)
	}
	return nil
}
