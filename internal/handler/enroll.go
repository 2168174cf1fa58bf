package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/supermandi/api/internal/catalog"
	"github.com/supermandi/api/internal/database"
	"github.com/supermandi/api/internal/enum"
	"github.com/supermandi/api/internal/inventory"
	"github.com/supermandi/api/internal/service"
)

// EnrollStore defines the database methods needed to enroll a device.
// Satisfied by *database.Queries; narrow interface for testability.
type EnrollStore interface {
	GetEnrollmentCodeForUpdate(ctx context.Context, code string) (database.DeviceEnrollmentCode, error)
	MarkEnrollmentCodeUsed(ctx context.Context, code string) (int64, error)
	GetDeviceByStoreAndLabel(ctx context.Context, arg database.GetDeviceByStoreAndLabelParams) (database.PosDevice, error)
	CreateDevice(ctx context.Context, arg database.CreateDeviceParams) (database.PosDevice, error)
	UpdateDeviceToken(ctx context.Context, arg database.UpdateDeviceTokenParams) (database.PosDevice, error)
	GetStoreStatus(ctx context.Context, id uuid.UUID) (database.GetStoreStatusRow, error)
}

// NewEnrollStore creates an EnrollStore from a DBTX (pool or tx).
type NewEnrollStore func(db database.DBTX) EnrollStore

// EnrollHandler binds devices to stores via enrollment codes.
type EnrollHandler struct {
	pool     service.TxBeginner
	newStore NewEnrollStore
}

// NewEnrollHandler creates a new EnrollHandler.
func NewEnrollHandler(pool service.TxBeginner, newStore NewEnrollStore) *EnrollHandler {
	return &EnrollHandler{pool: pool, newStore: newStore}
}

// RegisterRoutes registers the enrollment endpoint on the given Chi router.
func (h *EnrollHandler) RegisterRoutes(r chi.Router) {
	r.Post("/enroll", h.Enroll)
}

// --- Request / Response types ---

type deviceMeta struct {
	Label        string `json:"label"`
	DeviceType   string `json:"deviceType"`
	PrintingMode string `json:"printingMode"`
	AppVersion   string `json:"appVersion"`
}

type enrollRequest struct {
	Code       string     `json:"code"`
	DeviceMeta deviceMeta `json:"deviceMeta"`
}

type enrollResponse struct {
	DeviceID    uuid.UUID `json:"deviceId"`
	StoreID     uuid.UUID `json:"storeId"`
	DeviceToken string    `json:"deviceToken"`
	StoreActive bool      `json:"storeActive"`
}

// --- Handlers ---

// Enroll handles POST /enroll. A fresh, unexpired code binds a new
// device; a device re-enrolling under a label the store already knows
// gets a rotated token even when the code is spent or expired.
func (h *EnrollHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	code := strings.TrimSpace(req.Code)
	label := strings.TrimSpace(req.DeviceMeta.Label)
	if code == "" || label == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "enrollment_invalid"})
		return
	}

	token, err := newDeviceToken()
	if err != nil {
		log.Printf("ERROR: generate device token: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin tx for enroll: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(r.Context())

	store := h.newStore(tx)

	// Lock the code row so two devices cannot spend it concurrently.
	enrollCode, err := store.GetEnrollmentCodeForUpdate(r.Context(), code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "enrollment_invalid"})
			return
		}
		log.Printf("ERROR: look up enrollment code: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	device, err := store.GetDeviceByStoreAndLabel(r.Context(), database.GetDeviceByStoreAndLabelParams{
		StoreID: pgtype.UUID{Bytes: enrollCode.StoreID, Valid: true},
		Label:   label,
	})
	switch {
	case err == nil:
		// Known device under this label: rotate the token, ignore the
		// code's spent/expired state.
		device, err = store.UpdateDeviceToken(r.Context(), database.UpdateDeviceTokenParams{
			ID:           device.ID,
			DeviceToken:  pgtype.Text{String: token, Valid: true},
			AppVersion:   optionalText(req.DeviceMeta.AppVersion),
			PrintingMode: optionalText(req.DeviceMeta.PrintingMode),
		})
		if err != nil {
			log.Printf("ERROR: rotate device token: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}

	case errors.Is(err, pgx.ErrNoRows):
		// First-time binding: the code must be live.
		if enrollCode.UsedAt.Valid || time.Now().After(enrollCode.ExpiresAt) {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "enrollment_invalid"})
			return
		}
		device, err = store.CreateDevice(r.Context(), database.CreateDeviceParams{
			StoreID:      pgtype.UUID{Bytes: enrollCode.StoreID, Valid: true},
			DeviceToken:  pgtype.Text{String: token, Valid: true},
			Label:        label,
			DeviceType:   defaultString(req.DeviceMeta.DeviceType, enum.DeviceTypeHandheld),
			PrintingMode: defaultString(req.DeviceMeta.PrintingMode, enum.PrintingModeBluetooth),
			AppVersion:   optionalText(req.DeviceMeta.AppVersion),
		})
		if err != nil {
			log.Printf("ERROR: create device: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		if _, err := store.MarkEnrollmentCodeUsed(r.Context(), code); err != nil {
			log.Printf("ERROR: mark enrollment code used: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}

	default:
		log.Printf("ERROR: look up device by label: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	status, err := store.GetStoreStatus(r.Context(), enrollCode.StoreID)
	if err != nil {
		log.Printf("ERROR: get store status: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit tx for enroll: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, enrollResponse{
		DeviceID:    device.ID,
		StoreID:     enrollCode.StoreID,
		DeviceToken: token,
		StoreActive: status.Active,
	})
}

// --- Helpers ---

// newDeviceToken draws the 64-hex-char bearer token a device presents on
// every request.
func newDeviceToken() (string, error) {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("token entropy: %w", err)
	}
	return hex.EncodeToString(buf[:]), nil
}

func defaultString(s, fallback string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return fallback
}

func optionalText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	return pgtype.Text{String: s, Valid: s != ""}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

// errorBody builds the standard error envelope. When the error carries
// context beyond the bare token (a wrapped "item[2]: ..." prefix), the
// full text rides along as message.
func errorBody(token string, err error) map[string]string {
	body := map[string]string{"error": token}
	if msg := err.Error(); msg != token {
		body["message"] = msg
	}
	return body
}

// writeServiceError maps service-layer sentinels onto the stable HTTP
// error vocabulary. Anything unmatched is a 500.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	var stockErr *inventory.InsufficientStockError
	if errors.As(err, &stockErr) {
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":   "insufficient_stock",
			"details": stockErr.Items,
		})
		return
	}

	for _, m := range serviceErrorMap {
		if errors.Is(err, m.sentinel) {
			writeJSON(w, m.status, errorBody(m.sentinel.Error(), err))
			return
		}
	}

	log.Printf("ERROR: %s: %v", op, err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

// serviceErrorMap pairs each sentinel with its HTTP status. Checked in
// order, so more specific entries can shadow broader ones.
var serviceErrorMap = []struct {
	sentinel error
	status   int
}{
	{service.ErrItemsRequired, http.StatusBadRequest},
	{service.ErrInvalidQuantity, http.StatusBadRequest},
	{service.ErrInvalidItem, http.StatusBadRequest},
	{service.ErrInvalidPaymentMode, http.StatusBadRequest},
	{service.ErrUpiIntentNotAllowed, http.StatusBadRequest},
	{service.ErrInvalidScanMode, http.StatusBadRequest},
	{service.ErrInvalidScan, http.StatusBadRequest},
	{catalog.ErrVariantNotFound, http.StatusBadRequest},
	{catalog.ErrBarcodeInUse, http.StatusConflict},
	{catalog.ErrProductNotFound, http.StatusNotFound},
	{service.ErrSaleNotFound, http.StatusNotFound},
	{service.ErrPaymentNotFound, http.StatusNotFound},
	{service.ErrSaleNotPending, http.StatusConflict},
	{service.ErrSaleAlreadyConfirmed, http.StatusConflict},
	{service.ErrCannotCancel, http.StatusConflict},
	{service.ErrPurchaseExists, http.StatusConflict},
	{inventory.ErrBulkUnitMismatch, http.StatusConflict},
}
