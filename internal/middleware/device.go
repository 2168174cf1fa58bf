package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/supermandi/api/internal/database"
)

type contextKey string

const deviceKey contextKey = "device"

// DeviceStore defines the database methods needed by the device auth
// middleware. Satisfied by *database.Queries.
type DeviceStore interface {
	GetDeviceByToken(ctx context.Context, deviceToken pgtype.Text) (database.GetDeviceByTokenRow, error)
	TouchDeviceSeen(ctx context.Context, id uuid.UUID) error
}

// DeviceAuth resolves the x-device-token header into the bound device and
// store, and rejects requests from devices that are not allowed to write:
// unknown token, no bound store, inactive device, inactive store, or a
// client-supplied storeId that differs from the bound one.
func DeviceAuth(store DeviceStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			device, ok := resolveDevice(store, w, r)
			if !ok {
				return
			}

			if !device.StoreID.Valid {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "device_not_enrolled"})
				return
			}
			if !device.Active {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "device_inactive"})
				return
			}
			if !device.StoreActive {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "store_inactive"})
				return
			}

			mismatch, err := storeIDMismatch(r, uuid.UUID(device.StoreID.Bytes))
			if err != nil {
				log.Printf("ERROR: device auth: read body: %v", err)
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}
			if mismatch {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "store_mismatch"})
				return
			}

			// Best effort; an online presence marker is not worth failing the request.
			_ = store.TouchDeviceSeen(r.Context(), device.ID)

			ctx := context.WithValue(r.Context(), deviceKey, device)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// DeviceStatus is the permissive variant used by read-only status
// endpoints: it requires a known token but carries inactive or unbound
// state downstream instead of rejecting it.
func DeviceStatus(store DeviceStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			device, ok := resolveDevice(store, w, r)
			if !ok {
				return
			}

			_ = store.TouchDeviceSeen(r.Context(), device.ID)

			ctx := context.WithValue(r.Context(), deviceKey, device)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolveDevice(store DeviceStore, w http.ResponseWriter, r *http.Request) (*database.GetDeviceByTokenRow, bool) {
	token := r.Header.Get("x-device-token")
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "device_unauthorized"})
		return nil, false
	}

	device, err := store.GetDeviceByToken(r.Context(), pgtype.Text{String: token, Valid: true})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "device_unauthorized"})
			return nil, false
		}
		log.Printf("ERROR: device auth: lookup token: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "database unavailable"})
		return nil, false
	}

	return &device, true
}

// DeviceFromContext returns the authenticated device, or nil when the
// request did not pass through the device middleware.
func DeviceFromContext(ctx context.Context) *database.GetDeviceByTokenRow {
	device, _ := ctx.Value(deviceKey).(*database.GetDeviceByTokenRow)
	return device
}

// storeIDMismatch reports whether the request names a storeId anywhere a
// client can put one (path, query, or any depth of the JSON body) that is
// not the device's bound store.
func storeIDMismatch(r *http.Request, bound uuid.UUID) (bool, error) {
	boundStr := bound.String()

	if p := chi.URLParam(r, "storeId"); p != "" && !strings.EqualFold(p, boundStr) {
		return true, nil
	}
	if q := r.URL.Query().Get("storeId"); q != "" && !strings.EqualFold(q, boundStr) {
		return true, nil
	}

	if r.Body == nil || r.ContentLength == 0 {
		return false, nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return false, err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	var parsed interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		// Not JSON; the handler will reject it on its own terms.
		return false, nil
	}
	return jsonStoreIDMismatch(parsed, boundStr), nil
}

func jsonStoreIDMismatch(v interface{}, bound string) bool {
	switch val := v.(type) {
	case map[string]interface{}:
		for key, child := range val {
			if key == "storeId" {
				if s, ok := child.(string); ok && s != "" && !strings.EqualFold(s, bound) {
					return true
				}
			}
			if jsonStoreIDMismatch(child, bound) {
				return true
			}
		}
	case []interface{}:
		for _, child := range val {
			if jsonStoreIDMismatch(child, bound) {
				return true
			}
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
