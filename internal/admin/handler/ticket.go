package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/supermandi/api/internal/auth"
	"github.com/supermandi/api/internal/database"
)

// TicketStore defines the database methods needed by the ticket
// handler. Satisfied by *database.Queries.
type TicketStore interface {
	GetStore(ctx context.Context, id uuid.UUID) (database.Store, error)
}

// TicketHandler mints short-lived WebSocket tickets. The admin token
// never goes on a WS URL; the ticket does.
type TicketHandler struct {
	store  TicketStore
	secret string
}

// NewTicketHandler creates a new TicketHandler.
func NewTicketHandler(store TicketStore, secret string) *TicketHandler {
	return &TicketHandler{store: store, secret: secret}
}

// RegisterRoutes registers ticket endpoints on the given Chi router.
func (h *TicketHandler) RegisterRoutes(r chi.Router) {
	r.Post("/ws-ticket", h.Mint)
}

// --- Request / Response types ---

type mintTicketRequest struct {
	StoreID uuid.UUID `json:"storeId"`
}

type mintTicketResponse struct {
	Ticket    string    `json:"ticket"`
	StoreID   uuid.UUID `json:"storeId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// --- Handlers ---

// Mint handles POST /ws-ticket.
func (h *TicketHandler) Mint(w http.ResponseWriter, r *http.Request) {
	var req mintTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.StoreID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "storeId_invalid"})
		return
	}

	if _, err := h.store.GetStore(r.Context(), req.StoreID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "store not found"})
			return
		}
		log.Printf("ERROR: get store for ticket: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	ticket, err := auth.GenerateTicket(h.secret, req.StoreID)
	if err != nil {
		log.Printf("ERROR: generate ws ticket: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, mintTicketResponse{
		Ticket:    ticket,
		StoreID:   req.StoreID,
		ExpiresAt: time.Now().Add(auth.TicketTTL),
	})
}
