package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/pantrylabs/pantrypoints/internal/model"
	"github.com/pantrylabs/pantrypoints/internal/store"
	"github.com/pantrylabs/pantrypoints/internal/websocket"
)

type PointsHandler struct {
	ledger *store.LedgerStore
	hub    *websocket.Hub
}

func NewPointsHandler(ls *store.LedgerStore, hub *websocket.Hub) *PointsHandler {
	return &PointsHandler{ledger: ls, hub: hub}
}

func (h *PointsHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

func (h *PointsHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	balance, err := h.ledger.GetBalance(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get balance")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user_id": id, "balance": balance})
}

func (h *PointsHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	summary, err := h.ledger.GetSummary(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get summary")
		return
	}
	if summary.RecentTransactions == nil {
		summary.RecentTransactions = []model.PointTransaction{}
	}
	if summary.RecentContributions == nil {
		summary.RecentContributions = []model.Contribution{}
	}

	writeJSON(w, http.StatusOK, summary)
}

// ListTransactions serves the user's ledger history, newest first. An
// optional ?limit= query caps the page; everything comes back otherwise.
func (h *PointsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}

	transactions, err := h.ledger.ListTransactions(id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}
	if transactions == nil {
		transactions = []model.PointTransaction{}
	}

	writeJSON(w, http.StatusOK, transactions)
}

// Adjust appends a manual correction to the user's ledger.
func (h *PointsHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		Amount      int    `json:"points_amount"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if req.Amount == 0 {
		writeError(w, http.StatusBadRequest, "points_amount must be non-zero")
		return
	}
	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" {
		writeError(w, http.StatusBadRequest, "description is required")
		return
	}

	transaction, err := h.ledger.AddTransaction(id, req.Amount, model.TransactionAdjusted, req.Description, nil, nil)
	if errors.Is(err, store.ErrInsufficientBalance) {
		writeError(w, http.StatusBadRequest, "insufficient points")
		return
	}
	if err != nil {
		log.Printf("failed to adjust points: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to adjust points")
		return
	}

	h.broadcast(websocket.NewMessage("points", "adjusted", id, map[string]any{"balance": transaction.BalanceAfter}))

	writeJSON(w, http.StatusCreated, transaction)
}
