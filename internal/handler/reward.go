package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/pantrylabs/pantrypoints/internal/model"
	"github.com/pantrylabs/pantrypoints/internal/store"
	"github.com/pantrylabs/pantrypoints/internal/websocket"
)

type RewardHandler struct {
	rewardStore *store.RewardStore
	ledger      *store.LedgerStore
	hub         *websocket.Hub
}

func NewRewardHandler(rs *store.RewardStore, ls *store.LedgerStore, hub *websocket.Hub) *RewardHandler {
	return &RewardHandler{rewardStore: rs, ledger: ls, hub: hub}
}

func (h *RewardHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type rewardRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PointsCost  int    `json:"points_cost"`
	RewardType  string `json:"reward_type"`
	Quantity    *int   `json:"quantity"`
	Active      bool   `json:"active"`
}

func (req *rewardRequest) validate() string {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return "name is required"
	}
	if req.PointsCost < 0 {
		return "points_cost must be >= 0"
	}
	if req.Quantity != nil && *req.Quantity < 0 {
		return "quantity must be >= 0"
	}
	return ""
}

func (h *RewardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	item, err := h.rewardStore.Create(req.Name, req.Description, req.PointsCost, req.RewardType, req.Quantity, req.Active)
	if err != nil {
		log.Printf("failed to create reward item: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create reward item")
		return
	}

	h.broadcast(websocket.NewMessage("reward", "created", item.ID, nil))

	writeJSON(w, http.StatusCreated, item)
}

// List serves the reward catalog. Pass ?active=true to hide retired items.
func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	var items []model.RewardItem
	var err error
	if r.URL.Query().Get("active") == "true" {
		items, err = h.rewardStore.ListActive()
	} else {
		items, err = h.rewardStore.List()
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list reward items")
		return
	}
	if items == nil {
		items = []model.RewardItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *RewardHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	item, err := h.rewardStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get reward item")
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "reward item not found")
		return
	}

	writeJSON(w, http.StatusOK, item)
}

func (h *RewardHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.rewardStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get reward item")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "reward item not found")
		return
	}

	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	item, err := h.rewardStore.Update(id, req.Name, req.Description, req.PointsCost, req.RewardType, req.Quantity, req.Active)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update reward item")
		return
	}

	h.broadcast(websocket.NewMessage("reward", "updated", id, nil))

	writeJSON(w, http.StatusOK, item)
}

func (h *RewardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.rewardStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get reward item")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "reward item not found")
		return
	}

	if err := h.rewardStore.Delete(id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete reward item")
		return
	}

	h.broadcast(websocket.NewMessage("reward", "deleted", id, nil))

	w.WriteHeader(http.StatusNoContent)
}

// Redeem exchanges a user's points for the reward. The balance check, the
// ledger entry, and the stock decrement happen atomically in the ledger
// store, so two racing redemptions can never both succeed on the last item.
func (h *RewardHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		UserID int64 `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.UserID == 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	redemption, err := h.ledger.RedeemReward(req.UserID, id)
	if errors.Is(err, store.ErrInsufficientBalance) {
		writeError(w, http.StatusBadRequest, "insufficient points")
		return
	}
	if errors.Is(err, store.ErrRewardUnavailable) {
		writeError(w, http.StatusConflict, "reward is not available")
		return
	}
	if err != nil {
		log.Printf("failed to redeem reward: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to redeem reward")
		return
	}
	if redemption == nil {
		writeError(w, http.StatusNotFound, "reward item not found")
		return
	}

	h.broadcast(websocket.NewMessage("reward", "redeemed", id, map[string]any{"user_id": req.UserID}))

	writeJSON(w, http.StatusCreated, redemption)
}

func (h *RewardHandler) ListRedemptionsByUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	redemptions, err := h.rewardStore.ListRedemptionsByUser(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list redemptions")
		return
	}
	if redemptions == nil {
		redemptions = []model.RewardRedemption{}
	}

	writeJSON(w, http.StatusOK, redemptions)
}
