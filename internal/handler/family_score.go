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

type FamilyScoreHandler struct {
	store *store.FamilyScoreStore
	hub   *websocket.Hub
}

func NewFamilyScoreHandler(s *store.FamilyScoreStore, hub *websocket.Hub) *FamilyScoreHandler {
	return &FamilyScoreHandler{store: s, hub: hub}
}

func (h *FamilyScoreHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

func (h *FamilyScoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID       int64                    `json:"user_id"`
		EntityType   string                   `json:"entity_type"`
		EntityID     string                   `json:"entity_id"`
		Notes        string                   `json:"notes"`
		Favorite     bool                     `json:"favorite"`
		Blacklisted  bool                     `json:"blacklisted"`
		MemberScores []store.MemberScoreInput `json:"member_scores"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.EntityType = strings.TrimSpace(req.EntityType)
	req.EntityID = strings.TrimSpace(req.EntityID)
	if req.UserID == 0 || req.EntityType == "" || req.EntityID == "" {
		writeError(w, http.StatusBadRequest, "user_id, entity_type and entity_id are required")
		return
	}

	score, err := h.store.Create(req.UserID, req.EntityType, req.EntityID, req.Notes, req.Favorite, req.Blacklisted, req.MemberScores)
	if errors.Is(err, store.ErrScoreOutOfRange) {
		writeError(w, http.StatusBadRequest, "scores must be between 1 and 5")
		return
	}
	if errors.Is(err, store.ErrScoreExists) {
		writeError(w, http.StatusConflict, "a score for this entity already exists")
		return
	}
	if err != nil {
		log.Printf("failed to create family score: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create family score")
		return
	}

	h.broadcast(websocket.NewMessage("family_score", "created", score.ID, nil))

	writeJSON(w, http.StatusCreated, score)
}

func (h *FamilyScoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	score, err := h.store.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get family score")
		return
	}
	if score == nil {
		writeError(w, http.StatusNotFound, "family score not found")
		return
	}

	writeJSON(w, http.StatusOK, score)
}

// GetByEntity looks a score up by ?user_id=&entity_type=&entity_id=.
func (h *FamilyScoreHandler) GetByEntity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, err := parseQueryID(q.Get("user_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user_id")
		return
	}
	entityType := q.Get("entity_type")
	entityID := q.Get("entity_id")
	if entityType == "" || entityID == "" {
		writeError(w, http.StatusBadRequest, "entity_type and entity_id are required")
		return
	}

	score, err := h.store.GetByEntity(userID, entityType, entityID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get family score")
		return
	}
	if score == nil {
		writeError(w, http.StatusNotFound, "family score not found")
		return
	}

	writeJSON(w, http.StatusOK, score)
}

func (h *FamilyScoreHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.store.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get family score")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "family score not found")
		return
	}

	var req struct {
		Notes       string `json:"notes"`
		Favorite    bool   `json:"favorite"`
		Blacklisted bool   `json:"blacklisted"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	score, err := h.store.Update(id, req.Notes, req.Favorite, req.Blacklisted)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update family score")
		return
	}

	h.broadcast(websocket.NewMessage("family_score", "updated", id, nil))

	writeJSON(w, http.StatusOK, score)
}

func (h *FamilyScoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	applied, err := h.store.Delete(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete family score")
		return
	}
	if !applied {
		writeError(w, http.StatusNotFound, "family score not found")
		return
	}

	h.broadcast(websocket.NewMessage("family_score", "deleted", id, nil))

	w.WriteHeader(http.StatusNoContent)
}

// --- Member scores ---

func (h *FamilyScoreHandler) AddMemberScore(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		FamilyMemberID int64  `json:"family_member_id"`
		Score          int    `json:"individual_score"`
		Notes          string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.FamilyMemberID == 0 {
		writeError(w, http.StatusBadRequest, "family_member_id is required")
		return
	}

	memberScore, err := h.store.AddMemberScore(id, req.FamilyMemberID, req.Score, req.Notes)
	if errors.Is(err, store.ErrScoreOutOfRange) {
		writeError(w, http.StatusBadRequest, "scores must be between 1 and 5")
		return
	}
	if err != nil {
		log.Printf("failed to add member score: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to add member score")
		return
	}
	if memberScore == nil {
		writeError(w, http.StatusNotFound, "family score not found")
		return
	}

	h.broadcast(websocket.NewMessage("family_score", "rated", id, nil))

	writeJSON(w, http.StatusCreated, memberScore)
}

func (h *FamilyScoreHandler) UpdateMemberScore(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		Score int    `json:"individual_score"`
		Notes string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	memberScore, err := h.store.UpdateMemberScore(id, req.Score, req.Notes)
	if errors.Is(err, store.ErrScoreOutOfRange) {
		writeError(w, http.StatusBadRequest, "scores must be between 1 and 5")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update member score")
		return
	}
	if memberScore == nil {
		writeError(w, http.StatusNotFound, "member score not found")
		return
	}

	h.broadcast(websocket.NewMessage("family_score", "rated", memberScore.FamilyScoreID, nil))

	writeJSON(w, http.StatusOK, memberScore)
}

func (h *FamilyScoreHandler) DeleteMemberScore(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	applied, err := h.store.DeleteMemberScore(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete member score")
		return
	}
	if !applied {
		writeError(w, http.StatusNotFound, "member score not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Projections ---

func (h *FamilyScoreHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	h.listFlagged(w, r, h.store.ListFavorites)
}

func (h *FamilyScoreHandler) ListBlacklisted(w http.ResponseWriter, r *http.Request) {
	h.listFlagged(w, r, h.store.ListBlacklisted)
}

func (h *FamilyScoreHandler) listFlagged(w http.ResponseWriter, r *http.Request, list func(int64, string) ([]model.FamilyScore, error)) {
	q := r.URL.Query()
	userID, err := parseQueryID(q.Get("user_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	scores, err := list(userID, q.Get("entity_type"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list scores")
		return
	}
	if scores == nil {
		scores = []model.FamilyScore{}
	}

	writeJSON(w, http.StatusOK, scores)
}
