package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/pantrylabs/pantrypoints/internal/model"
	"github.com/pantrylabs/pantrypoints/internal/store"
	"github.com/pantrylabs/pantrypoints/internal/websocket"
)

type ContributionHandler struct {
	ledger    *store.LedgerStore
	typeStore *store.ContributionTypeStore
	hub       *websocket.Hub
}

func NewContributionHandler(ls *store.LedgerStore, ts *store.ContributionTypeStore, hub *websocket.Hub) *ContributionHandler {
	return &ContributionHandler{ledger: ls, typeStore: ts, hub: hub}
}

func (h *ContributionHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

func (h *ContributionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID     int64   `json:"user_id"`
		TypeID     int64   `json:"contribution_type_id"`
		EntityType *string `json:"entity_type"`
		EntityID   *string `json:"entity_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if req.UserID == 0 || req.TypeID == 0 {
		writeError(w, http.StatusBadRequest, "user_id and contribution_type_id are required")
		return
	}

	contribution, err := h.ledger.CreateContribution(req.UserID, req.TypeID, req.EntityType, req.EntityID)
	if err != nil {
		log.Printf("failed to create contribution: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create contribution")
		return
	}
	if contribution == nil {
		writeError(w, http.StatusBadRequest, "unknown or inactive contribution type")
		return
	}

	h.broadcast(websocket.NewMessage("contribution", "created", contribution.ID, map[string]any{"status": contribution.Status}))

	writeJSON(w, http.StatusCreated, contribution)
}

func (h *ContributionHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	contributions, err := h.ledger.ListContributionsByUser(id, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list contributions")
		return
	}
	if contributions == nil {
		contributions = []model.Contribution{}
	}

	writeJSON(w, http.StatusOK, contributions)
}

func (h *ContributionHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	contributions, err := h.ledger.ListPendingContributions()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list pending contributions")
		return
	}
	if contributions == nil {
		contributions = []model.Contribution{}
	}

	writeJSON(w, http.StatusOK, contributions)
}

// Review approves or rejects a pending contribution. Reviewing one that was
// already processed is reported as a conflict rather than applied twice.
func (h *ContributionHandler) Review(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		Approve         bool   `json:"approve"`
		ApprovedBy      *int64 `json:"approved_by"`
		RejectionReason string `json:"rejection_reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	applied, err := h.ledger.ReviewContribution(id, req.ApprovedBy, req.Approve, req.RejectionReason)
	if err != nil {
		log.Printf("failed to review contribution: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to review contribution")
		return
	}
	if !applied {
		contribution, err := h.ledger.GetContributionByID(id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to get contribution")
			return
		}
		if contribution == nil {
			writeError(w, http.StatusNotFound, "contribution not found")
			return
		}
		writeError(w, http.StatusConflict, "contribution already reviewed")
		return
	}

	action := "rejected"
	if req.Approve {
		action = "approved"
	}
	h.broadcast(websocket.NewMessage("contribution", action, id, nil))

	contribution, err := h.ledger.GetContributionByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get contribution")
		return
	}
	writeJSON(w, http.StatusOK, contribution)
}

// --- Contribution type admin ---

type ContributionTypeHandler struct {
	store *store.ContributionTypeStore
}

func NewContributionTypeHandler(s *store.ContributionTypeStore) *ContributionTypeHandler {
	return &ContributionTypeHandler{store: s}
}

type contributionTypeRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Points      int    `json:"points"`
	AutoApprove bool   `json:"auto_approve"`
	Active      bool   `json:"active"`
}

func (req *contributionTypeRequest) validate() string {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return "name is required"
	}
	if req.Points < 0 {
		return "points must be >= 0"
	}
	return ""
}

func (h *ContributionTypeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req contributionTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	ct, err := h.store.Create(req.Name, req.Description, req.Points, req.AutoApprove, req.Active)
	if err != nil {
		log.Printf("failed to create contribution type: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create contribution type")
		return
	}

	writeJSON(w, http.StatusCreated, ct)
}

func (h *ContributionTypeHandler) List(w http.ResponseWriter, r *http.Request) {
	types, err := h.store.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list contribution types")
		return
	}
	if types == nil {
		types = []model.ContributionType{}
	}
	writeJSON(w, http.StatusOK, types)
}

func (h *ContributionTypeHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.store.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get contribution type")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "contribution type not found")
		return
	}

	var req contributionTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	ct, err := h.store.Update(id, req.Name, req.Description, req.Points, req.AutoApprove, req.Active)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update contribution type")
		return
	}

	writeJSON(w, http.StatusOK, ct)
}

func (h *ContributionTypeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.store.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get contribution type")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "contribution type not found")
		return
	}

	if err := h.store.Delete(id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete contribution type")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
