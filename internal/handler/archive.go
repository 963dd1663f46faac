package handler

import (
	"log"
	"net/http"

	"github.com/pantrylabs/pantrypoints/internal/archive"
	"github.com/pantrylabs/pantrypoints/internal/model"
	"github.com/pantrylabs/pantrypoints/internal/store"
)

type ArchiveHandler struct {
	manager *archive.Manager
	store   *store.ArchiveStore
}

func NewArchiveHandler(m *archive.Manager, s *store.ArchiveStore) *ArchiveHandler {
	return &ArchiveHandler{manager: m, store: s}
}

func (h *ArchiveHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Status())
}

func (h *ArchiveHandler) History(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.ListRecent(20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list archive runs")
		return
	}
	if runs == nil {
		runs = []model.ArchiveRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *ArchiveHandler) RunNow(w http.ResponseWriter, r *http.Request) {
	if !h.manager.Enabled() {
		writeError(w, http.StatusConflict, "archive is not configured")
		return
	}

	runID, err := h.manager.RunNow(r.Context())
	if err != nil {
		log.Printf("failed to run archive: %v", err)
		writeError(w, http.StatusInternalServerError, "archive run failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"run_id": runID})
}
