// Package httpapi exposes read-only HTTP endpoints over live auction
// sessions: a state snapshot for dashboards and a downloadable bid
// history export.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jensholdgaard/sports-auction-bot/internal/session"
)

// Handler serves the session API.
type Handler struct {
	mgr    *session.Manager
	logger *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(mgr *session.Manager, logger *slog.Logger) *Handler {
	return &Handler{mgr: mgr, logger: logger}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/sessions/{id}/state", h.handleState)
	mux.HandleFunc("GET /api/sessions/{id}/history", h.handleHistory)
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap, err := h.mgr.Snapshot(id)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	data, err := h.mgr.ExportHistory(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "history export failed",
			slog.String("session_id", id),
			slog.Any("error", err),
		)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+"-history.json"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
