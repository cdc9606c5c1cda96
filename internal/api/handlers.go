// Package api exposes the engine over HTTP. Engine operations always
// answer 200 with an Outcome body; transport-level status codes are
// reserved for malformed requests and rate limiting.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/internal/engine"
	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/pkg/models"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	engine *engine.Engine
	logger *zap.Logger
}

// NewHandler creates an HTTP handler around the engine.
func NewHandler(eng *engine.Engine, logger *zap.Logger) *Handler {
	return &Handler{engine: eng, logger: logger}
}

func moderatorID(r *http.Request) string {
	return mux.Vars(r)["id"]
}

// actingUser identifies who triggered the operation, for pause tokens.
// Defaults to "system" for unattended callers.
func actingUser(r *http.Request) string {
	if u := r.Header.Get("X-Acting-User"); u != "" {
		return u
	}
	return "system"
}

func writeOutcome[T any](w http.ResponseWriter, out models.Outcome[T]) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(out)
}

// CreateSession handles POST /v1/moderators/{id}/session.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	writeOutcome(w, h.engine.GetOrCreateSession(r.Context(), moderatorID(r)))
}

// GetSession handles GET /v1/moderators/{id}/session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeOutcome(w, h.engine.GetCurrentSession(moderatorID(r)))
}

// DeleteSession handles DELETE /v1/moderators/{id}/session.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	writeOutcome(w, h.engine.DisposeSession(moderatorID(r)))
}

// GetState handles GET /v1/moderators/{id}/state.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	writeOutcome(w, h.engine.ProbeState(moderatorID(r)))
}

// Authenticate handles POST /v1/moderators/{id}/authenticate.
func (h *Handler) Authenticate(w http.ResponseWriter, r *http.Request) {
	writeOutcome(w, h.engine.Authenticate(r.Context(), moderatorID(r), actingUser(r)))
}

// CheckNumber handles POST /v1/moderators/{id}/check-number.
func (h *Handler) CheckNumber(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Phone == "" {
		http.Error(w, "request body must carry a phone number", http.StatusBadRequest)
		return
	}
	writeOutcome(w, h.engine.CheckRecipient(r.Context(), moderatorID(r), actingUser(r), req.Phone))
}

// GetLoginCode handles GET /v1/moderators/{id}/qr. On success the body
// is the raw PNG so dashboards can drop it into an <img> tag; failures
// fall back to the JSON outcome.
func (h *Handler) GetLoginCode(w http.ResponseWriter, r *http.Request) {
	out := h.engine.LoginCodeScreenshot(r.Context(), moderatorID(r))
	if !out.OK() {
		writeOutcome(w, out)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Write(out.Value)
}

// Pause handles POST /v1/moderators/{id}/pause.
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reason == "" {
		http.Error(w, "request body must carry a reason", http.StatusBadRequest)
		return
	}
	writeOutcome(w, h.engine.PauseAll(moderatorID(r), actingUser(r), req.Reason))
}

// Resume handles POST /v1/moderators/{id}/resume.
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reason == "" {
		http.Error(w, "request body must carry a reason", http.StatusBadRequest)
		return
	}
	writeOutcome(w, h.engine.ResumeIfReason(moderatorID(r), req.Reason))
}

// Wait handles POST /v1/moderators/{id}/wait.
func (h *Handler) Wait(w http.ResponseWriter, r *http.Request) {
	writeOutcome(w, h.engine.WaitForCurrentOperationToFinish(r.Context(), moderatorID(r)))
}

// GetStatus handles GET /v1/moderators/{id}/status.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeOutcome(w, h.engine.Status(r.Context(), moderatorID(r)))
}

// Restore handles POST /v1/moderators/{id}/restore.
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	writeOutcome(w, h.engine.RestoreFromBackup(moderatorID(r)))
}

// Optimize handles POST /v1/moderators/{id}/optimize. With
// ?baseline=true the live session becomes the new backup baseline;
// otherwise only the trim runs.
func (h *Handler) Optimize(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("baseline") == "true" {
		writeOutcome(w, h.engine.OptimizeAuthenticatedSession(moderatorID(r)))
		return
	}
	writeOutcome(w, h.engine.OptimizeCurrentSessionOnly(moderatorID(r)))
}
