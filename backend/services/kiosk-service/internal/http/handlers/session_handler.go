package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"solarcharge/backend/services/kiosk-service/internal/kiosk"
	"solarcharge/backend/services/kiosk-service/internal/store"
	"solarcharge/backend/services/kiosk-service/internal/view"
	"solarcharge/backend/services/kiosk-service/internal/ws"
)

// MsgOperatorReset is broadcast to every page after an operator reset.
const MsgOperatorReset = "Station reset by operator"

// SessionHandler exposes the shared record for operators.
type SessionHandler struct {
	store   store.Store
	pages   *kiosk.Pages
	manager *ws.Manager
	logger  *zap.Logger
}

// NewSessionHandler builds handler set.
func NewSessionHandler(st store.Store, pages *kiosk.Pages, manager *ws.Manager, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{store: st, pages: pages, manager: manager, logger: logger}
}

// HandleGet handles GET /api/session.
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.Get(r.Context())
	if err != nil {
		h.logger.Error("read session record failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleReset handles POST /api/session/reset.
func (h *SessionHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Reset(r.Context()); err != nil {
		h.logger.Error("reset session record failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "failed to reset session")
		return
	}
	h.logger.Info("session record reset", zap.Int("connections", h.manager.Count()))

	notice, err := json.Marshal(view.Command{
		Type:     view.CmdStatusMessage,
		Text:     MsgOperatorReset,
		Severity: view.SeverityInfo,
	})
	if err == nil {
		h.manager.Broadcast(notice)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleClients handles GET /api/clients.
func (h *SessionHandler) HandleClients(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"connections": h.manager.IDs(),
		"clients":     h.pages.States(),
	})
}
