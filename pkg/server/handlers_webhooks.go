package server

import (
	"errors"
	"net/http"

	"sonate-hq/arbiter/pkg/audit"
	"sonate-hq/arbiter/pkg/webhook"
)

// registeredWebhook is the registration response. It carries the shared
// secret exactly once; subsequent reads of the webhook never expose it.
type registeredWebhook struct {
	*webhook.Config
	Secret string `json:"secret"`
}

func (s *Server) handleRegisterWebhook(w http.ResponseWriter, r *http.Request) {
	if s.deps.Webhooks == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "webhook manager not configured")
		return
	}

	var req webhook.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cfg, err := s.deps.Webhooks.Register(req)
	if err != nil {
		var verr *webhook.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, "invalid_webhook", verr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	s.auditEntry(audit.Entry{
		EntryType: audit.EntryWebhookRegistered,
		Reason:    "webhook registered: " + cfg.Name,
		Details:   map[string]any{"webhook_id": cfg.ID, "url": cfg.URL},
	})
	writeJSON(w, http.StatusCreated, registeredWebhook{Config: cfg, Secret: cfg.Secret})
}

func (s *Server) handleListWebhooks(w http.ResponseWriter, r *http.Request) {
	if s.deps.Webhooks == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "webhook manager not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"webhooks": s.deps.Webhooks.List(),
		"stats":    s.deps.Webhooks.Stats(),
	})
}

func (s *Server) handleGetWebhook(w http.ResponseWriter, r *http.Request) {
	if s.deps.Webhooks == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "webhook manager not configured")
		return
	}

	cfg, err := s.deps.Webhooks.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "webhook not found")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleUnregisterWebhook(w http.ResponseWriter, r *http.Request) {
	if s.deps.Webhooks == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "webhook manager not configured")
		return
	}

	if err := s.deps.Webhooks.Unregister(r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, "not_found", "webhook not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetWebhookEnabled(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Webhooks == nil {
			writeError(w, http.StatusServiceUnavailable, "unavailable", "webhook manager not configured")
			return
		}

		id := r.PathValue("id")
		if err := s.deps.Webhooks.SetEnabled(id, enabled); err != nil {
			writeError(w, http.StatusNotFound, "not_found", "webhook not found")
			return
		}

		cfg, err := s.deps.Webhooks.Get(id)
		if err != nil {
			writeError(w, http.StatusNotFound, "not_found", "webhook not found")
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	}
}
