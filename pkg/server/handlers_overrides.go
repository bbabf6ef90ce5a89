package server

import (
	"net/http"

	"sonate-hq/arbiter/pkg/audit"
	"sonate-hq/arbiter/pkg/override"
)

type revokeOverrideRequest struct {
	RevokedBy string `json:"revoked_by"`
	Reason    string `json:"reason,omitempty"`
}

func (s *Server) handleCreateOverride(w http.ResponseWriter, r *http.Request) {
	if s.deps.Overrides == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "override manager not configured")
		return
	}

	var req override.CreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	o, err := s.deps.Overrides.Create(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_override", err.Error())
		return
	}

	s.auditEntry(audit.Entry{
		EntryType: audit.EntryOverrideCreated,
		ReceiptID: o.ReceiptID,
		AgentDID:  o.AgentID,
		Reason:    o.Reason,
		Details:   map[string]any{"override_id": o.ID, "authorized_by": o.AuthorizedBy},
	})
	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) handleGetOverride(w http.ResponseWriter, r *http.Request) {
	if s.deps.Overrides == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "override manager not configured")
		return
	}

	o, ok := s.deps.Overrides.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "override not found")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleRevokeOverride(w http.ResponseWriter, r *http.Request) {
	if s.deps.Overrides == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "override manager not configured")
		return
	}

	var req revokeOverrideRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RevokedBy == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "revoked_by is required")
		return
	}

	id := r.PathValue("id")
	if !s.deps.Overrides.Revoke(id, req.RevokedBy, req.Reason) {
		writeError(w, http.StatusNotFound, "not_found", "override not found or already revoked")
		return
	}

	o, _ := s.deps.Overrides.Get(id)
	if o != nil {
		s.auditEntry(audit.Entry{
			EntryType: audit.EntryOverrideRevoked,
			ReceiptID: o.ReceiptID,
			AgentDID:  o.AgentID,
			Reason:    req.Reason,
			Details:   map[string]any{"override_id": o.ID, "revoked_by": req.RevokedBy},
		})
	}
	writeJSON(w, http.StatusOK, o)
}

// handleListOverrides lists overrides for one receipt or one agent. An
// unfiltered listing is not offered; stats cover the aggregate view.
func (s *Server) handleListOverrides(w http.ResponseWriter, r *http.Request) {
	if s.deps.Overrides == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "override manager not configured")
		return
	}

	receiptID := r.URL.Query().Get("receipt_id")
	agentID := r.URL.Query().Get("agent_id")

	switch {
	case receiptID != "":
		writeJSON(w, http.StatusOK, map[string]any{"overrides": s.deps.Overrides.ForReceipt(receiptID)})
	case agentID != "":
		writeJSON(w, http.StatusOK, map[string]any{"overrides": s.deps.Overrides.ForAgent(agentID)})
	default:
		writeJSON(w, http.StatusOK, map[string]any{"stats": s.deps.Overrides.Stats()})
	}
}
