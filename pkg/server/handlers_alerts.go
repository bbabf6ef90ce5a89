package server

import (
	"net/http"
	"strconv"

	"sonate-hq/arbiter/pkg/audit"
)

type ackAlertRequest struct {
	AcknowledgedBy string `json:"acknowledged_by"`
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	if s.deps.Alerter == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "alerter not configured")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = n
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": s.deps.Alerter.Recent(limit),
		"stats":  s.deps.Alerter.Stats(),
	})
}

func (s *Server) handleAckAlert(w http.ResponseWriter, r *http.Request) {
	if s.deps.Alerter == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "alerter not configured")
		return
	}

	var req ackAlertRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.AcknowledgedBy == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "acknowledged_by is required")
		return
	}

	id := r.PathValue("id")
	if !s.deps.Alerter.Acknowledge(id, req.AcknowledgedBy) {
		writeError(w, http.StatusNotFound, "not_found", "alert not found")
		return
	}

	alert, _ := s.deps.Alerter.Get(id)
	if alert != nil {
		s.auditEntry(audit.Entry{
			EntryType: audit.EntryAlertAcknowledged,
			ReceiptID: alert.ReceiptID,
			AgentDID:  alert.AgentID,
			Reason:    "alert acknowledged",
			Details:   map[string]any{"alert_id": alert.ID, "acknowledged_by": req.AcknowledgedBy},
		})
	}
	writeJSON(w, http.StatusOK, alert)
}
