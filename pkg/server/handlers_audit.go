package server

import (
	"net/http"
	"strconv"
	"time"

	"sonate-hq/arbiter/pkg/audit"
	"sonate-hq/arbiter/pkg/audit/export"
)

func (s *Server) handleAuditEntries(w http.ResponseWriter, r *http.Request) {
	if s.deps.Audit == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "audit logger not configured")
		return
	}

	q, ok := parseAuditQuery(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": s.deps.Audit.Query(q),
		"stats":   s.deps.Audit.Stats(),
	})
}

func (s *Server) handleAuditExport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Audit == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "audit logger not configured")
		return
	}

	q, ok := parseAuditQuery(w, r)
	if !ok {
		return
	}
	entries := s.deps.Audit.Query(q)

	switch format := r.URL.Query().Get("format"); format {
	case "csv", "":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="audit.csv"`)
		if err := export.ExportCSV(w, entries); err != nil {
			s.logger.Error("audit CSV export failed", "error", err)
		}
	case "json":
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="audit.json"`)
		if err := export.ExportJSON(w, entries); err != nil {
			s.logger.Error("audit JSON export failed", "error", err)
		}
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", "format must be csv or json")
	}
}

// handleAuditReport generates a compliance report over a time window.
// The window defaults to the last 24 hours.
func (s *Server) handleAuditReport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Audit == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "audit logger not configured")
		return
	}

	end := time.Now().UTC()
	start := end.Add(-24 * time.Hour)

	if raw := r.URL.Query().Get("start"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "start must be RFC 3339")
			return
		}
		start = t
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "end must be RFC 3339")
			return
		}
		end = t
	}
	if !start.Before(end) {
		writeError(w, http.StatusBadRequest, "invalid_request", "start must precede end")
		return
	}

	writeJSON(w, http.StatusOK, s.deps.Audit.GenerateReport(start, end))
}

func parseAuditQuery(w http.ResponseWriter, r *http.Request) (audit.Query, bool) {
	var q audit.Query
	params := r.URL.Query()

	if raw := params.Get("start"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "start must be RFC 3339")
			return q, false
		}
		q.Start = &t
	}
	if raw := params.Get("end"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "end must be RFC 3339")
			return q, false
		}
		q.End = &t
	}
	if raw := params.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return q, false
		}
		q.Limit = n
	}

	q.AgentDID = params.Get("agent_did")
	q.EntryType = audit.EntryType(params.Get("entry_type"))
	q.Decision = params.Get("decision")
	return q, true
}
