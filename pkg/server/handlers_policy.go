package server

import (
	"net/http"
	"time"

	"sonate-hq/arbiter/pkg/policy"
	"sonate-hq/arbiter/pkg/receipt"
)

// evaluateRequest carries one receipt and the principles to judge it
// against. Empty principle ids means every registered principle.
type evaluateRequest struct {
	Receipt      *receipt.TrustReceipt `json:"receipt"`
	PrincipleIDs []string              `json:"principle_ids,omitempty"`
}

type batchEvaluateRequest struct {
	Receipts     []*receipt.TrustReceipt `json:"receipts"`
	PrincipleIDs []string                `json:"principle_ids,omitempty"`
}

// decisionResponse is the wire shape of a governance decision.
type decisionResponse struct {
	ReceiptID      string                   `json:"receipt_id"`
	AgentDID       string                   `json:"agent_did"`
	Decision       policy.Decision          `json:"decision"`
	Reason         string                   `json:"reason"`
	OverrideID     string                   `json:"override_id,omitempty"`
	Result         *policy.EvaluationResult `json:"result"`
	Classification *policy.Classification   `json:"classification"`
	DecidedAt      time.Time                `json:"decided_at"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Receipt == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "receipt is required")
		return
	}

	result := s.deps.Engine.Evaluate(r.Context(), req.Receipt, req.PrincipleIDs)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleEvaluateBatch(w http.ResponseWriter, r *http.Request) {
	var req batchEvaluateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Receipts) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "receipts must be non-empty")
		return
	}

	result := s.deps.Engine.EvaluateBatch(r.Context(), req.Receipts, req.PrincipleIDs)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Receipt == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "receipt is required")
		return
	}

	outcome := s.deps.Engine.Decide(r.Context(), req.Receipt, req.PrincipleIDs)
	writeJSON(w, http.StatusOK, decisionResponse{
		ReceiptID:      req.Receipt.ID,
		AgentDID:       req.Receipt.AgentDID,
		Decision:       outcome.Decision,
		Reason:         outcome.Reason,
		OverrideID:     outcome.OverrideID,
		Result:         outcome.Result,
		Classification: outcome.Classification,
		DecidedAt:      outcome.DecidedAt,
	})
}

func (s *Server) handleListPrinciples(w http.ResponseWriter, r *http.Request) {
	registry := s.deps.Engine.Registry()
	writeJSON(w, http.StatusOK, map[string]any{
		"principles": registry.PrincipleIDs(),
		"rules":      registry.RuleIDs(),
	})
}
