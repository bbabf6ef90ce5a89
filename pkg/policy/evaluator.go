package policy

import (
	"fmt"
	"log/slog"
	"time"

	"sonate-hq/arbiter/pkg/receipt"
)

// Evaluator runs a resolved rule set against one receipt.
//
// Evaluation is idempotent: identical receipt and rule set yield an identical
// violation set; the only non-deterministic fields are timestamps and timing
// metadata.
type Evaluator struct {
	logger *slog.Logger
}

// NewEvaluator creates a new evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		logger: slog.Default().With("component", "policy.evaluator"),
	}
}

// Evaluate runs each enabled rule against the receipt and collects
// violations. Disabled rules are skipped. A panicking rule is recovered at
// the call site and recorded as a synthetic high-severity violation naming
// the rule; evaluation of the remaining rules continues.
func (e *Evaluator) Evaluate(rules []Rule, rcpt *receipt.TrustReceipt) *EvaluationResult {
	start := time.Now()
	result := &EvaluationResult{
		Passed:     true,
		Violations: []Violation{},
	}

	if rcpt == nil {
		// A missing receipt is an abnormal condition, not a fault: encode
		// it as a critical violation so the caller fails closed.
		result.Violations = append(result.Violations, Violation{
			RuleID:     "receipt-presence",
			RuleName:   "Receipt Presence",
			Severity:   SeverityCritical,
			Message:    "no receipt provided for evaluation",
			DetectedAt: time.Now().UTC(),
		})
		result.Passed = false
		result.Metadata = e.metadata(start, len(rules))
		return result
	}

	for _, rule := range rules {
		if !rule.Enabled() {
			continue
		}
		if v, violated := e.evaluateRule(rule, rcpt); violated {
			result.Violations = append(result.Violations, v)
		}
	}

	// Canonical pass rule: passed iff no critical violation.
	for _, v := range result.Violations {
		if v.Severity == SeverityCritical {
			result.Passed = false
			break
		}
	}

	result.Metadata = e.metadata(start, len(rules))
	return result
}

// evaluateRule invokes one rule predicate, isolating panics.
func (e *Evaluator) evaluateRule(rule Rule, rcpt *receipt.TrustReceipt) (v Violation, violated bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("rule panicked during evaluation",
				"rule_id", rule.ID(),
				"panic", fmt.Sprint(r),
			)
			v = Violation{
				RuleID:   rule.ID(),
				RuleName: rule.Name(),
				Severity: SeverityHigh,
				Message:  fmt.Sprintf("rule %q failed to evaluate: %v", rule.ID(), r),
				Context:  map[string]any{"rule_panic": true},

				DetectedAt: time.Now().UTC(),
			}
			violated = true
		}
	}()

	outcome := rule.Evaluate(rcpt)
	if outcome.Passed {
		return Violation{}, false
	}

	return Violation{
		RuleID:     rule.ID(),
		RuleName:   rule.Name(),
		Severity:   rule.Severity(),
		Message:    outcome.Message,
		Context:    outcome.Context,
		DetectedAt: time.Now().UTC(),
	}, true
}

func (e *Evaluator) metadata(start time.Time, rules int) EvaluationMetadata {
	return EvaluationMetadata{
		EvaluatedAt:      start.UTC(),
		EvaluationTimeMS: float64(time.Since(start).Microseconds()) / 1000.0,
		RulesEvaluated:   rules,
	}
}
