package policy

import (
	"reflect"
	"testing"
	"time"

	"sonate-hq/arbiter/pkg/receipt"
)

func testReceipt() *receipt.TrustReceipt {
	return &receipt.TrustReceipt{
		ID:        "rcpt-1",
		AgentDID:  "did:sonate:agent-1",
		Timestamp: time.Now().UTC(),
		Telemetry: receipt.Telemetry{
			ResonanceScore: 0.8,
			CoherenceScore: 0.9,
			TruthDebt:      0.1,
			Volatility:     0.2,
		},
		Chain: &receipt.Chain{
			PreviousHash: "aa",
			ChainHash:    "bb",
			ChainLength:  2,
		},
		Signature: &receipt.Signature{
			Algorithm:  "ed25519",
			Value:      "c2ln",
			KeyVersion: "v1",
		},
	}
}

func TestEvaluator_AllPass(t *testing.T) {
	e := NewEvaluator()
	rules := []Rule{passingRule("r1"), passingRule("r2")}

	result := e.Evaluate(rules, testReceipt())

	if !result.Passed {
		t.Error("result.Passed = false, want true")
	}
	if len(result.Violations) != 0 {
		t.Errorf("len(Violations) = %d, want 0", len(result.Violations))
	}
}

func TestEvaluator_SkipsDisabledRules(t *testing.T) {
	e := NewEvaluator()
	disabled := failingRule("r1", SeverityCritical)
	disabled.enabled = false

	result := e.Evaluate([]Rule{disabled}, testReceipt())

	if !result.Passed {
		t.Error("result.Passed = false, want true (disabled rule skipped)")
	}
	if len(result.Violations) != 0 {
		t.Errorf("len(Violations) = %d, want 0", len(result.Violations))
	}
}

func TestEvaluator_PassedIffNoCritical(t *testing.T) {
	e := NewEvaluator()

	tests := []struct {
		name       string
		rules      []Rule
		wantPassed bool
	}{
		{"no violations", []Rule{passingRule("r1")}, true},
		{"high only", []Rule{failingRule("r1", SeverityHigh)}, true},
		{"medium and low", []Rule{failingRule("r1", SeverityMedium), failingRule("r2", SeverityLow)}, true},
		{"one critical", []Rule{failingRule("r1", SeverityCritical)}, false},
		{"critical among others", []Rule{failingRule("r1", SeverityLow), failingRule("r2", SeverityCritical)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := e.Evaluate(tt.rules, testReceipt())
			if result.Passed != tt.wantPassed {
				t.Errorf("Passed = %v, want %v", result.Passed, tt.wantPassed)
			}
		})
	}
}

func TestEvaluator_PanickingRuleBecomesHighViolation(t *testing.T) {
	e := NewEvaluator()
	rules := []Rule{
		&testRule{id: "bad", name: "bad", severity: SeverityLow, enabled: true, panics: true},
		failingRule("after", SeverityMedium),
	}

	result := e.Evaluate(rules, testReceipt())

	if len(result.Violations) != 2 {
		t.Fatalf("len(Violations) = %d, want 2 (panic isolated, evaluation continued)", len(result.Violations))
	}

	synthetic := result.Violations[0]
	if synthetic.RuleID != "bad" {
		t.Errorf("synthetic violation RuleID = %q, want %q", synthetic.RuleID, "bad")
	}
	if synthetic.Severity != SeverityHigh {
		t.Errorf("synthetic violation Severity = %q, want high", synthetic.Severity)
	}
	if result.Violations[1].RuleID != "after" {
		t.Errorf("second violation RuleID = %q, want %q (remaining rules evaluated)", result.Violations[1].RuleID, "after")
	}
}

func TestEvaluator_NilReceiptFailsClosed(t *testing.T) {
	e := NewEvaluator()

	result := e.Evaluate([]Rule{passingRule("r1")}, nil)

	if result.Passed {
		t.Error("Passed = true for nil receipt, want false")
	}
	if len(result.Violations) != 1 || result.Violations[0].Severity != SeverityCritical {
		t.Errorf("violations = %+v, want one critical", result.Violations)
	}
}

func TestEvaluator_Deterministic(t *testing.T) {
	e := NewEvaluator()
	rules := []Rule{
		failingRule("r1", SeverityHigh),
		passingRule("r2"),
		failingRule("r3", SeverityLow),
	}
	rcpt := testReceipt()

	first := e.Evaluate(rules, rcpt)
	second := e.Evaluate(rules, rcpt)

	if len(first.Violations) != len(second.Violations) {
		t.Fatalf("violation counts differ: %d vs %d", len(first.Violations), len(second.Violations))
	}
	for i := range first.Violations {
		a, b := first.Violations[i], second.Violations[i]
		// DetectedAt is the only wall-clock-dependent field.
		a.DetectedAt, b.DetectedAt = time.Time{}, time.Time{}
		if !reflect.DeepEqual(a, b) {
			t.Errorf("violation %d differs:\n  %+v\n  %+v", i, a, b)
		}
	}
}
