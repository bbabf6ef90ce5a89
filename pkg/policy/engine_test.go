package policy

import (
	"context"
	"sync"
	"testing"
	"time"

	"sonate-hq/arbiter/pkg/receipt"
)

// stubOverrides is a canned OverrideSource for engine tests.
type stubOverrides struct {
	id    string
	valid bool
	used  []string
}

func (s *stubOverrides) FindValid(receiptID, agentID string, principleIDs []string) (string, bool) {
	if s.valid {
		return s.id, true
	}
	return "", false
}

func (s *stubOverrides) Use(id string) bool {
	if !s.valid {
		return false
	}
	s.used = append(s.used, id)
	return true
}

// captureObserver records every decision outcome it sees.
type captureObserver struct {
	mu       sync.Mutex
	outcomes []*DecisionOutcome
}

func (o *captureObserver) ObserveDecision(_ context.Context, outcome *DecisionOutcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func engineWithRules(t *testing.T, overrides OverrideSource, rules ...Rule) *Engine {
	t.Helper()
	reg := NewRegistry()
	ids := make([]string, 0, len(rules))
	for _, r := range rules {
		if err := reg.RegisterRule(r); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, r.ID())
	}
	if len(ids) > 0 {
		if err := reg.RegisterPrinciple(&Principle{ID: "test", Name: "Test", RuleIDs: ids}); err != nil {
			t.Fatal(err)
		}
	}
	return NewEngine(reg, overrides, DefaultEngineConfig())
}

func TestEngine_Evaluate_Passes(t *testing.T) {
	e := engineWithRules(t, nil, passingRule("r1"))

	result := e.Evaluate(context.Background(), testReceipt(), []string{"test"})

	if !result.Passed {
		t.Error("Passed = false, want true")
	}
	if got := result.Metadata.PrinciplesApplied; len(got) != 1 || got[0] != "test" {
		t.Errorf("PrinciplesApplied = %v, want [test]", got)
	}
}

func TestEngine_Evaluate_EmptyPrincipleSetMeansAll(t *testing.T) {
	e := engineWithRules(t, nil, failingRule("r1", SeverityHigh))

	result := e.Evaluate(context.Background(), testReceipt(), nil)

	if result.Passed {
		t.Error("Passed = true with no principle ids, want failure from registered rules")
	}
	if len(result.Violations) != 1 {
		t.Errorf("Violations = %d, want 1", len(result.Violations))
	}
	if got := result.Metadata.PrinciplesApplied; len(got) != 1 || got[0] != "test" {
		t.Errorf("PrinciplesApplied = %v, want [test]", got)
	}
}

func TestEngine_Decide_EmptyPrincipleSetMeansAll(t *testing.T) {
	e := engineWithRules(t, nil, failingRule("r1", SeverityHigh))

	outcome := e.Decide(context.Background(), testReceipt(), nil)

	if outcome.Decision != DecisionBlock {
		t.Errorf("Decision = %q with no principle ids, want block", outcome.Decision)
	}
	if got := outcome.PrincipleIDs; len(got) != 1 || got[0] != "test" {
		t.Errorf("PrincipleIDs = %v, want [test]", got)
	}
}

func TestEngine_Decide_Allow(t *testing.T) {
	e := engineWithRules(t, nil, passingRule("r1"))

	outcome := e.Decide(context.Background(), testReceipt(), []string{"test"})

	if outcome.Decision != DecisionAllow {
		t.Errorf("Decision = %q, want allow", outcome.Decision)
	}
}

func TestEngine_Decide_Annotate(t *testing.T) {
	e := engineWithRules(t, nil, failingRule("r1", SeverityMedium))

	outcome := e.Decide(context.Background(), testReceipt(), []string{"test"})

	if outcome.Decision != DecisionAnnotate {
		t.Errorf("Decision = %q, want annotate", outcome.Decision)
	}
}

func TestEngine_Decide_Block(t *testing.T) {
	e := engineWithRules(t, nil, failingRule("r1", SeverityHigh))

	outcome := e.Decide(context.Background(), testReceipt(), []string{"test"})

	if outcome.Decision != DecisionBlock {
		t.Errorf("Decision = %q, want block", outcome.Decision)
	}
}

func TestEngine_Decide_Escalate(t *testing.T) {
	e := engineWithRules(t, nil,
		failingRule("r1", SeverityCritical),
		failingRule("r2", SeverityCritical),
		failingRule("r3", SeverityCritical),
	)

	outcome := e.Decide(context.Background(), testReceipt(), []string{"test"})

	if outcome.Decision != DecisionEscalate {
		t.Errorf("Decision = %q, want escalate", outcome.Decision)
	}
}

func TestEngine_Decide_OverrideDowngradesBlock(t *testing.T) {
	ovr := &stubOverrides{id: "ovr-1", valid: true}
	e := engineWithRules(t, ovr, failingRule("r1", SeverityCritical))

	outcome := e.Decide(context.Background(), testReceipt(), []string{"test"})

	if outcome.Decision != DecisionOverride {
		t.Errorf("Decision = %q, want override", outcome.Decision)
	}
	if outcome.OverrideID != "ovr-1" {
		t.Errorf("OverrideID = %q, want ovr-1", outcome.OverrideID)
	}
	if len(ovr.used) != 1 {
		t.Errorf("override Use() calls = %d, want 1", len(ovr.used))
	}
}

func TestEngine_Decide_InvalidOverrideDoesNotDowngrade(t *testing.T) {
	ovr := &stubOverrides{id: "ovr-1", valid: false}
	e := engineWithRules(t, ovr, failingRule("r1", SeverityHigh))

	outcome := e.Decide(context.Background(), testReceipt(), []string{"test"})

	if outcome.Decision != DecisionBlock {
		t.Errorf("Decision = %q, want block (invalid override ignored)", outcome.Decision)
	}
}

func TestEngine_ShouldBlock(t *testing.T) {
	blocked := engineWithRules(t, nil, failingRule("r1", SeverityHigh))
	if !blocked.ShouldBlock(context.Background(), testReceipt(), []string{"test"}) {
		t.Error("ShouldBlock = false, want true")
	}

	overridden := engineWithRules(t, &stubOverrides{id: "o", valid: true}, failingRule("r1", SeverityHigh))
	if overridden.ShouldBlock(context.Background(), testReceipt(), []string{"test"}) {
		t.Error("ShouldBlock = true with valid override, want false")
	}

	clean := engineWithRules(t, nil, passingRule("r1"))
	if clean.ShouldBlock(context.Background(), testReceipt(), []string{"test"}) {
		t.Error("ShouldBlock = true for clean receipt, want false")
	}
}

func TestEngine_EvaluateBatch_Totals(t *testing.T) {
	e := engineWithRules(t, nil, failingRule("r1", SeverityCritical))

	receipts := []*receipt.TrustReceipt{testReceipt(), testReceipt(), testReceipt()}
	batch := e.EvaluateBatch(context.Background(), receipts, []string{"test"})

	if batch.Total != 3 {
		t.Errorf("Total = %d, want 3", batch.Total)
	}
	if batch.Total != batch.Passed+batch.Failed {
		t.Errorf("Total (%d) != Passed (%d) + Failed (%d)", batch.Total, batch.Passed, batch.Failed)
	}
	if batch.Failed != 3 {
		t.Errorf("Failed = %d, want 3", batch.Failed)
	}
}

func TestEngine_EvaluateBatch_Empty(t *testing.T) {
	e := engineWithRules(t, nil, passingRule("r1"))

	batch := e.EvaluateBatch(context.Background(), nil, []string{"test"})

	if batch.Total != 0 || batch.Passed != 0 || batch.Failed != 0 {
		t.Errorf("empty batch = %+v, want all zeros", batch)
	}
}

func TestEngine_Stats(t *testing.T) {
	e := engineWithRules(t, nil, failingRule("r1", SeverityHigh))

	e.Decide(context.Background(), testReceipt(), []string{"test"})
	e.Decide(context.Background(), testReceipt(), []string{"test"})

	stats := e.Stats()
	if stats.Evaluations != 2 {
		t.Errorf("Evaluations = %d, want 2", stats.Evaluations)
	}
	if stats.Blocked != 2 {
		t.Errorf("Blocked = %d, want 2", stats.Blocked)
	}
	if stats.TotalViolations != 2 {
		t.Errorf("TotalViolations = %d, want 2", stats.TotalViolations)
	}

	e.ResetStats()
	if got := e.Stats(); got.Evaluations != 0 || got.Blocked != 0 {
		t.Errorf("stats after reset = %+v, want zeros", got)
	}
}

func TestEngine_ObserversSeeEveryDecision(t *testing.T) {
	e := engineWithRules(t, nil, failingRule("r1", SeverityMedium))
	obs := &captureObserver{}
	e.AddObserver(obs)

	e.Decide(context.Background(), testReceipt(), []string{"test"})
	e.Decide(context.Background(), testReceipt(), []string{"test"})

	if len(obs.outcomes) != 2 {
		t.Fatalf("observed %d outcomes, want 2", len(obs.outcomes))
	}
	if obs.outcomes[0].Decision != DecisionAnnotate {
		t.Errorf("observed Decision = %q, want annotate", obs.outcomes[0].Decision)
	}
}

func TestEngine_ConcurrentDecisions(t *testing.T) {
	e := engineWithRules(t, nil, failingRule("r1", SeverityHigh))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Decide(context.Background(), testReceipt(), []string{"test"})
		}()
	}
	wg.Wait()

	stats := e.Stats()
	if stats.Evaluations != 20 {
		t.Errorf("Evaluations = %d, want 20", stats.Evaluations)
	}
	if stats.Blocked != 20 {
		t.Errorf("Blocked = %d, want 20", stats.Blocked)
	}
}

func TestEngine_BudgetExceededIsSoft(t *testing.T) {
	reg := NewRegistry()
	slow := NewEngineSlowRule()
	if err := reg.RegisterRule(slow); err != nil {
		t.Fatal(err)
	}
	if err := reg.RegisterPrinciple(&Principle{ID: "test", RuleIDs: []string{slow.ID()}}); err != nil {
		t.Fatal(err)
	}
	e := NewEngine(reg, nil, EngineConfig{EvaluationBudget: time.Nanosecond})

	result := e.Evaluate(context.Background(), testReceipt(), []string{"test"})

	// Exceeding the budget never aborts evaluation.
	if !result.Passed {
		t.Error("Passed = false, want true")
	}
	if e.Stats().BudgetExceeded == 0 {
		t.Error("BudgetExceeded = 0, want > 0")
	}
}

// NewEngineSlowRule returns a rule that sleeps long enough to exceed a
// nanosecond budget while staying fast in absolute terms.
func NewEngineSlowRule() Rule {
	return &slowRule{}
}

type slowRule struct{}

func (r *slowRule) ID() string         { return "slow" }
func (r *slowRule) Name() string       { return "Slow" }
func (r *slowRule) Severity() Severity { return SeverityLow }
func (r *slowRule) Enabled() bool      { return true }

func (r *slowRule) Evaluate(_ *receipt.TrustReceipt) Outcome {
	time.Sleep(time.Millisecond)
	return Pass()
}
