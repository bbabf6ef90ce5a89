package policy

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"sonate-hq/arbiter/pkg/receipt"
)

// OverrideSource is consulted on the decision path for a valid, non-expired,
// non-revoked override covering the same receipt/agent/principle combination.
// Implemented by the override manager.
type OverrideSource interface {
	// FindValid returns the id of a currently valid override covering the
	// receipt/agent/principles combination, or false when none applies.
	FindValid(receiptID, agentID string, principleIDs []string) (string, bool)

	// Use increments the override's usage count if it is still valid.
	Use(id string) bool
}

// DecisionOutcome is the finalized result of governing one receipt, handed
// to registered observers after the decision is made.
type DecisionOutcome struct {
	Receipt        *receipt.TrustReceipt
	PrincipleIDs   []string
	Decision       Decision
	Result         *EvaluationResult
	Classification *Classification
	OverrideID     string
	Reason         string
	DecidedAt      time.Time
}

// DecisionObserver receives every finalized decision. Observers are invoked
// synchronously on the decision path and must be near-zero-latency; anything
// slow (durable writes, network delivery) must buffer internally.
type DecisionObserver interface {
	ObserveDecision(ctx context.Context, outcome *DecisionOutcome)
}

// EngineConfig configures the policy engine.
type EngineConfig struct {
	// EvaluationBudget is the soft per-receipt evaluation time budget.
	// Exceeding it produces a logged warning, never an abort.
	// Default: 50ms
	EvaluationBudget time.Duration

	// EscalationThreshold is the number of critical violations at which a
	// block is upgraded to an escalation for human review.
	// Default: 3
	EscalationThreshold int
}

// DefaultEngineConfig returns the default engine configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		EvaluationBudget:    50 * time.Millisecond,
		EscalationThreshold: 3,
	}
}

// Engine orchestrates registry resolution, evaluation, classification,
// override consultation, and decision observation for trust receipts.
type Engine struct {
	registry   *Registry
	evaluator  *Evaluator
	classifier *Classifier
	overrides  OverrideSource
	observers  []DecisionObserver
	config     EngineConfig
	logger     *slog.Logger

	statsMu sync.Mutex
	stats   EngineStats
}

// NewEngine creates a policy engine over the given registry. The override
// source may be nil, in which case blocks are never downgraded.
func NewEngine(registry *Registry, overrides OverrideSource, config EngineConfig) *Engine {
	if config.EvaluationBudget <= 0 {
		config.EvaluationBudget = 50 * time.Millisecond
	}
	if config.EscalationThreshold <= 0 {
		config.EscalationThreshold = 3
	}
	return &Engine{
		registry:   registry,
		evaluator:  NewEvaluator(),
		classifier: NewClassifier(),
		overrides:  overrides,
		config:     config,
		logger:     slog.Default().With("component", "policy.engine"),
	}
}

// AddObserver registers a decision observer. Not safe to call concurrently
// with decisions; wire observers before serving traffic.
func (e *Engine) AddObserver(obs DecisionObserver) {
	e.observers = append(e.observers, obs)
}

// Registry returns the engine's rule/principle registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Evaluate resolves the principle set and runs the resulting rules against
// one receipt. An empty principle set means every registered principle:
// governance never silently checks nothing. It always returns a result and
// never an error: internal faults surface as synthetic violations (biasing
// toward blocking).
func (e *Engine) Evaluate(ctx context.Context, rcpt *receipt.TrustReceipt, principleIDs []string) *EvaluationResult {
	start := time.Now()
	if len(principleIDs) == 0 {
		principleIDs = e.registry.PrincipleIDs()
	}
	rules := e.registry.RulesForPrinciples(principleIDs)
	result := e.evaluator.Evaluate(rules, rcpt)
	result.Metadata.PrinciplesApplied = append([]string(nil), principleIDs...)

	elapsed := time.Since(start)
	e.recordEvaluation(result, elapsed)

	if elapsed > e.config.EvaluationBudget {
		e.logger.Warn("evaluation exceeded soft time budget",
			"receipt_id", receiptID(rcpt),
			"elapsed_ms", elapsed.Milliseconds(),
			"budget_ms", e.config.EvaluationBudget.Milliseconds(),
			"rules", len(rules),
		)
	}

	return result
}

// EvaluateBatch evaluates each receipt against the same principle set.
// There is no cross-receipt shared state beyond the aggregate counters.
func (e *Engine) EvaluateBatch(ctx context.Context, receipts []*receipt.TrustReceipt, principleIDs []string) *BatchResult {
	start := time.Now()
	batch := &BatchResult{
		Results: make(map[string]*EvaluationResult, len(receipts)),
	}

	for _, rcpt := range receipts {
		result := e.Evaluate(ctx, rcpt, principleIDs)
		batch.Total++
		if result.Passed {
			batch.Passed++
		} else {
			batch.Failed++
		}
		batch.Results[receiptID(rcpt)] = result
	}

	batch.TotalTimeMS = float64(time.Since(start).Microseconds()) / 1000.0
	return batch
}

// Decide runs the full governance pipeline for one receipt: evaluate,
// classify, consult overrides, finalize the decision, and notify observers.
func (e *Engine) Decide(ctx context.Context, rcpt *receipt.TrustReceipt, principleIDs []string) *DecisionOutcome {
	if len(principleIDs) == 0 {
		principleIDs = e.registry.PrincipleIDs()
	}
	result := e.Evaluate(ctx, rcpt, principleIDs)
	cls := e.classifier.Classify(result)

	outcome := &DecisionOutcome{
		Receipt:        rcpt,
		PrincipleIDs:   append([]string(nil), principleIDs...),
		Result:         result,
		Classification: cls,
		DecidedAt:      time.Now().UTC(),
	}

	switch {
	case cls.ShouldBlock:
		// Override validity is consulted exactly once, immediately before
		// the decision is finalized, so a concurrent revocation cannot
		// split the check from the use.
		if id, ok := e.findOverride(rcpt, principleIDs); ok {
			outcome.Decision = DecisionOverride
			outcome.OverrideID = id
			outcome.Reason = "block downgraded by active override"
		} else if cls.Counts.Critical >= e.config.EscalationThreshold {
			outcome.Decision = DecisionEscalate
			outcome.Reason = "critical violation count requires human review"
		} else {
			outcome.Decision = DecisionBlock
			if cls.MostSevere != nil {
				outcome.Reason = cls.MostSevere.Message
			}
		}
	case len(result.Violations) > 0:
		outcome.Decision = DecisionAnnotate
		if cls.MostSevere != nil {
			outcome.Reason = cls.MostSevere.Message
		}
	default:
		outcome.Decision = DecisionAllow
	}

	e.recordDecision(outcome)

	for _, obs := range e.observers {
		obs.ObserveDecision(ctx, outcome)
	}

	return outcome
}

// ShouldBlock reports whether the receipt would be rejected under the given
// principles, accounting for active overrides.
func (e *Engine) ShouldBlock(ctx context.Context, rcpt *receipt.TrustReceipt, principleIDs []string) bool {
	outcome := e.Decide(ctx, rcpt, principleIDs)
	return outcome.Decision == DecisionBlock || outcome.Decision == DecisionEscalate
}

// findOverride snapshots override validity for the decision path.
func (e *Engine) findOverride(rcpt *receipt.TrustReceipt, principleIDs []string) (string, bool) {
	if e.overrides == nil || rcpt == nil {
		return "", false
	}
	id, ok := e.overrides.FindValid(rcpt.ID, rcpt.AgentDID, principleIDs)
	if !ok {
		return "", false
	}
	// Use can still fail if the override was revoked between lookup and
	// use; in that case the block stands.
	if !e.overrides.Use(id) {
		return "", false
	}
	return id, true
}

// Stats returns a snapshot of the engine's running counters.
func (e *Engine) Stats() EngineStats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.stats
}

// ResetStats zeroes the engine's running counters.
func (e *Engine) ResetStats() {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	e.stats = EngineStats{}
}

func (e *Engine) recordEvaluation(result *EvaluationResult, elapsed time.Duration) {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	e.stats.Evaluations++
	if result.Passed {
		e.stats.ReceiptsPassed++
	} else {
		e.stats.ReceiptsFailed++
	}
	e.stats.TotalViolations += uint64(len(result.Violations))
	if elapsed > e.config.EvaluationBudget {
		e.stats.BudgetExceeded++
	}

	// Incremental mean keeps the counter O(1) in memory.
	ms := float64(elapsed.Microseconds()) / 1000.0
	n := float64(e.stats.Evaluations)
	e.stats.AvgEvalTimeMS += (ms - e.stats.AvgEvalTimeMS) / n
}

func (e *Engine) recordDecision(outcome *DecisionOutcome) {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	switch outcome.Decision {
	case DecisionBlock:
		e.stats.Blocked++
	case DecisionEscalate:
		e.stats.Escalated++
		e.stats.Blocked++
	case DecisionOverride:
		e.stats.Overridden++
	}
}

func receiptID(rcpt *receipt.TrustReceipt) string {
	if rcpt == nil {
		return ""
	}
	return rcpt.ID
}
