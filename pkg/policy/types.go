package policy

import (
	"time"

	"sonate-hq/arbiter/pkg/receipt"
)

// Severity ranks how serious a violation is.
type Severity string

const (
	// SeverityCritical violations fail the evaluation and always block.
	SeverityCritical Severity = "critical"
	// SeverityHigh violations block but do not fail the canonical pass rule.
	SeverityHigh Severity = "high"
	// SeverityMedium violations annotate the decision.
	SeverityMedium Severity = "medium"
	// SeverityLow violations are informational.
	SeverityLow Severity = "low"
)

// severityRank orders severities for comparison. Higher is more severe.
func severityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// MoreSevere reports whether s outranks other in the fixed order
// critical > high > medium > low.
func (s Severity) MoreSevere(other Severity) bool {
	return severityRank(s) > severityRank(other)
}

// Valid reports whether s is one of the four known severities.
func (s Severity) Valid() bool {
	return severityRank(s) > 0
}

// Decision is the final outcome of governing one receipt.
type Decision string

const (
	// DecisionAllow admits the interaction with no findings.
	DecisionAllow Decision = "allow"
	// DecisionAnnotate admits the interaction but attaches violations.
	DecisionAnnotate Decision = "annotate"
	// DecisionBlock rejects the interaction.
	DecisionBlock Decision = "block"
	// DecisionEscalate rejects and routes the interaction to human review.
	DecisionEscalate Decision = "escalate"
	// DecisionOverride admits a blockable interaction under a valid
	// human authorization.
	DecisionOverride Decision = "override"
)

// Outcome is the result of evaluating a single rule against a receipt.
type Outcome struct {
	// Passed reports whether the receipt satisfied the rule.
	Passed bool

	// Message describes the violation when Passed is false.
	Message string

	// Context carries rule-specific detail attached to the violation.
	Context map[string]any
}

// Pass returns a passing outcome.
func Pass() Outcome {
	return Outcome{Passed: true}
}

// Fail returns a failing outcome with the given violation message.
func Fail(message string, context map[string]any) Outcome {
	return Outcome{Passed: false, Message: message, Context: context}
}

// Rule is a pure predicate over a trust receipt.
//
// Implementations must be stateless, side-effect-free, and must not panic;
// the evaluator recovers a panicking rule into a synthetic high-severity
// violation, but well-behaved rules encode abnormal conditions as failing
// outcomes instead.
type Rule interface {
	// ID returns the stable rule identifier used by principles.
	ID() string

	// Name returns the human-readable rule name.
	Name() string

	// Severity returns the severity assigned to this rule's violations.
	Severity() Severity

	// Enabled reports whether the rule participates in evaluation.
	Enabled() bool

	// Evaluate checks the receipt against the rule.
	Evaluate(r *receipt.TrustReceipt) Outcome
}

// Principle is a named, ordered group of rule references representing one
// constitutional concern.
type Principle struct {
	ID      string   `json:"id" yaml:"id"`
	Name    string   `json:"name" yaml:"name"`
	RuleIDs []string `json:"rule_ids" yaml:"rule_ids"`
}

// Violation records a single failed rule check.
type Violation struct {
	RuleID     string         `json:"rule_id"`
	RuleName   string         `json:"rule_name"`
	Severity   Severity       `json:"severity"`
	Message    string         `json:"message"`
	Context    map[string]any `json:"context,omitempty"`
	DetectedAt time.Time      `json:"detected_at"`
}

// EvaluationMetadata carries timing and provenance for one evaluation.
type EvaluationMetadata struct {
	EvaluatedAt       time.Time `json:"evaluated_at"`
	EvaluationTimeMS  float64   `json:"evaluation_time_ms"`
	PrinciplesApplied []string  `json:"principles_applied"`
	RulesEvaluated    int       `json:"rules_evaluated"`
}

// EvaluationResult is the outcome of running a rule set against one receipt.
//
// Invariant: Passed is true iff no violation has severity critical. This is
// the canonical pass rule, independent of any downstream blocking logic.
type EvaluationResult struct {
	Passed     bool               `json:"passed"`
	Violations []Violation        `json:"violations"`
	Metadata   EvaluationMetadata `json:"metadata"`
}

// BatchResult aggregates evaluation results across a set of receipts.
type BatchResult struct {
	Total       int                          `json:"total"`
	Passed      int                          `json:"passed"`
	Failed      int                          `json:"failed"`
	Results     map[string]*EvaluationResult `json:"per_receipt_results"`
	TotalTimeMS float64                      `json:"total_time_ms"`
}

// Classification aggregates the violations of one evaluation result.
type Classification struct {
	// ByRule groups violations by the rule that produced them.
	ByRule map[string][]Violation `json:"by_rule"`

	// Counts tallies violations per severity.
	Counts SeverityCounts `json:"counts_by_severity"`

	// ShouldBlock is true when any critical or high violation is present.
	ShouldBlock bool `json:"should_block"`

	// MostSevere is the representative violation: the first violation in
	// rule-evaluation order carrying the top severity present. Nil when
	// there are no violations.
	MostSevere *Violation `json:"most_severe,omitempty"`
}

// SeverityCounts tallies violations per severity level.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Total returns the sum across all severities.
func (c SeverityCounts) Total() int {
	return c.Critical + c.High + c.Medium + c.Low
}

// RegistryStats describes the current contents of a registry.
type RegistryStats struct {
	Rules        int `json:"rules"`
	EnabledRules int `json:"enabled_rules"`
	Principles   int `json:"principles"`
}

// EngineStats carries the engine's running counters.
type EngineStats struct {
	Evaluations     uint64  `json:"evaluations"`
	ReceiptsPassed  uint64  `json:"receipts_passed"`
	ReceiptsFailed  uint64  `json:"receipts_failed"`
	Blocked         uint64  `json:"blocked"`
	Overridden      uint64  `json:"overridden"`
	Escalated       uint64  `json:"escalated"`
	TotalViolations uint64  `json:"total_violations"`
	BudgetExceeded  uint64  `json:"budget_exceeded"`
	AvgEvalTimeMS   float64 `json:"avg_eval_time_ms"`
}
