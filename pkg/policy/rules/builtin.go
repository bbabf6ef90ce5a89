package rules

import (
	"fmt"
	"sync/atomic"

	"sonate-hq/arbiter/pkg/policy"
	"sonate-hq/arbiter/pkg/receipt"
)

// Built-in rule ids.
const (
	RuleSignatureVerification = "signature-verification"
	RuleChainIntegrity        = "chain-integrity"
	RuleCoherenceFloor        = "coherence-floor"
	RuleTruthDebtCeiling      = "truth-debt-ceiling"
	RuleResonanceFloor        = "resonance-floor"
	RuleVolatilityCeiling     = "volatility-ceiling"
)

// Built-in principle ids.
const (
	PrincipleIntegrity   = "integrity"
	PrincipleMinimalHarm = "minimal-harm"
	PrincipleResonance   = "resonance"
)

// Default telemetry thresholds.
const (
	DefaultCoherenceFloor    = 0.5
	DefaultTruthDebtCeiling  = 0.4
	DefaultResonanceFloor    = 0.4
	DefaultVolatilityCeiling = 0.8
)

// StaticRule is a rule backed by a predicate function. It carries its own
// enabled flag so loaders can toggle rules without re-registration.
type StaticRule struct {
	id       string
	name     string
	severity policy.Severity
	enabled  atomic.Bool
	check    func(r *receipt.TrustReceipt) policy.Outcome
}

// NewStaticRule creates an enabled rule from a predicate function.
func NewStaticRule(id, name string, severity policy.Severity, check func(r *receipt.TrustReceipt) policy.Outcome) *StaticRule {
	sr := &StaticRule{id: id, name: name, severity: severity, check: check}
	sr.enabled.Store(true)
	return sr
}

// ID returns the rule identifier.
func (r *StaticRule) ID() string { return r.id }

// Name returns the human-readable rule name.
func (r *StaticRule) Name() string { return r.name }

// Severity returns the severity assigned to violations of this rule.
func (r *StaticRule) Severity() policy.Severity { return r.severity }

// Enabled reports whether the rule participates in evaluation.
func (r *StaticRule) Enabled() bool { return r.enabled.Load() }

// SetEnabled toggles the rule.
func (r *StaticRule) SetEnabled(enabled bool) { r.enabled.Store(enabled) }

// Evaluate checks the receipt against the rule predicate.
func (r *StaticRule) Evaluate(rcpt *receipt.TrustReceipt) policy.Outcome {
	return r.check(rcpt)
}

// SignatureVerification requires the receipt to carry a signature with a
// non-empty value. Missing signatures are critical: an unsigned receipt
// cannot be attributed.
func SignatureVerification() *StaticRule {
	return NewStaticRule(RuleSignatureVerification, "Signature Verification", policy.SeverityCritical,
		func(r *receipt.TrustReceipt) policy.Outcome {
			if r.Signature == nil {
				return policy.Fail("receipt carries no signature", nil)
			}
			if r.Signature.Value == "" {
				return policy.Fail("receipt signature value is empty", map[string]any{
					"algorithm": r.Signature.Algorithm,
				})
			}
			return policy.Pass()
		})
}

// ChainIntegrity requires the receipt to be linked into a hash chain.
func ChainIntegrity() *StaticRule {
	return NewStaticRule(RuleChainIntegrity, "Chain Integrity", policy.SeverityHigh,
		func(r *receipt.TrustReceipt) policy.Outcome {
			if r.Chain == nil {
				return policy.Fail("receipt carries no chain material", nil)
			}
			if r.Chain.ChainHash == "" {
				return policy.Fail("receipt chain hash is empty", nil)
			}
			if r.Chain.ChainLength < 1 {
				return policy.Fail(fmt.Sprintf("receipt chain length %d is invalid", r.Chain.ChainLength), map[string]any{
					"chain_length": r.Chain.ChainLength,
				})
			}
			return policy.Pass()
		})
}

// CoherenceFloor flags responses whose coherence score falls below the floor.
func CoherenceFloor(floor float64) *StaticRule {
	return NewStaticRule(RuleCoherenceFloor, "Coherence Floor", policy.SeverityMedium,
		func(r *receipt.TrustReceipt) policy.Outcome {
			if r.Telemetry.CoherenceScore < floor {
				return policy.Fail(
					fmt.Sprintf("coherence score %.2f below floor %.2f", r.Telemetry.CoherenceScore, floor),
					map[string]any{"coherence_score": r.Telemetry.CoherenceScore, "floor": floor},
				)
			}
			return policy.Pass()
		})
}

// TruthDebtCeiling flags interactions that accumulated too much truth debt.
func TruthDebtCeiling(ceiling float64) *StaticRule {
	return NewStaticRule(RuleTruthDebtCeiling, "Truth Debt Ceiling", policy.SeverityHigh,
		func(r *receipt.TrustReceipt) policy.Outcome {
			if r.Telemetry.TruthDebt > ceiling {
				return policy.Fail(
					fmt.Sprintf("truth debt %.2f exceeds ceiling %.2f", r.Telemetry.TruthDebt, ceiling),
					map[string]any{"truth_debt": r.Telemetry.TruthDebt, "ceiling": ceiling},
				)
			}
			return policy.Pass()
		})
}

// ResonanceFloor flags interactions whose resonance score falls below the floor.
func ResonanceFloor(floor float64) *StaticRule {
	return NewStaticRule(RuleResonanceFloor, "Resonance Floor", policy.SeverityMedium,
		func(r *receipt.TrustReceipt) policy.Outcome {
			if r.Telemetry.ResonanceScore < floor {
				return policy.Fail(
					fmt.Sprintf("resonance score %.2f below floor %.2f", r.Telemetry.ResonanceScore, floor),
					map[string]any{"resonance_score": r.Telemetry.ResonanceScore, "floor": floor},
				)
			}
			return policy.Pass()
		})
}

// VolatilityCeiling flags agents whose score volatility exceeds the ceiling.
func VolatilityCeiling(ceiling float64) *StaticRule {
	return NewStaticRule(RuleVolatilityCeiling, "Volatility Ceiling", policy.SeverityLow,
		func(r *receipt.TrustReceipt) policy.Outcome {
			if r.Telemetry.Volatility > ceiling {
				return policy.Fail(
					fmt.Sprintf("volatility %.2f exceeds ceiling %.2f", r.Telemetry.Volatility, ceiling),
					map[string]any{"volatility": r.Telemetry.Volatility, "ceiling": ceiling},
				)
			}
			return policy.Pass()
		})
}

// RegisterBuiltins registers the built-in constitutional rules and
// principles on the given registry with default thresholds.
func RegisterBuiltins(reg *policy.Registry) error {
	builtins := []policy.Rule{
		SignatureVerification(),
		ChainIntegrity(),
		CoherenceFloor(DefaultCoherenceFloor),
		TruthDebtCeiling(DefaultTruthDebtCeiling),
		ResonanceFloor(DefaultResonanceFloor),
		VolatilityCeiling(DefaultVolatilityCeiling),
	}
	for _, rule := range builtins {
		if err := reg.RegisterRule(rule); err != nil {
			return err
		}
	}

	principles := []*policy.Principle{
		{
			ID:      PrincipleIntegrity,
			Name:    "Integrity",
			RuleIDs: []string{RuleSignatureVerification, RuleChainIntegrity},
		},
		{
			ID:      PrincipleMinimalHarm,
			Name:    "Minimal Harm",
			RuleIDs: []string{RuleCoherenceFloor, RuleTruthDebtCeiling},
		},
		{
			ID:      PrincipleResonance,
			Name:    "Resonance",
			RuleIDs: []string{RuleResonanceFloor, RuleVolatilityCeiling},
		},
	}
	for _, p := range principles {
		if err := reg.RegisterPrinciple(p); err != nil {
			return err
		}
	}

	return nil
}
