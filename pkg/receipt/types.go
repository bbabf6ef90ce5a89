package receipt

import "time"

// TrustReceipt is a signed, hash-chained record of one AI interaction.
// Receipts are transient from the governance core's perspective: they are
// evaluated per call and never persisted by this module.
type TrustReceipt struct {
	// ID uniquely identifies the receipt.
	ID string `json:"id"`

	// AgentDID is the decentralized identifier of the AI agent.
	AgentDID string `json:"agent_did"`

	// HumanDID is the decentralized identifier of the human counterpart,
	// if one participated in the interaction.
	HumanDID string `json:"human_did,omitempty"`

	// Timestamp is when the interaction occurred.
	Timestamp time.Time `json:"timestamp"`

	// Interaction captures the exchange the receipt attests to.
	Interaction Interaction `json:"interaction"`

	// Telemetry carries the scored quality dimensions of the interaction.
	// Scoring happens upstream; rules only read these values.
	Telemetry Telemetry `json:"telemetry"`

	// Chain links this receipt to its predecessor. Nil when the issuer
	// produced no chain material, which integrity rules treat as a fault.
	Chain *Chain `json:"chain,omitempty"`

	// Signature is the cryptographic signature over the receipt. Nil when
	// the receipt is unsigned, which integrity rules treat as a fault.
	Signature *Signature `json:"signature,omitempty"`
}

// Interaction is the prompt/response pair and the model parameters used.
type Interaction struct {
	Prompt      string  `json:"prompt"`
	Response    string  `json:"response"`
	Model       string  `json:"model"`
	Provider    string  `json:"provider"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// Telemetry holds the upstream-computed quality scores for an interaction.
// All scores are in [0, 1] except TruthDebt, which accumulates upward from 0.
type Telemetry struct {
	// ResonanceScore measures alignment quality of the exchange.
	ResonanceScore float64 `json:"resonance_score"`

	// CoherenceScore measures internal consistency of the response.
	CoherenceScore float64 `json:"coherence_score"`

	// TruthDebt accumulates unverified or contradicted claims.
	TruthDebt float64 `json:"truth_debt"`

	// Volatility measures score instability across recent interactions.
	Volatility float64 `json:"volatility"`
}

// Chain links a receipt into the agent's hash chain.
type Chain struct {
	PreviousHash string `json:"previous_hash"`
	ChainHash    string `json:"chain_hash"`
	ChainLength  int    `json:"chain_length"`
}

// Signature is the detached signature over the canonical receipt body.
type Signature struct {
	Algorithm       string    `json:"algorithm"`
	Value           string    `json:"value"`
	KeyVersion      string    `json:"key_version"`
	TimestampSigned time.Time `json:"timestamp_signed"`
}
