// Package policy implements the constitutional governance core: rule and
// principle registration, receipt evaluation, violation classification, and
// the decision engine that orchestrates them.
//
// # Architecture
//
// The package is layered bottom-up:
//
//   - Rule: a pure predicate over a trust receipt
//   - Registry: stores rules and principles with referential integrity
//   - Evaluator: runs a resolved rule set against one receipt
//   - Classifier: aggregates violations and derives a block signal
//   - Engine: orchestrates the above plus override consultation, audit
//     logging, alerting, and event publication
//
// All state is owned by explicitly constructed service objects and injected
// where needed; there is no package-level mutable state.
//
// # Concurrency
//
// Rule evaluation and classification are synchronous and pure. Registries
// are RWMutex-guarded. Engine statistics use atomic counters so batch
// evaluation can be parallelized by callers without coordination.
package policy
