// Package audit keeps the append-only record of every governance decision
// and lifecycle change: decisions, override creation/use/revocation, alert
// creation/acknowledgment, webhook registration and delivery outcomes.
//
// The logger's append path is decoupled from evaluation: entries land in a
// bounded in-memory window synchronously under a mutex, while durable
// storage writes happen on a background worker so a slow disk can never
// stall a policy decision. The in-memory window is a recent-view cache;
// compliance-grade retention belongs to the durable storage behind the
// Storage interface, pruned on a schedule by the retention scheduler.
package audit
