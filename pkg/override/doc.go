// Package override manages time-bound human authorizations that can
// suppress a block decision for a specific receipt/agent/principle
// combination.
//
// Overrides are never deleted on expiry or revocation — they are retained
// for audit purposes and only their validity changes. The in-memory store is
// bounded; when capacity is exceeded the oldest 20% by authorization time is
// evicted. An optional SQLite-backed store persists the full lifecycle so
// overrides survive process restarts.
package override
