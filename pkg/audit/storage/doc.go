// Package storage provides durable backends for the audit log: an
// in-memory store for tests and single-process setups, and a SQLite store
// for deployments that need the record to survive restarts.
package storage
