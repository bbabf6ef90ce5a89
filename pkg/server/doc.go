// Package server provides the HTTP API for the governance core: receipt
// evaluation and decisions, override and webhook management, alerts, live
// event streaming, and audit queries.
package server
