// Package export renders audit entries as CSV rows or a JSON array dump
// for compliance handoff, and parses the CSV form back for round-trip
// verification.
package export
