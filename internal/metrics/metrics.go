// Package metrics records ledger activity for export.
package metrics

import "time"

// Recorder defines the interface for collecting ledger metrics.
type Recorder interface {
	// RecordMutation records one write through the ledger service.
	RecordMutation(entity, operation string, success bool, duration time.Duration)
	// RecordDrift records how many accounts a balance check found drifting.
	RecordDrift(accounts int)
	// RecordImport records the outcome of a statement import.
	RecordImport(imported, skipped int)
}

// NopRecorder discards everything. It is the default when metrics are not exported.
type NopRecorder struct{}

// RecordMutation does nothing.
func (NopRecorder) RecordMutation(string, string, bool, time.Duration) {}

// RecordDrift does nothing.
func (NopRecorder) RecordDrift(int) {}

// RecordImport does nothing.
func (NopRecorder) RecordImport(int, int) {}
