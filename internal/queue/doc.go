// Package queue persists the demonstration ledger in SQLite and exposes
// helpers for driving each demonstration through its lifecycle.
//
// Every demonstration found under the demos directory gets one row. The
// workflow manager claims pending rows, records the run id and outcome, and
// classifies failures through FailureStatus so errors that need a human
// (missing files, malformed inputs) land in review rather than failed.
//
// The ledger is bookkeeping, not the archive itself; deleting it only forgets
// which demonstrations were processed. Schema changes bump the version in
// schema.go; users clear the ledger to adopt the new schema.
package queue
