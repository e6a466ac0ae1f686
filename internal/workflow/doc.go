// Package workflow drives demonstrations from discovery to committed archive.
//
// The Manager syncs the demos directory into the ledger, then claims pending
// demonstrations one at a time: each is consolidated, written to its archive,
// and recorded as completed. A failure is classified through
// queue.FailureStatus and recorded against that demonstration only; the
// manager moves on to the next one. Cancellation stops after the current
// demonstration settles.
package workflow
