// Package annotation models the manual per-frame annotations produced by the
// interactive labelling tool.
//
// A Source answers "what did the operator mark for this camera at this
// frame?" with a Frame keyed by normalized object label. FileSource reads the
// annotations.json mapping written next to a demonstration; Static is an
// in-memory source used by tests and by callers that synthesize annotations.
package annotation
