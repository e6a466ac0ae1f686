package queue

import "errors"

// ErrorClassifier allows errors to declare their classification for status mapping.
// Errors that implement this interface can influence whether a failure results in
// StatusFailed (retry-able) or StatusReview (needs manual intervention).
type ErrorClassifier interface {
	// ErrorKind returns a string classification of the error.
	// Known kinds that map to StatusReview: "validation", "configuration", "not_found"
	// All other kinds map to StatusFailed.
	ErrorKind() string
}

// FailureStatus maps a consolidation or archive error to the ledger status
// the workflow manager should persist.
func FailureStatus(err error) Status {
	if kind := ErrorKind(err); kind == "validation" || kind == "configuration" || kind == "not_found" {
		return StatusReview
	}
	return StatusFailed
}

// ErrorKind returns the classification declared anywhere in err's chain, or
// "internal" when none is declared.
func ErrorKind(err error) string {
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		return classifier.ErrorKind()
	}
	return "internal"
}
