package rigid

import (
	"fmt"
	"strings"
)

// MalformedTransformError reports a matrix that violates the rigid transform
// contract: wrong shape, non-finite values, a non-homogeneous bottom row, or a
// rotation block that is not orthonormal.
type MalformedTransformError struct {
	Source string
	Reason string
}

func (e *MalformedTransformError) Error() string {
	source := strings.TrimSpace(e.Source)
	if source == "" {
		return fmt.Sprintf("malformed transform: %s", e.Reason)
	}
	return fmt.Sprintf("malformed transform %s: %s", source, e.Reason)
}

// ErrorKind classifies the failure for ledger status mapping.
func (e *MalformedTransformError) ErrorKind() string { return "validation" }

func malformed(source, format string, args ...any) error {
	return &MalformedTransformError{Source: source, Reason: fmt.Sprintf(format, args...)}
}
