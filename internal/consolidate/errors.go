package consolidate

import "fmt"

// InputError reports a demonstration that cannot be consolidated as laid out.
type InputError struct {
	Demo   string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s", e.Demo, e.Reason)
}

// ErrorKind classifies the error for the run ledger.
func (e *InputError) ErrorKind() string { return "validation" }
