package llm

import "fmt"

// TransientLmError wraps any error returned by the LM backend call. The
// adapter does not classify call errors: connection, timeout, rate-limit
// and 5xx failures are wrapped and retried the same as every other call
// error. The adapter retries these internally; one surfaces only after the
// retry budget (≤4 attempts by default) is exhausted.
type TransientLmError struct {
	Attempt int
	Cause   error
}

func (e *TransientLmError) Error() string {
	return fmt.Sprintf("transient LM error on attempt %d: %v", e.Attempt, e.Cause)
}

func (e *TransientLmError) Unwrap() error { return e.Cause }

// LmProtocolError is raised when the LM's response is not parseable JSON
// (even after the repair pass) or fails schema validation.
type LmProtocolError struct {
	Reason string
	Raw    string
}

func (e *LmProtocolError) Error() string {
	return fmt.Sprintf("LM protocol error: %s", e.Reason)
}

// LmReturnedSchemaError is raised when the LM echoes the schema definition
// itself (keys like "properties", "type", "required") instead of content.
type LmReturnedSchemaError struct {
	Raw string
}

func (e *LmReturnedSchemaError) Error() string {
	return "LM returned the response schema instead of content"
}
