package agent

import (
	"errors"
	"fmt"
)

// CallError is a transport-level failure: the backend could not be reached or
// returned an error before producing a usable response.
type CallError struct {
	Agent string
	Err   error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s agent call: %v", e.Agent, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// MalformedResponseError means the backend answered but the response could
// not be parsed into the expected shape. Sample holds a truncated view of the
// raw payload for the run log.
type MalformedResponseError struct {
	Agent  string
	Sample string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s agent returned malformed response: %v (sample: %q)", e.Agent, e.Err, e.Sample)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// IsCallFailure reports whether err is a transport failure or a malformed
// response. The orchestrator treats the two identically.
func IsCallFailure(err error) bool {
	var ce *CallError
	var me *MalformedResponseError
	return errors.As(err, &ce) || errors.As(err, &me)
}

const sampleLimit = 200

func truncateSample(s string) string {
	if len(s) <= sampleLimit {
		return s
	}
	return s[:sampleLimit] + "..."
}
