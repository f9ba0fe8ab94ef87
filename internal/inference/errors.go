package inference

import "fmt"

// TransportError wraps a failure to complete the inference call itself.
// Recovery is a user-initiated retry of the identical request.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("inference transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedResponseError wraps a response that completed but failed to parse
// or failed shape validation. Recovery is identical to TransportError; the
// distinct type exists for diagnosis.
type MalformedResponseError struct {
	Reason string
	Raw    string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed inference response: %s", e.Reason)
}
