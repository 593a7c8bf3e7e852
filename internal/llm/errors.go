package llm

import (
	"errors"
	"fmt"
)

// Kind classifies a gateway failure. The discriminant drives the retry
// policy: connectivity and timeout failures are transient and retried,
// client and server failures surface immediately.
type Kind int

const (
	// KindConnectivity means the endpoint was unreachable or
	// unresolvable.
	KindConnectivity Kind = iota
	// KindTimeout means the request exceeded its deadline.
	KindTimeout
	// KindServer means the endpoint responded with a 5xx failure.
	KindServer
	// KindClient means the endpoint rejected the request as malformed
	// or referencing an unavailable model.
	KindClient
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindConnectivity:
		return "connectivity"
	case KindTimeout:
		return "timeout"
	case KindServer:
		return "server"
	case KindClient:
		return "client"
	default:
		return "unknown"
	}
}

// RequestError is a gateway failure tagged with an explicit
// discriminant rather than ad hoc status/message probing.
type RequestError struct {
	// Kind is the failure class.
	Kind Kind
	// Status is the HTTP status code, when one was received.
	Status int
	// Message is the failure description from the endpoint or transport.
	Message string
	// ModelName is set when the failure was a missing-model rejection.
	ModelName string
	// Endpoint is the URL the request targeted.
	Endpoint string
}

// Error returns a human-readable cause with a concrete remediation
// action where one applies.
func (e *RequestError) Error() string {
	switch {
	case e.ModelName != "":
		return fmt.Sprintf("model %q not found (fetch it first, e.g. `ollama pull %s`)", e.ModelName, e.ModelName)
	case e.Kind == KindConnectivity:
		return fmt.Sprintf("cannot reach %s: %s (verify the endpoint URL and that the server is running)", e.Endpoint, e.Message)
	case e.Kind == KindTimeout:
		return fmt.Sprintf("request to %s timed out: %s (the model may still be loading; retry or raise the timeout)", e.Endpoint, e.Message)
	case e.Kind == KindServer:
		return fmt.Sprintf("server error from %s (status %d): %s", e.Endpoint, e.Status, e.Message)
	default:
		return fmt.Sprintf("request rejected by %s (status %d): %s", e.Endpoint, e.Status, e.Message)
	}
}

// IsRetryable reports whether the error is a transient gateway failure
// worth retrying: connectivity and timeout kinds only.
func IsRetryable(err error) bool {
	k, ok := KindOf(err)
	if !ok {
		return false
	}
	return k == KindConnectivity || k == KindTimeout
}

// KindOf extracts the failure kind from an error chain.
func KindOf(err error) (Kind, bool) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Kind, true
	}
	return 0, false
}
