package loadmap

import (
	"fmt"
)

// APIError is a response the backend answered but rejected: a non-2xx status
// or an envelope with success=false. Message is the backend's own message.
type APIError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("loadmap: %s returned status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("loadmap: %s returned status %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// TransportError means no usable response arrived (connection, DNS, timeout).
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("loadmap: %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
