package orchestrator

import (
	"errors"
	"strings"

	"github.com/loadmap-guide/loadmap-cli/pkg/loadmap"
)

// CalculationError is a hard failure: both the weather and the basic request
// failed. Message is what the user sees.
type CalculationError struct {
	Message string
	Err     error
}

func (e *CalculationError) Error() string {
	return "orchestrator: calculation failed: " + e.Err.Error()
}

func (e *CalculationError) Unwrap() error { return e.Err }

// failureMessage picks the server's message, then the transport error's
// message, then the generic connection-failure text. Never empty.
func failureMessage(err error) string {
	var apiErr *loadmap.APIError
	if errors.As(err, &apiErr) {
		if msg := strings.TrimSpace(apiErr.Message); msg != "" {
			return msg
		}
	}
	var tErr *loadmap.TransportError
	if errors.As(err, &tErr) && tErr.Err != nil {
		if msg := strings.TrimSpace(tErr.Err.Error()); msg != "" {
			return msg
		}
	}
	return MsgConnectionFailed
}

// UserMessage maps an error returned by Calculate to its user-facing text.
func UserMessage(err error) string {
	var calcErr *CalculationError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientLocations):
		return MsgInsufficientLocations
	case errors.As(err, &calcErr):
		return calcErr.Message
	default:
		return failureMessage(err)
	}
}
