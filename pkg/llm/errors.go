package llm

import (
	"errors"
	"fmt"
)

var (
	ErrTransport            = errors.New("transport error")
	ErrMalformedResponse    = errors.New("malformed completion response")
	ErrMalformedStreamChunk = errors.New("malformed stream chunk")
	ErrEmptyChoices         = errors.New("completion response has no choices")
	ErrEncoding             = errors.New("invalid text encoding")
	ErrEmptyConversation    = errors.New("conversation has no turns")
)

// TransportError reports a non-2xx status or a failed connection.
// StatusCode is zero when no response was received.
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("transport error: %v", e.Err)
	}
	if e.Body == "" {
		return fmt.Sprintf("API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("API returned status %d: %s", e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}
