package bankapi

import (
	"errors"
	"fmt"
)

// ErrUnreachable indicates the account service could not be reached or
// returned a response that was not valid JSON. Callers treat both uniformly
// as a transport failure.
var ErrUnreachable = errors.New("server unreachable")

// StatusError carries a non-2xx response from the account service together
// with the server-supplied message, when one could be parsed out of the body.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.Code)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Code, e.Message)
}

// ServerMessage extracts the server-supplied message from err if it is a
// StatusError. The boolean reports whether a message was present.
func ServerMessage(err error) (string, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Message != "" {
		return statusErr.Message, true
	}
	return "", false
}
