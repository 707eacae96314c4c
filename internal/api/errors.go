package api

import (
	"fmt"
	"strings"
)

// TransportError covers any failed batch call: non-success HTTP status, or
// a GraphQL error list with no data at all. Partial data accompanied by
// errors is not a TransportError; it passes through to reconciliation.
type TransportError struct {
	StatusCode int
	Messages   []string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("transport: %v", e.Err)
	case len(e.Messages) > 0:
		return fmt.Sprintf("transport: graphql errors: %s", strings.Join(e.Messages, "; "))
	default:
		return fmt.Sprintf("transport: status %d", e.StatusCode)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
