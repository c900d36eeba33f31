package payment

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("transaction not found")
	ErrTerminal    = errors.New("transaction is in a terminal state")
	ErrPersistence = errors.New("persistence failure")
	ErrAuth        = errors.New("gateway authentication failed")
	ErrGateway     = errors.New("gateway request failed")
)

// ValidationError is returned before any side effect when the request is incomplete.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DeclinedError means the gateway was reached but refused the charge.
type DeclinedError struct {
	StatusCode int
	Message    string
	Body       json.RawMessage
}

func (e *DeclinedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("payment initiation failed with status %d", e.StatusCode)
	}

	return fmt.Sprintf("payment initiation failed: %s", e.Message)
}
