package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures in the ordering conversation.
type ErrorKind int

const (
	// KindValidation is a malformed or empty selection. Recovered with a prompt.
	KindValidation ErrorKind = iota + 1
	// KindNotFound is a missing menu or record. Recovered with an apology.
	KindNotFound
	// KindDependency is a database, payment or SMS failure. The customer is
	// asked to try again and the session is left as it was.
	KindDependency
	// KindState is an intent that does not fit the current session state.
	KindState
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindDependency:
		return "dependency"
	case KindState:
		return "state"
	default:
		return "unknown"
	}
}

// OrderingError carries the kind and the operation that failed.
type OrderingError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *OrderingError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *OrderingError) Unwrap() error { return e.Err }

func newError(kind ErrorKind, op string, err error) *OrderingError {
	return &OrderingError{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first OrderingError in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var oe *OrderingError
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return 0
}
