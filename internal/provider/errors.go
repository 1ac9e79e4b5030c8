package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindForbidden    Kind = "forbidden"
	KindUnauthorized Kind = "unauthorized"
	KindRateLimited  Kind = "rate_limited"
	KindTransport    Kind = "transport"
	KindRejected     Kind = "rejected"
)

// Error is the only error type returned by Client methods, apart from context errors.
type Error struct {
	Err        error
	Kind       Kind
	Op         string
	StatusCode int
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s: %s (status %d): %v", e.Op, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) retryable() bool {
	return e.Kind == KindRateLimited || e.Kind == KindTransport
}

// IsKind reports whether err carries a provider error of the given kind.
func IsKind(err error, kind Kind) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.Kind == kind
}

func kindFromStatus(status int) Kind {
	switch {
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500:
		return KindTransport
	default:
		return KindRejected
	}
}

// newError classifies err using the HTTP status when one is known.
func newError(op string, status int, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if status == 0 {
		return &Error{Kind: KindTransport, Op: op, Err: err}
	}
	return &Error{Kind: kindFromStatus(status), Op: op, StatusCode: status, Err: err}
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var perr *Error
	if errors.As(err, &perr) {
		return string(perr.Kind)
	}
	return "canceled"
}
