package client

import (
	"errors"
	"fmt"

	"github.com/linkhoard/linkhoard/ratelimit"
)

// Kind identifies the class of a request failure.
type Kind string

const (
	// KindAuthentication means the credential is missing, invalid, or expired.
	KindAuthentication Kind = "authentication"

	// KindValidation means the upstream rejected a malformed request.
	KindValidation Kind = "validation"

	// KindRateLimited covers both local admission rejection and upstream 429.
	KindRateLimited Kind = "rate_limited"

	// KindServer means the upstream failed with a 5xx status.
	KindServer Kind = "server"

	// KindTimeout means the local timeout elapsed before any response.
	KindTimeout Kind = "timeout"

	// KindNetwork means no response was received at all.
	KindNetwork Kind = "network_unavailable"

	// KindUnknown is any unclassified failure.
	KindUnknown Kind = "unknown"
)

// Error is a classified request failure. It carries enough context for
// the caller to render a message without exposing transport internals.
type Error struct {
	// Kind is the failure class.
	Kind Kind

	// Status is the originating HTTP status, 0 when no response was received.
	Status int

	// Retryable reports whether the pipeline may retry this failure.
	Retryable bool

	// Op is the logical operation the failure belongs to.
	Op string

	// Message is a short human-readable description.
	Message string

	// RateInfo carries limiter diagnostics for local admission rejections.
	RateInfo *ratelimit.Info

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("client: %s: %s (HTTP %d): %s", e.Op, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("client: %s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a client Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == kind
}
