package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/linkhoard/linkhoard/ratelimit"
)

// Classify maps a transport outcome to a typed, retry-decided error.
//
// status is the HTTP status of the response, or 0 when no response was
// received; err is the transport error, nil when a response arrived.
func Classify(op string, status int, err error) *Error {
	if err != nil {
		if isTimeout(err) {
			return &Error{
				Kind:      KindTimeout,
				Retryable: true,
				Op:        op,
				Message:   "request timed out before a response arrived",
				Err:       err,
			}
		}
		return &Error{
			Kind:      KindNetwork,
			Retryable: true,
			Op:        op,
			Message:   "no response received from upstream",
			Err:       err,
		}
	}

	switch {
	case status == http.StatusTooManyRequests:
		return &Error{
			Kind:      KindRateLimited,
			Status:    status,
			Retryable: true,
			Op:        op,
			Message:   "upstream rejected the request as rate limited",
		}

	case status >= 500 && status <= 599:
		return &Error{
			Kind:      KindServer,
			Status:    status,
			Retryable: true,
			Op:        op,
			Message:   "upstream failed to process the request",
		}

	case status == http.StatusUnauthorized:
		return &Error{
			Kind:      KindAuthentication,
			Status:    status,
			Retryable: false,
			Op:        op,
			Message:   "credential missing, invalid, or expired",
		}

	case status >= 400 && status <= 499:
		return &Error{
			Kind:      KindValidation,
			Status:    status,
			Retryable: false,
			Op:        op,
			Message:   "upstream rejected the request",
		}

	default:
		return &Error{
			Kind:      KindUnknown,
			Status:    status,
			Retryable: false,
			Op:        op,
			Message:   fmt.Sprintf("unclassified failure (HTTP %d)", status),
		}
	}
}

// admissionRejected builds the error for a local admission rejection.
// It is deliberately not retryable: the request was never dispatched, and
// the caller should back off based on the attached limiter info instead.
func admissionRejected(op string, info ratelimit.Info) *Error {
	return &Error{
		Kind:      KindRateLimited,
		Retryable: false,
		Op:        op,
		Message:   "rejected by local admission control",
		RateInfo:  &info,
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
