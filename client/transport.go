package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxResponseSize bounds how much of an upstream response body is read.
const maxResponseSize = 10 << 20 // 10 MiB

// Response is the transport-level result of one dispatch attempt.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Transport sends one request attempt and returns the raw response.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Send must honor cancellation; the timeout bounds one attempt.
// - Errors: a non-nil error means no usable response was received.
type Transport interface {
	Send(ctx context.Context, method, url string, headers map[string]string, body []byte, timeout time.Duration) (*Response, error)
}

// HTTPTransport is the net/http-backed Transport.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport creates an HTTPTransport using the given http.Client.
// Passing nil uses a default client; per-attempt timeouts come from Send,
// not from http.Client.Timeout.
func NewHTTPTransport(hc *http.Client) *HTTPTransport {
	if hc == nil {
		hc = &http.Client{}
	}
	return &HTTPTransport{client: hc}
}

// Send dispatches one attempt, bounded by timeout.
func (t *HTTPTransport) Send(ctx context.Context, method, url string, headers map[string]string, body []byte, timeout time.Duration) (*Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("client: read response: %w", err)
	}

	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   data,
	}, nil
}

// Ensure HTTPTransport implements Transport
var _ Transport = (*HTTPTransport)(nil)
