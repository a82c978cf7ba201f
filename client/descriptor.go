package client

import (
	"net/http"
	"strings"

	"github.com/linkhoard/linkhoard/cache"
	"github.com/linkhoard/linkhoard/observe"
)

// Descriptor is an immutable description of one logical request. It is
// the unit the pipeline operates on: cache keys and rate-limit keys are
// both derived from it.
type Descriptor struct {
	// Method is the HTTP method, e.g. "GET".
	Method string

	// Path is the request path relative to the base URL.
	Path string

	// Query holds query parameters.
	Query map[string]string

	// Body is the request body, marshaled to JSON when non-nil.
	Body any

	// Operation is an optional logical name for telemetry, e.g.
	// "bookmarks.list". Defaults to "<METHOD> <path>".
	Operation string
}

// CacheEligible reports whether the descriptor describes an idempotent
// read. Only such requests ever touch the request cache.
func (d Descriptor) CacheEligible() bool {
	switch strings.ToUpper(d.Method) {
	case http.MethodGet, http.MethodHead:
		return true
	default:
		return false
	}
}

// CacheKey derives the deterministic cache key for the descriptor.
func (d Descriptor) CacheKey() (string, error) {
	params := make(map[string]any, len(d.Query)+1)
	for k, v := range d.Query {
		params[k] = v
	}
	if d.Body != nil {
		params["_body"] = d.Body
	}
	if len(params) == 0 {
		return cache.Key(d.Method, d.Path, nil)
	}
	return cache.Key(d.Method, d.Path, params)
}

// RateKey derives the admission-control key: method plus path, so each
// endpoint carries an independent budget regardless of parameters.
func (d Descriptor) RateKey() string {
	return strings.ToUpper(d.Method) + " " + d.Path
}

// Op returns the logical operation name for error context and telemetry.
func (d Descriptor) Op() string {
	if d.Operation != "" {
		return d.Operation
	}
	return strings.ToUpper(d.Method) + " " + d.Path
}

func (d Descriptor) meta() observe.OpMeta {
	return observe.OpMeta{
		Operation: d.Op(),
		Method:    strings.ToUpper(d.Method),
		Path:      d.Path,
	}
}
