// Package client implements the resilient HTTP client that mediates every
// outbound call to the LinkHoard service.
//
// Each logical request flows through a fixed, visible pipeline:
//
//	admit → cache-check → dispatch → classify/retry → cache-store
//
// Admission control rejects before any network attempt and is never
// retried. Idempotent reads are served from the request cache when
// possible and populate it on success; concurrent identical reads are
// collapsed into a single dispatch. Failures are classified into typed
// error kinds, and retryable ones are retried with exponential backoff up
// to the configured maximum; only the final outcome is visible to the
// caller.
package client
