// Package ratelimit provides per-key sliding-window admission control.
//
// Each key carries an independent trailing window of admitted timestamps;
// a request is admitted while the count of timestamps inside the window is
// below the configured limit. Rejected requests record nothing, so a burst
// of rejections never consumes future budget. This is a sliding window via
// timestamp pruning, not a token bucket: burstiness at the window boundary
// is bounded by the limit within any window-length interval rather than a
// smoothed rate.
package ratelimit
