// Package bookmarks provides typed bookmark and tag operations on top of
// the resilient client.
//
// Reads flow through the client's request cache; mutations bypass it and,
// on success, invalidate the cached reads they affect. The service knows
// which read prefixes a mutation touches, so invalidation lives here
// rather than inside the client.
package bookmarks
