// Package token owns the credential lifecycle for the LinkHoard client:
// the login exchange, the live token, and its scheduled refresh.
//
// At most one credential is live at a time. Setting a new one atomically
// replaces the old and reschedules the refresh timer; a failed refresh
// clears the credential entirely, forcing explicit re-authentication. The
// refresh timer is a one-shot, explicitly cancellable task so shutdown
// and test teardown never leave scheduled work behind.
package token
