// Package session owns the knobs and helpers shared by both ends of an
// echo session.
//
// Ownership boundary:
// - timeouts, frame size and shutdown grace
// - reconnect backoff
// - transport error classification
//
// Frame I/O itself lives in package frame.
package session
