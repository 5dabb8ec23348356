// Package server owns the echo listener and the per-connection serving
// session.
//
// Ownership boundary:
// - accept loop and session supervision
// - read -> classify -> echo cycle per connection
// - shutdown drain of in-flight sessions
package server
