// Package server implements the chat server core: the client registry, the
// broadcast engine, the per-connection session state machine and the control
// loop that accepts connections.
//
// The implementation is organized into specialized files for configuration,
// registry, broadcast, sessions, routing, and HTTP handlers to keep the
// codebase maintainable and testable as the project grows.
package server
