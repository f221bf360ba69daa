// Package server implements the HTTP and WebSocket transport for GoRelay.
//
// The implementation is organized into specialized files for configuration,
// logging, origin checks, rate limiting, WebSocket clients, routing, and HTTP
// handlers. Each accepted WebSocket becomes a Client that is handed to the
// relay registry, which owns all room and routing state.
package server
