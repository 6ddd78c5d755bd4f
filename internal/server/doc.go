// Package server implements the relay: a TCP listener speaking length-prefixed
// JSON frames, an optional WebSocket transport, the presence handshake, the
// directory of identities and rooms, and the hub that routes frames between
// them.
//
// Files are split by concern: configuration, transports, the directory, the
// hub event loop, action routing, and the HTTP side.
package server
