// Package server implements the real-time side of roomrelay: the WebSocket
// handshake, the per-connection Session with its read and write pumps, and
// the Supervisor that activates, dispatches and tears down sessions.
//
// A connection authenticates either at upgrade time (Authorization header or
// token query parameter) or with a first authenticate frame. Once active, a
// session exchanges JSON envelopes of the form {"event": ..., "data": ...}:
// join-room, leave-room, send-message and typing from the client; room-joined,
// new-message, user-typing and error from the server.
//
// The implementation is organized into specialized files for configuration,
// supervision, sessions, the event pipeline, routing and HTTP handlers.
package server
