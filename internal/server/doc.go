// Package server exposes the orchestrator over HTTP.
//
// Session and message routes map one-to-one onto orchestrator operations.
// Errors use a single envelope:
//
//	{"error": {"code": "NOT_FOUND", "message": "session not found: ..."}}
//
// Remote UI listeners follow the event relay through Server-Sent Events on
// GET /event or a websocket on GET /ws. Both accept an optional sessionID query
// parameter; events naming another session are then filtered out, while
// events that name no session are always delivered. Every relayed event has the shape
//
//	{"type": "stream.response", "properties": {...}}
//
// Listeners that fall behind lose events rather than slowing generations down.
package server
