// Package session manages session rows and the in-memory binding between caller
// windows and their active session.
//
// The Manager knows nothing about message content. Agent-specific session
// configuration lives with the owning agent, keyed by the same session id.
//
// Window bindings are not persisted. A process restart starts with no active
// sessions; binding the same window twice keeps the last session.
package session
