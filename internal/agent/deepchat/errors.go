package deepchat

import "errors"

var (
	// ErrGenerationInProgress rejects a message sent while the session is generating.
	ErrGenerationInProgress = errors.New("generation already in progress")

	// ErrSessionNotInitialized is returned for a session this agent has no config for.
	ErrSessionNotInitialized = errors.New("session not initialized")

	// ErrCancelled is the terminal reason of a generation stopped by the user.
	ErrCancelled = errors.New("generation cancelled by user")

	errStreamEnded = errors.New("stream ended without a stop event")
)
