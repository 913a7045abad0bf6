package voicechat

import "errors"

var (
	// ErrAlreadyStarted is returned when starting a session that is
	// already running.
	ErrAlreadyStarted = errors.New("session already started")

	// ErrSessionStopped is returned when starting a session that was
	// already stopped. Stopped sessions cannot be restarted.
	ErrSessionStopped = errors.New("session stopped")

	errNoRemoteAddr = errors.New("client sessions need a remote address")
)
