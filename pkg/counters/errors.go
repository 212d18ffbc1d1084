package counters

import "errors"

var (
	// ErrNotFound indicates no entry exists for the session id
	ErrNotFound = errors.New("counters.not_found")

	// ErrInvalidSessionID indicates an empty session id was passed
	ErrInvalidSessionID = errors.New("counters.invalid_session_id")

	// ErrInvalidKind indicates an unknown counter kind
	ErrInvalidKind = errors.New("counters.invalid_kind")

	ErrFailedToParseRedisURL = errors.New("counters.redis_url_invalid")
	ErrRedisNotReady         = errors.New("counters.redis_not_ready")
)
