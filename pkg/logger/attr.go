package logger

import (
	"context"
	"log/slog"
	"time"
)

type sessionIDKey struct{}

// WithSessionID stores the tracking session id in ctx so every record
// logged with that context carries it as "session_id".
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, sessionID)
}

// SessionIDFromContext returns the session id stored by WithSessionID
func SessionIDFromContext(ctx context.Context) (string, bool) {
	sid, ok := ctx.Value(sessionIDKey{}).(string)
	return sid, ok && sid != ""
}

func sessionIDExtractor(ctx context.Context) (slog.Attr, bool) {
	sid, ok := SessionIDFromContext(ctx)
	if !ok {
		return slog.Attr{}, false
	}
	return SessionID(sid), true
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// SessionID records the tracking session id under the key "session_id".
func SessionID(id string) slog.Attr {
	return slog.String("session_id", id)
}

// RequestType records the tracking request type (visit or event).
func RequestType(t string) slog.Attr {
	return slog.String("request_type", t)
}

// Attempt records the delivery attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}

// StatusCode records an HTTP status code; zero means no response.
func StatusCode(code int) slog.Attr {
	return slog.Int("status_code", code)
}

// Duration records a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
