package httpsession

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dmitrymomot/sessiontrack/pkg/tracker"
)

// Manager creates cookie backed carriers for incoming requests.
//
// The cookie holds a signed JSON object. Tracker attributes live under the
// configured session key; any other keys found in the cookie are preserved
// when the tracker rewrites it.
type Manager struct {
	codec      *codec
	cookieName string
	sessionKey string
	maxAge     time.Duration
	secure     bool
	logger     *slog.Logger
}

// Option configures a Manager
type Option func(*Manager)

// WithMaxAge sets the cookie lifetime; zero makes it a browser session cookie
func WithMaxAge(d time.Duration) Option {
	return func(m *Manager) {
		m.maxAge = d
	}
}

// WithSecure sets the Secure flag on the cookie (recommended for production)
func WithSecure(secure bool) Option {
	return func(m *Manager) {
		m.secure = secure
	}
}

// WithLogger sets the logger used to report rejected cookies
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a manager using the cookie name and session key of cfg.
// At least one secret of 32 or more characters is required.
func NewManager(cfg tracker.Config, secrets []string, opts ...Option) (*Manager, error) {
	c, err := newCodec(secrets)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		codec:      c,
		cookieName: cfg.CookieName,
		sessionKey: cfg.SessionKey,
		logger:     slog.Default(),
	}
	if m.cookieName == "" {
		m.cookieName = tracker.DefaultConfig().CookieName
	}
	if m.sessionKey == "" {
		m.sessionKey = tracker.DefaultConfig().SessionKey
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Carrier reads the session cookie of r and returns a carrier that writes
// attribute changes back to w. Invalid or tampered cookies are ignored, so
// the client simply starts a new session.
func (m *Manager) Carrier(w http.ResponseWriter, r *http.Request) *Carrier {
	c := &Carrier{
		m:      m,
		w:      w,
		values: make(map[string]json.RawMessage),
		attrs: tracker.Attributes{
			UserAgent: r.UserAgent(),
			ClientIP:  ClientIP(r),
		},
	}

	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		return c
	}

	values := make(map[string]json.RawMessage)
	if err := m.codec.decode(cookie.Value, &values); err != nil {
		m.logger.DebugContext(r.Context(), "session cookie rejected", slog.Any("error", err))
		return c
	}
	c.values = values

	if raw, ok := values[m.sessionKey]; ok {
		var stored tracker.Attributes
		if err := json.Unmarshal(raw, &stored); err == nil {
			c.attrs.SessionID = stored.SessionID
			c.attrs.UserID = stored.UserID
		}
	}
	return c
}

// Middleware attaches a Carrier for every request to its context
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := m.Carrier(w, r)
		next.ServeHTTP(w, r.WithContext(WithCarrier(r.Context(), c)))
	})
}

func (m *Manager) write(w http.ResponseWriter, values map[string]json.RawMessage) error {
	value, err := m.codec.encode(values)
	if err != nil {
		return err
	}

	cookie := &http.Cookie{
		Name:     m.cookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if m.maxAge > 0 {
		cookie.MaxAge = int(m.maxAge.Seconds())
	}

	// Only the latest value of our cookie is sent
	h := w.Header()
	h["Set-Cookie"] = slices.DeleteFunc(h["Set-Cookie"], func(v string) bool {
		return strings.HasPrefix(v, m.cookieName+"=")
	})
	http.SetCookie(w, cookie)
	return nil
}

// Carrier implements tracker.Carrier for one HTTP request.
// User agent and client ip come from the request; session id and user id
// are persisted in the signed cookie.
type Carrier struct {
	m      *Manager
	w      http.ResponseWriter
	mu     sync.Mutex
	values map[string]json.RawMessage
	attrs  tracker.Attributes
}

// Attributes returns the current session attributes
func (c *Carrier) Attributes() tracker.Attributes {
	c.mu.Lock()
	defer c.mu.Unlock()
	attrs := c.attrs
	if attrs.UserID != nil {
		uid := *attrs.UserID
		attrs.UserID = &uid
	}
	return attrs
}

// SetAttributes updates the attributes and rewrites the session cookie.
// It must be called before the response header is written.
func (c *Carrier) SetAttributes(attrs tracker.Attributes) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.attrs.SessionID = attrs.SessionID
	c.attrs.UserID = nil
	if attrs.UserID != nil {
		uid := *attrs.UserID
		c.attrs.UserID = &uid
	}

	raw, err := json.Marshal(tracker.Attributes{SessionID: c.attrs.SessionID, UserID: c.attrs.UserID})
	if err == nil {
		c.values[c.m.sessionKey] = raw
		err = c.m.write(c.w, c.values)
	}
	if err != nil {
		c.m.logger.Error("failed to write session cookie", slog.Any("error", err))
	}
}

type carrierContextKey struct{}

// WithCarrier adds a carrier to the context
func WithCarrier(ctx context.Context, c *Carrier) context.Context {
	return context.WithValue(ctx, carrierContextKey{}, c)
}

// FromContext retrieves the carrier set by Middleware
func FromContext(ctx context.Context) (*Carrier, bool) {
	c, ok := ctx.Value(carrierContextKey{}).(*Carrier)
	return c, ok
}

// MustFromContext retrieves the carrier or panics
func MustFromContext(ctx context.Context) *Carrier {
	c, ok := FromContext(ctx)
	if !ok {
		panic("httpsession: carrier not found in context")
	}
	return c
}
