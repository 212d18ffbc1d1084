package tracker

import (
	"sync"

	"github.com/google/uuid"
)

// Attributes are the caller owned session attributes sent with every record.
// The tracker never stores them; it reads them from a Carrier on each call.
type Attributes struct {
	SessionID string  `json:"sid"`
	UserID    *string `json:"uid,omitempty"`
	UserAgent string  `json:"-"`
	ClientIP  string  `json:"-"`
}

func (a Attributes) clone() Attributes {
	if a.UserID != nil {
		uid := *a.UserID
		a.UserID = &uid
	}
	return a
}

// Carrier gives the tracker access to the session attributes of one client,
// whatever holds them: a cookie, a websocket assign, a CLI flag set.
type Carrier interface {
	// Attributes returns the current session attributes
	Attributes() Attributes

	// SetAttributes replaces the stored session attributes
	SetAttributes(attrs Attributes)
}

// MapCarrier is an in-memory Carrier, safe for concurrent use
type MapCarrier struct {
	mu    sync.RWMutex
	attrs Attributes
}

// NewCarrier returns a MapCarrier holding attrs
func NewCarrier(attrs Attributes) *MapCarrier {
	return &MapCarrier{attrs: attrs.clone()}
}

func (c *MapCarrier) Attributes() Attributes {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.attrs.clone()
}

func (c *MapCarrier) SetAttributes(attrs Attributes) {
	c.mu.Lock()
	c.attrs = attrs.clone()
	c.mu.Unlock()
}

// NewSessionID returns a random 128 bit session id in UUID text form
func NewSessionID() string {
	return uuid.NewString()
}
