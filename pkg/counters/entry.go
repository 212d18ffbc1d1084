package counters

import "time"

// Kind selects which counter of an entry is incremented
type Kind string

const (
	View  Kind = "view"
	Event Kind = "event"
)

// Valid reports whether k is a known counter kind
func (k Kind) Valid() bool {
	return k == View || k == Event
}

// Entry holds the counters of a single session
type Entry struct {
	ViewSequence  int64 `json:"view_sequence"`
	EventSequence int64 `json:"event_sequence"`
	// LastModified is the unix time of the last create or increment
	LastModified int64 `json:"last_modified"`
}

// GlobalSequence is the sum of both counters
func (e Entry) GlobalSequence() int64 {
	return e.ViewSequence + e.EventSequence
}

// Expired reports whether the entry was last modified more than maxAge before now
func (e Entry) Expired(now time.Time, maxAge time.Duration) bool {
	return e.LastModified+int64(maxAge/time.Second) < now.Unix()
}

func (e *Entry) bump(kind Kind, now time.Time) {
	switch kind {
	case View:
		e.ViewSequence++
	case Event:
		e.EventSequence++
	}
	e.LastModified = now.Unix()
}
