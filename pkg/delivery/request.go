package delivery

import (
	"fmt"
	"strings"
)

// RequestType distinguishes page visits from custom events
type RequestType string

const (
	TypeVisit RequestType = "visit"
	TypeEvent RequestType = "event"
)

// AppInfo identifies the application that emits tracking records.
// It is embedded in every outbound payload.
type AppInfo struct {
	Name        string `env:"TRACKER_APP_NAME" yaml:"name"`
	Version     string `env:"TRACKER_APP_VERSION" yaml:"version"`
	Hash        string `env:"TRACKER_APP_HASH" yaml:"hash"`
	Environment string `env:"TRACKER_APP_ENV" envDefault:"development" yaml:"environment"`
}

// Validate checks that the app has a name
func (a AppInfo) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidAppInfo)
	}
	return nil
}

// Request is a single tracking record ready to be delivered
type Request struct {
	Type          RequestType
	Name          string
	Title         string
	ViewSequence  int64
	EventSequence int64
	UserAgent     string
	SessionID     string
	ClientIP      string
	UserID        *string
	// Data is only sent for events
	Data any
}

// GlobalSequence is the sum of the view and event sequences
func (r Request) GlobalSequence() int64 {
	return r.ViewSequence + r.EventSequence
}

// path returns the endpoint suffix for the request type
func (r Request) path() (string, error) {
	switch r.Type {
	case TypeVisit:
		return "/visits", nil
	case TypeEvent:
		return "/events", nil
	default:
		return "", fmt.Errorf("%w: unknown type %q", ErrInvalidRequest, r.Type)
	}
}

// basePayload holds the fields sent for every request type
type basePayload struct {
	Environment    string  `json:"environment"`
	AppName        string  `json:"appName"`
	AppVersion     string  `json:"appVersion"`
	AppHash        string  `json:"appHash"`
	UserAgent      string  `json:"userAgent"`
	SessionID      string  `json:"sessionId"`
	GlobalSequence int64   `json:"globalSequence"`
	Name           string  `json:"name"`
	Title          string  `json:"title"`
	UserID         *string `json:"userId"`
}

type visitPayload struct {
	basePayload
	ViewSequence int64 `json:"viewSequence"`
}

type eventPayload struct {
	basePayload
	EventSequence int64 `json:"eventSequence"`
	Data          any   `json:"data"`
}

// Payload builds the JSON body for the request.
// Visits carry viewSequence, events carry eventSequence and data.
func Payload(app AppInfo, r Request) (any, error) {
	base := basePayload{
		Environment:    app.Environment,
		AppName:        app.Name,
		AppVersion:     app.Version,
		AppHash:        app.Hash,
		UserAgent:      r.UserAgent,
		SessionID:      r.SessionID,
		GlobalSequence: r.GlobalSequence(),
		Name:           r.Name,
		Title:          r.Title,
		UserID:         r.UserID,
	}

	switch r.Type {
	case TypeVisit:
		return visitPayload{basePayload: base, ViewSequence: r.ViewSequence}, nil
	case TypeEvent:
		return eventPayload{basePayload: base, EventSequence: r.EventSequence, Data: r.Data}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidRequest, r.Type)
	}
}
