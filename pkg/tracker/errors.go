package tracker

import "errors"

var (
	// ErrConfig indicates the tracker cannot start with the given configuration.
	// It is always joined with one of the more specific errors below.
	ErrConfig = errors.New("tracker.config")

	ErrMissingAppInfo  = errors.New("tracker.missing_app_info")
	ErrMissingEndpoint = errors.New("tracker.missing_endpoint")
	ErrInvalidEndpoint = errors.New("tracker.invalid_endpoint")

	// ErrClosed is returned by tracking calls made after Close
	ErrClosed = errors.New("tracker.closed")
)
