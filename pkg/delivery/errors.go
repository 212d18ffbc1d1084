package delivery

import "errors"

// Delivery errors. Transport and status failures are retried; the final
// failure is reported wrapped in ErrDeliveryFailed.
var (
	ErrDeliveryFailed   = errors.New("tracking delivery failed")
	ErrUnexpectedStatus = errors.New("unexpected response status")
	ErrInvalidRequest   = errors.New("invalid tracking request")
	ErrInvalidEndpoint  = errors.New("invalid tracking endpoint")
	ErrInvalidAppInfo   = errors.New("invalid app info")
)
