package httpsession

import "errors"

var (
	ErrNoSecret         = errors.New("httpsession.no_secret")
	ErrSecretTooShort   = errors.New("httpsession.secret_too_short")
	ErrInvalidFormat    = errors.New("httpsession.invalid_format")
	ErrInvalidSignature = errors.New("httpsession.invalid_signature")
	ErrNoCarrier        = errors.New("httpsession.no_carrier_in_context")
)
