package httpsession

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

const minSecretLength = 32

// codec signs and verifies cookie payloads with HMAC-SHA256.
// The first secret signs; all secrets verify, which allows key rotation.
type codec struct {
	secrets [][]byte
}

func newCodec(secrets []string) (*codec, error) {
	secrets = slices.DeleteFunc(slices.Clone(secrets), func(s string) bool { return s == "" })
	if len(secrets) == 0 {
		return nil, ErrNoSecret
	}

	c := &codec{secrets: make([][]byte, 0, len(secrets))}
	for i, s := range secrets {
		if len(s) < minSecretLength {
			return nil, fmt.Errorf("%w: secret %d has %d chars, need at least %d", ErrSecretTooShort, i, len(s), minSecretLength)
		}
		c.secrets = append(c.secrets, []byte(s))
	}
	return c, nil
}

// encode returns base64(json(v)) + "." + base64(hmac)
func (c *codec) encode(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal cookie payload: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data) + "." +
		base64.RawURLEncoding.EncodeToString(c.mac(c.secrets[0], data)), nil
}

// decode verifies the signature and unmarshals the payload into v
func (c *codec) decode(value string, v any) error {
	encoded, sig, ok := strings.Cut(value, ".")
	if !ok {
		return ErrInvalidFormat
	}

	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return ErrInvalidFormat
	}
	gotSig, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return ErrInvalidFormat
	}

	for _, secret := range c.secrets {
		if subtle.ConstantTimeCompare(gotSig, c.mac(secret, data)) == 1 {
			if err := json.Unmarshal(data, v); err != nil {
				return ErrInvalidFormat
			}
			return nil
		}
	}
	return ErrInvalidSignature
}

func (c *codec) mac(secret, data []byte) []byte {
	m := hmac.New(sha256.New, secret)
	m.Write(data)
	return m.Sum(nil)
}
