// Package codec implements the base64url encoding used for every binary
// field that crosses the ceremony boundary: challenges, credential IDs,
// public keys, authenticator data, client data JSON, and signatures.
//
// The encoding is the padding-free URL-safe alphabet mandated by the
// WebAuthn wire format: standard base64 with '+' -> '-', '/' -> '_', and
// trailing '=' stripped.
package codec

import (
	"encoding/base64"

	"github.com/pkg/errors"
)

// ErrMalformedEncoding reports text that is not valid padding-free
// base64url: an invalid character or an impossible residual length.
var ErrMalformedEncoding = errors.New("codec: malformed base64url encoding")

// Encode returns the padding-free base64url text for b. The output never
// contains '+', '/', or '='.
func Encode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// Decode is the inverse of Encode. It fails with ErrMalformedEncoding on
// invalid characters or an incorrect residual length.
func Decode(s string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedEncoding, err.Error())
	}
	return b, nil
}
