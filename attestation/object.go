// Package attestation parses WebAuthn attestation objects and, as an
// optional add-on beyond the attestation=none policy, verifies "packed"
// attestation statements.
package attestation

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

// Statement formats this package recognizes.
const (
	FormatNone   = "none"
	FormatPacked = "packed"
)

// Object is the CBOR attestation object carried in a registration
// response. https://www.w3.org/TR/webauthn/#sctn-attestation
type Object struct {
	Format    string          `cbor:"fmt"`
	Statement cbor.RawMessage `cbor:"attStmt"`
	AuthData  []byte          `cbor:"authData"`
}

// Parse decodes an attestation object and checks format well-formedness:
// a declared format and non-empty authenticator data. It does not verify
// any attestation statement.
func Parse(raw []byte) (*Object, error) {
	obj := Object{}
	if err := cbor.Unmarshal(raw, &obj); err != nil {
		return nil, errors.Wrap(err, "unmarshalling attestation object")
	}
	if obj.Format == "" {
		return nil, errors.New("attestation object has no format")
	}
	if len(obj.AuthData) == 0 {
		return nil, errors.New("attestation object has no authenticator data")
	}
	return &obj, nil
}
