package authenticatordata

import (
	"bytes"
	"encoding/binary"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

// ErrTruncated reports authenticator data shorter than its layout requires.
var ErrTruncated = errors.New("authenticatordata: truncated input")

const baseLength = 32 + 1 + 4 // rpIdHash || flags || signCount

// Unmarshal unmarshals authenticator data
// according to https://www.w3.org/TR/webauthn/#sctn-authenticator-data
func Unmarshal(src []byte, dst *T) error {
	rest, err := unmarshalBase(src, dst)
	if err != nil {
		return err
	}
	if dst.Flags&ADF_HAS_ATTESTED_CREDENTIAL_DATA != 0 {
		if _, err := UnmarshalAttestedCredentialData(rest, &dst.AttestedCredentialData); err != nil {
			return err
		}
	}

	// ignoring extensions
	return nil
}

// UnmarshalBase unmarshals only the fixed leading fields (RP-ID hash,
// flags, sign count). Authentication assertions carry no attested
// credential data, so this is all an assertion needs.
func UnmarshalBase(src []byte, dst *T) error {
	_, err := unmarshalBase(src, dst)
	return err
}

func unmarshalBase(src []byte, dst *T) (rest []byte, err error) {
	if len(src) < baseLength {
		return nil, errors.Wrapf(ErrTruncated, "need %d bytes, got %d", baseLength, len(src))
	}

	cursor := src

	dst.RPIDHash = cursor[0:32]
	cursor = cursor[32:]

	dst.Flags = cursor[0]
	cursor = cursor[1:]

	dst.SignCount = binary.BigEndian.Uint32(cursor)
	cursor = cursor[4:]

	return cursor, nil
}

func UnmarshalAttestedCredentialData(src []byte, dst *AttestedCredentialData) (rest []byte, err error) {
	if len(src) < 18 {
		return nil, errors.Wrap(ErrTruncated, "attested credential data header")
	}

	dst.AAGUID = src[0:16]

	credLen := int(binary.BigEndian.Uint16(src[16:18]))
	if len(src) < 18+credLen {
		return nil, errors.Wrapf(ErrTruncated, "credential id of %d bytes", credLen)
	}
	dst.CredentialID = src[18 : 18+credLen]

	keyStart := 18 + credLen
	dec := cbor.NewDecoder(bytes.NewReader(src[keyStart:]))

	if err := dec.Decode(&dst.CredentialPublicKey); err != nil {
		return nil, errors.Wrap(err, "decoding credential public key")
	}
	dst.RawCredentialPublicKey = src[keyStart : keyStart+dec.NumBytesRead()]

	return src[keyStart+dec.NumBytesRead():], nil
}
