package authenticatordata

import (
	"encoding/binary"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

// Marshal encodes authenticator data back into its wire layout. The mint
// package uses it to fabricate authenticator responses for tests; real
// verification never needs it.
func Marshal(src *T) ([]byte, error) {
	if len(src.RPIDHash) != 32 {
		return nil, errors.Errorf("rp id hash must be 32 bytes, got %d", len(src.RPIDHash))
	}

	out := make([]byte, 0, baseLength)
	out = append(out, src.RPIDHash...)
	out = append(out, src.Flags)
	out = binary.BigEndian.AppendUint32(out, src.SignCount)

	if src.Flags&ADF_HAS_ATTESTED_CREDENTIAL_DATA == 0 {
		return out, nil
	}

	acd := &src.AttestedCredentialData
	if len(acd.AAGUID) != 16 {
		return nil, errors.Errorf("aaguid must be 16 bytes, got %d", len(acd.AAGUID))
	}
	if len(acd.CredentialID) > 0xffff {
		return nil, errors.Errorf("credential id of %d bytes does not fit", len(acd.CredentialID))
	}

	out = append(out, acd.AAGUID...)
	out = binary.BigEndian.AppendUint16(out, uint16(len(acd.CredentialID)))
	out = append(out, acd.CredentialID...)

	keyBytes := acd.RawCredentialPublicKey
	if keyBytes == nil {
		var err error
		keyBytes, err = cbor.Marshal(acd.CredentialPublicKey)
		if err != nil {
			return nil, errors.Wrap(err, "encoding credential public key")
		}
	}
	out = append(out, keyBytes...)

	return out, nil
}
