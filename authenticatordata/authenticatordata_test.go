package authenticatordata_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/splitsecure/go-webauthn-ceremony/authenticatordata"
	"github.com/splitsecure/go-webauthn-ceremony/mint"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	rpIDHash := sha256.Sum256([]byte("example.com"))
	src := authenticatordata.T{
		RPIDHash: rpIDHash[:],
		Flags: authenticatordata.ADF_USER_PRESENT |
			authenticatordata.ADF_USER_VERIFIED |
			authenticatordata.ADF_HAS_ATTESTED_CREDENTIAL_DATA,
		SignCount: 42,
		AttestedCredentialData: authenticatordata.AttestedCredentialData{
			AAGUID:              make([]byte, 16),
			CredentialID:        []byte("credential-one"),
			CredentialPublicKey: mint.ES256Key(&priv.PublicKey),
		},
	}

	wire, err := authenticatordata.Marshal(&src)
	require.NoError(t, err)

	var dst authenticatordata.T
	require.NoError(t, authenticatordata.Unmarshal(wire, &dst))

	require.Equal(t, src.RPIDHash, dst.RPIDHash)
	require.Equal(t, src.Flags, dst.Flags)
	require.Equal(t, src.SignCount, dst.SignCount)
	require.True(t, dst.UserPresent())
	require.True(t, dst.UserVerified())
	require.True(t, dst.HasAttestedCredentialData())
	require.Equal(t, src.AttestedCredentialData.AAGUID, dst.AttestedCredentialData.AAGUID)
	require.Equal(t, src.AttestedCredentialData.CredentialID, dst.AttestedCredentialData.CredentialID)
	require.NotEmpty(t, dst.AttestedCredentialData.RawCredentialPublicKey)
}

func TestUnmarshalBaseOnly(t *testing.T) {
	rpIDHash := sha256.Sum256([]byte("example.com"))
	src := authenticatordata.T{
		RPIDHash:  rpIDHash[:],
		Flags:     authenticatordata.ADF_USER_PRESENT,
		SignCount: 7,
	}
	wire, err := authenticatordata.Marshal(&src)
	require.NoError(t, err)
	require.Len(t, wire, 37)

	var dst authenticatordata.T
	require.NoError(t, authenticatordata.UnmarshalBase(wire, &dst))
	require.Equal(t, uint32(7), dst.SignCount)
	require.True(t, dst.UserPresent())
	require.False(t, dst.UserVerified())
}

func TestUnmarshalTruncated(t *testing.T) {
	var dst authenticatordata.T
	err := authenticatordata.Unmarshal(make([]byte, 36), &dst)
	require.ErrorIs(t, err, authenticatordata.ErrTruncated)
}

func TestUnmarshalTruncatedCredentialID(t *testing.T) {
	// Base fields plus a header that claims a longer credential id than
	// the input carries.
	wire := make([]byte, 37)
	wire[32] = authenticatordata.ADF_HAS_ATTESTED_CREDENTIAL_DATA
	wire = append(wire, make([]byte, 16)...) // aaguid
	wire = append(wire, 0xff, 0xff)          // credential id length
	wire = append(wire, 0x01)

	var dst authenticatordata.T
	err := authenticatordata.Unmarshal(wire, &dst)
	require.ErrorIs(t, err, authenticatordata.ErrTruncated)
}

func TestUnmarshalTruncatedAttestedHeader(t *testing.T) {
	wire := make([]byte, 37)
	wire[32] = authenticatordata.ADF_HAS_ATTESTED_CREDENTIAL_DATA
	wire = append(wire, make([]byte, 10)...)

	var dst authenticatordata.T
	err := authenticatordata.Unmarshal(wire, &dst)
	require.ErrorIs(t, err, authenticatordata.ErrTruncated)
}

func TestMarshalRejectsBadRPIDHash(t *testing.T) {
	_, err := authenticatordata.Marshal(&authenticatordata.T{RPIDHash: []byte("short")})
	require.Error(t, err)
}
