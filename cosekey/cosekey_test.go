package cosekey_test

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/ldclabs/cose/iana"
	cose_key "github.com/ldclabs/cose/key"
	"github.com/stretchr/testify/require"

	"github.com/splitsecure/go-webauthn-ceremony/cosekey"
	"github.com/splitsecure/go-webauthn-ceremony/mint"
)

func TestVerifyES256(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	verifier, err := cosekey.New(mint.ES256Key(&priv.PublicKey))
	require.NoError(t, err)

	message := []byte("authenticator data and client data hash")
	digest := sha256.Sum256(message)
	sig, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
	require.NoError(t, err)

	require.True(t, verifier.Verify(message, sig))

	tampered := append([]byte{}, message...)
	tampered[0] ^= 0x01
	require.False(t, verifier.Verify(tampered, sig))

	badSig := append([]byte{}, sig...)
	badSig[len(badSig)-1] ^= 0x01
	require.False(t, verifier.Verify(message, badSig))
}

func TestVerifyES384(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)

	k := cose_key.Key{
		iana.KeyParameterKty:    iana.KeyTypeEC2,
		iana.KeyParameterAlg:    iana.AlgorithmES384,
		iana.EC2KeyParameterCrv: iana.EllipticCurveP_384,
		iana.EC2KeyParameterX:   priv.PublicKey.X.Bytes(),
		iana.EC2KeyParameterY:   priv.PublicKey.Y.Bytes(),
	}
	verifier, err := cosekey.New(k)
	require.NoError(t, err)

	message := []byte("es384 message")
	digest := sha512.Sum384(message)
	sig, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
	require.NoError(t, err)

	require.True(t, verifier.Verify(message, sig))
}

func TestVerifyRS256(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	verifier, err := cosekey.New(mint.RS256Key(&priv.PublicKey))
	require.NoError(t, err)

	message := []byte("rs256 message")
	digest := sha256.Sum256(message)
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
	require.NoError(t, err)

	require.True(t, verifier.Verify(message, sig))

	sig[0] ^= 0x01
	require.False(t, verifier.Verify(message, sig))
}

func TestVerifyEdDSA(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	verifier, err := cosekey.New(mint.Ed25519Key(pub))
	require.NoError(t, err)

	message := []byte("eddsa message")
	sig := ed25519.Sign(priv, message)

	require.True(t, verifier.Verify(message, sig))

	sig[0] ^= 0x01
	require.False(t, verifier.Verify(message, sig))
}

func TestUnsupportedAlgorithm(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	k := mint.ES256Key(&priv.PublicKey)
	k[iana.KeyParameterAlg] = iana.AlgorithmPS256

	_, err = cosekey.New(k)
	require.ErrorIs(t, err, cosekey.ErrUnsupportedAlgorithm)
}

func TestCurveAlgorithmMismatch(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	k := mint.ES256Key(&priv.PublicKey)
	k[iana.EC2KeyParameterCrv] = iana.EllipticCurveP_384

	_, err = cosekey.New(k)
	require.ErrorIs(t, err, cosekey.ErrMalformedKey)
}

func TestPointOffCurve(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	k := mint.ES256Key(&priv.PublicKey)
	x := k[iana.EC2KeyParameterX].([]byte)
	x[0] ^= 0xff

	_, err = cosekey.New(k)
	require.ErrorIs(t, err, cosekey.ErrMalformedKey)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := cosekey.Parse([]byte{0xff, 0x00, 0x13})
	require.Error(t, err)
}

func TestParseRoundTrip(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	raw, err := cbor.Marshal(mint.ES256Key(&priv.PublicKey))
	require.NoError(t, err)

	verifier, err := cosekey.Parse(raw)
	require.NoError(t, err)

	message := []byte("round trip")
	digest := sha256.Sum256(message)
	sig, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
	require.NoError(t, err)
	require.True(t, verifier.Verify(message, sig))
}
