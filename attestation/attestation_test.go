package attestation_test

import (
	"crypto/x509"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"

	"github.com/splitsecure/go-webauthn-ceremony/attestation"
	"github.com/splitsecure/go-webauthn-ceremony/mint"
)

func TestParse(t *testing.T) {
	raw, err := cbor.Marshal(map[string]any{
		"fmt":      "none",
		"attStmt":  map[string]any{},
		"authData": []byte{0x01, 0x02},
	})
	require.NoError(t, err)

	obj, err := attestation.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, attestation.FormatNone, obj.Format)
	require.Equal(t, []byte{0x01, 0x02}, obj.AuthData)
}

func TestParseRejectsMissingFormat(t *testing.T) {
	raw, err := cbor.Marshal(map[string]any{
		"attStmt":  map[string]any{},
		"authData": []byte{0x01},
	})
	require.NoError(t, err)

	_, err = attestation.Parse(raw)
	require.Error(t, err)
}

func TestParseRejectsMissingAuthData(t *testing.T) {
	raw, err := cbor.Marshal(map[string]any{
		"fmt":     "none",
		"attStmt": map[string]any{},
	})
	require.NoError(t, err)

	_, err = attestation.Parse(raw)
	require.Error(t, err)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := attestation.Parse([]byte{0xff, 0x13})
	require.Error(t, err)
}

func TestVerifyChain(t *testing.T) {
	mc, err := mint.NewMintContext()
	require.NoError(t, err)
	caCert, err := mc.CACert()
	require.NoError(t, err)
	intCert, err := mc.IntCert()
	require.NoError(t, err)

	leafDER, _, err := mint.AttestationLeaf(&mint.PackedOptions{
		IssuerCertificate: intCert,
		IssuerKey:         mc.IntKey,
	})
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(leafDER)
	require.NoError(t, err)

	now := time.Now()

	t.Run("valid chain", func(t *testing.T) {
		err := attestation.VerifyChain([]*x509.Certificate{leaf, intCert}, []*x509.Certificate{caCert}, now)
		require.NoError(t, err)
	})

	t.Run("unknown root", func(t *testing.T) {
		other, err := mint.NewMintContext()
		require.NoError(t, err)
		otherCA, err := other.CACert()
		require.NoError(t, err)

		err = attestation.VerifyChain([]*x509.Certificate{leaf, intCert}, []*x509.Certificate{otherCA}, now)
		require.Error(t, err)
	})

	t.Run("empty chain", func(t *testing.T) {
		err := attestation.VerifyChain(nil, []*x509.Certificate{caCert}, now)
		require.Error(t, err)
	})

	t.Run("no roots", func(t *testing.T) {
		err := attestation.VerifyChain([]*x509.Certificate{leaf, intCert}, nil, now)
		require.Error(t, err)
	})

	t.Run("outside validity window", func(t *testing.T) {
		err := attestation.VerifyChain([]*x509.Certificate{leaf, intCert}, []*x509.Certificate{caCert}, now.Add(48*time.Hour))
		require.Error(t, err)
	})

	t.Run("leaf cannot act as CA", func(t *testing.T) {
		err := attestation.VerifyChain([]*x509.Certificate{intCert, leaf}, []*x509.Certificate{caCert}, now)
		require.Error(t, err)
	})
}
