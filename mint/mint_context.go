package mint

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"time"

	"github.com/pkg/errors"
)

// MintContext holds a throwaway attestation CA hierarchy for exercising
// packed attestation chains in tests.
type MintContext struct {
	CAKey     *ecdsa.PrivateKey
	CACertDER []byte

	IntKey     *ecdsa.PrivateKey
	IntCertDER []byte
}

func NewMintContext() (*MintContext, error) {
	cader, capriv, err := generateCACert("SplitSecure WebAuthn Dev/Mock CA")
	if err != nil {
		return nil, err
	}

	intder, intpriv, err := generateIntermediateCert("SplitSecure WebAuthn Dev/Mock Intermediate", cader, capriv)
	if err != nil {
		return nil, err
	}

	return &MintContext{
		CAKey:     capriv,
		CACertDER: cader,

		IntKey:     intpriv,
		IntCertDER: intder,
	}, nil
}

// CACert parses and returns the root certificate.
func (mc *MintContext) CACert() (*x509.Certificate, error) {
	return x509.ParseCertificate(mc.CACertDER)
}

// IntCert parses and returns the intermediate certificate.
func (mc *MintContext) IntCert() (*x509.Certificate, error) {
	return x509.ParseCertificate(mc.IntCertDER)
}

func generateCACert(commonName string) ([]byte, *ecdsa.PrivateKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().AddDate(50, 0, 0),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLen:            2,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, nil, err
	}
	return certDER, key, nil
}

func generateIntermediateCert(commonName string, parentCertDER []byte, parentKey *ecdsa.PrivateKey) ([]byte, *ecdsa.PrivateKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	parentCert, err := x509.ParseCertificate(parentCertDER)
	if err != nil {
		return nil, nil, err
	}

	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().AddDate(49, 0, 0),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLen:            1,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, parentCert, &key.PublicKey, parentKey)
	if err != nil {
		return nil, nil, err
	}
	return certDER, key, nil
}

// AttestationLeaf mints a fresh attestation key and a leaf certificate
// for it, signed by the issuer in opts.
func AttestationLeaf(opts *PackedOptions) ([]byte, *ecdsa.PrivateKey, error) {
	if opts.IssuerCertificate == nil || opts.IssuerKey == nil {
		return nil, nil, errors.New("packed attestation with x5c needs an issuer certificate and key")
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	notBefore := opts.NotBefore
	notAfter := opts.NotAfter
	if notBefore.IsZero() {
		notBefore = time.Now().Add(-time.Hour)
	}
	if notAfter.IsZero() {
		notAfter = time.Now().Add(time.Hour)
	}

	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "mock attestation leaf"},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, opts.IssuerCertificate, &key.PublicKey, opts.IssuerKey)
	if err != nil {
		return nil, nil, errors.Wrap(err, "minting attestation leaf")
	}
	return certDER, key, nil
}
