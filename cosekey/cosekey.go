// Package cosekey turns a COSE-encoded public key into a signature
// verifier for the algorithms WebAuthn authenticators commonly use.
package cosekey

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"

	"github.com/fxamacker/cbor/v2"
	"github.com/ldclabs/cose/iana"
	cose_key "github.com/ldclabs/cose/key"
	"github.com/pkg/errors"
)

// ErrUnsupportedAlgorithm reports a COSE algorithm identifier outside the
// supported set.
var ErrUnsupportedAlgorithm = errors.New("cosekey: unsupported algorithm")

// ErrMalformedKey reports a COSE key whose material cannot be extracted.
var ErrMalformedKey = errors.New("cosekey: malformed key")

// Verifier holds a parsed public key plus its declared algorithm and
// verifies signatures the way WebAuthn frames them: an ASN.1 DER ECDSA
// signature, a PKCS#1 v1.5 RSA signature, or a raw Ed25519 signature,
// always over the exact message bytes the caller supplies.
type Verifier struct {
	alg    int
	public crypto.PublicKey
}

// New builds a Verifier from an already-decoded COSE key. It fails with
// ErrUnsupportedAlgorithm for algorithms outside ES256/ES384/ES512/RS256/
// EdDSA and with ErrMalformedKey when key material is missing or does not
// match the declared algorithm.
func New(k cose_key.Key) (*Verifier, error) {
	alg, err := k.GetInt(iana.KeyParameterAlg)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedKey, "missing algorithm")
	}

	var pub crypto.PublicKey
	switch alg {
	case iana.AlgorithmES256, iana.AlgorithmES384, iana.AlgorithmES512:
		pub, err = ecdsaPublic(k, alg)
	case iana.AlgorithmRS256:
		pub, err = rsaPublic(k)
	case iana.AlgorithmEdDSA:
		pub, err = ed25519Public(k)
	default:
		return nil, errors.Wrapf(ErrUnsupportedAlgorithm, "alg %d", alg)
	}
	if err != nil {
		return nil, err
	}
	return &Verifier{alg: alg, public: pub}, nil
}

// Parse decodes a CBOR-encoded COSE key and builds a Verifier from it.
func Parse(raw []byte) (*Verifier, error) {
	var k cose_key.Key
	if err := cbor.Unmarshal(raw, &k); err != nil {
		return nil, errors.Wrap(ErrMalformedKey, err.Error())
	}
	return New(k)
}

// Algorithm returns the COSE algorithm identifier the key declared.
func (v *Verifier) Algorithm() int {
	return v.alg
}

// Public returns the parsed public key.
func (v *Verifier) Public() crypto.PublicKey {
	return v.public
}

// Verify reports whether signature is cryptographically valid for message
// under the verifier's key. Malformed signatures yield false, never an
// error.
func (v *Verifier) Verify(message, signature []byte) bool {
	return VerifySignature(v.public, v.alg, message, signature) == nil
}

// VerifySignature checks a signature over message for an arbitrary public
// key and COSE algorithm pair. The attestation package uses it to check
// packed statements signed by attestation certificates rather than by the
// credential key.
func VerifySignature(pub crypto.PublicKey, alg int, message, signature []byte) error {
	var digest []byte
	switch alg {
	case iana.AlgorithmES256:
		d := sha256.Sum256(message)
		digest = d[:]
	case iana.AlgorithmES384:
		d := sha512.Sum384(message)
		digest = d[:]
	case iana.AlgorithmES512:
		d := sha512.Sum512(message)
		digest = d[:]
	case iana.AlgorithmRS256:
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return errors.Errorf("RS256 requires an RSA key, got %T", pub)
		}
		d := sha256.Sum256(message)
		if err := rsa.VerifyPKCS1v15(rsaPub, crypto.SHA256, d[:], signature); err != nil {
			return errors.New("invalid RS256 signature")
		}
		return nil
	case iana.AlgorithmEdDSA:
		edPub, ok := pub.(ed25519.PublicKey)
		if !ok {
			return errors.Errorf("EdDSA requires an Ed25519 key, got %T", pub)
		}
		if !ed25519.Verify(edPub, message, signature) {
			return errors.New("invalid EdDSA signature")
		}
		return nil
	default:
		return errors.Wrapf(ErrUnsupportedAlgorithm, "alg %d", alg)
	}

	ecdsaPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return errors.Errorf("ECDSA algorithm %d requires an EC key, got %T", alg, pub)
	}
	if !ecdsa.VerifyASN1(ecdsaPub, digest, signature) {
		return errors.New("invalid ECDSA signature")
	}
	return nil
}
