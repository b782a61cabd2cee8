package attestation

import (
	"crypto/x509"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"github.com/splitsecure/go-webauthn-ceremony/cosekey"
)

// PackedStatement is the decoded "packed" attestation statement.
// https://www.w3.org/TR/webauthn/#sctn-packed-attestation
type PackedStatement struct {
	Alg int      `cbor:"alg"`
	Sig []byte   `cbor:"sig"`
	X5C [][]byte `cbor:"x5c"`
}

// VerifyPackedInput carries everything needed to check a packed statement.
type VerifyPackedInput struct {
	Object *Object

	// Message is authData || SHA256(clientDataJSON), the exact bytes the
	// statement signs.
	Message []byte

	// CredentialVerifier verifies self-attested statements, which are
	// signed by the credential key itself.
	CredentialVerifier *cosekey.Verifier

	// Roots anchor certificate chains carried in x5c. Required for
	// statements that are not self-attested.
	Roots []*x509.Certificate

	Time time.Time
}

// VerifyPacked checks a packed attestation statement: self-attested
// statements must verify under the credential key with a matching
// algorithm; statements with a certificate chain must verify under the
// leaf certificate, and the chain must validate against the roots.
func VerifyPacked(in *VerifyPackedInput) error {
	if in.Object.Format != FormatPacked {
		return errors.Errorf("statement format is %q, not %q", in.Object.Format, FormatPacked)
	}

	stmt := PackedStatement{}
	if err := cbor.Unmarshal(in.Object.Statement, &stmt); err != nil {
		return errors.Wrap(err, "unmarshalling packed statement")
	}
	if stmt.Alg == 0 {
		return errors.New("packed statement declares no algorithm")
	}
	if len(stmt.Sig) == 0 {
		return errors.New("packed statement carries no signature")
	}

	if len(stmt.X5C) == 0 {
		// Self attestation: signed with the credential private key.
		if stmt.Alg != in.CredentialVerifier.Algorithm() {
			return errors.Errorf("self-attested alg %d does not match credential alg %d", stmt.Alg, in.CredentialVerifier.Algorithm())
		}
		if !in.CredentialVerifier.Verify(in.Message, stmt.Sig) {
			return errors.New("self-attested signature did not verify")
		}
		return nil
	}

	chain := make([]*x509.Certificate, 0, len(stmt.X5C))
	for i, der := range stmt.X5C {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return errors.Wrapf(err, "parsing certificate at index %d", i)
		}
		chain = append(chain, cert)
	}

	if err := cosekey.VerifySignature(chain[0].PublicKey, stmt.Alg, in.Message, stmt.Sig); err != nil {
		return errors.Wrap(err, "verifying statement signature with leaf certificate")
	}

	if err := VerifyChain(chain, in.Roots, in.Time); err != nil {
		return errors.Wrap(err, "verifying certificate chain")
	}
	return nil
}
