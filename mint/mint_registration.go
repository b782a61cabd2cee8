// Package mint fabricates WebAuthn registration and authentication
// responses so ceremonies can be exercised end to end without a physical
// authenticator.
package mint

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/json"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"github.com/splitsecure/go-webauthn-ceremony/authenticatordata"
	"github.com/splitsecure/go-webauthn-ceremony/ceremony"
	"github.com/splitsecure/go-webauthn-ceremony/codec"
)

// PackedOptions turns the minted attestation into a "packed" statement.
type PackedOptions struct {
	// SelfAttested signs the statement with the credential key itself.
	// Otherwise IssuerCertificate/IssuerKey mint an attestation leaf
	// certificate for a fresh attestation key.
	SelfAttested bool

	IssuerCertificate *x509.Certificate
	IssuerKey         *ecdsa.PrivateKey
	IntermediatesDER  [][]byte

	NotBefore time.Time
	NotAfter  time.Time
}

type RegistrationInput struct {
	Key          *ecdsa.PrivateKey
	RPID         string
	Origin       string
	Challenge    []byte
	CredentialID []byte
	AAGUID       []byte
	SignCount    uint32

	UserPresent  bool
	UserVerified bool

	// Packed, when set, produces a packed attestation statement instead
	// of format "none".
	Packed *PackedOptions
}

type RegistrationOutput struct {
	Response ceremony.RegistrationResponse
	AuthData []byte
}

type attestationObject struct {
	Format    string          `cbor:"fmt"`
	Statement cbor.RawMessage `cbor:"attStmt"`
	AuthData  []byte          `cbor:"authData"`
}

type packedStatement struct {
	Alg int      `cbor:"alg"`
	Sig []byte   `cbor:"sig"`
	X5C [][]byte `cbor:"x5c,omitempty"`
}

// GenerateRegistration builds a credential creation response for the given
// ES256 key, shaped exactly as a browser would serialize it.
func GenerateRegistration(in *RegistrationInput) (RegistrationOutput, error) {
	aaguid := in.AAGUID
	if aaguid == nil {
		aaguid = make([]byte, 16)
	}

	flags := authenticatordata.ADF_HAS_ATTESTED_CREDENTIAL_DATA
	if in.UserPresent {
		flags |= authenticatordata.ADF_USER_PRESENT
	}
	if in.UserVerified {
		flags |= authenticatordata.ADF_USER_VERIFIED
	}

	rpIDHash := sha256.Sum256([]byte(in.RPID))
	ad := authenticatordata.T{
		RPIDHash:  rpIDHash[:],
		Flags:     flags,
		SignCount: in.SignCount,
		AttestedCredentialData: authenticatordata.AttestedCredentialData{
			AAGUID:              aaguid,
			CredentialID:        in.CredentialID,
			CredentialPublicKey: ES256Key(&in.Key.PublicKey),
		},
	}
	authData, err := authenticatordata.Marshal(&ad)
	if err != nil {
		return RegistrationOutput{}, errors.Wrap(err, "marshalling authenticator data")
	}

	clientDataJSON, err := clientData("webauthn.create", in.Challenge, in.Origin)
	if err != nil {
		return RegistrationOutput{}, err
	}

	obj := attestationObject{Format: "none", AuthData: authData}
	obj.Statement, err = cbor.Marshal(map[string]any{})
	if err != nil {
		return RegistrationOutput{}, errors.Wrap(err, "encoding empty statement")
	}

	if in.Packed != nil {
		obj.Format = "packed"
		obj.Statement, err = packedStatementFor(in, authData, clientDataJSON)
		if err != nil {
			return RegistrationOutput{}, err
		}
	}

	rawObject, err := cbor.Marshal(&obj)
	if err != nil {
		return RegistrationOutput{}, errors.Wrap(err, "encoding attestation object")
	}

	id := codec.Encode(in.CredentialID)
	return RegistrationOutput{
		Response: ceremony.RegistrationResponse{
			ID:    id,
			RawID: id,
			Type:  "public-key",
			Response: ceremony.AttestationResponse{
				ClientDataJSON:    codec.Encode(clientDataJSON),
				AttestationObject: codec.Encode(rawObject),
			},
		},
		AuthData: authData,
	}, nil
}

func packedStatementFor(in *RegistrationInput, authData, clientDataJSON []byte) (cbor.RawMessage, error) {
	clientDataHash := sha256.Sum256(clientDataJSON)
	message := append(append([]byte{}, authData...), clientDataHash[:]...)
	digest := sha256.Sum256(message)

	stmt := packedStatement{Alg: -7} // ES256

	if in.Packed.SelfAttested {
		sig, err := ecdsa.SignASN1(rand.Reader, in.Key, digest[:])
		if err != nil {
			return nil, errors.Wrap(err, "signing self-attested statement")
		}
		stmt.Sig = sig
	} else {
		leafDER, leafKey, err := AttestationLeaf(in.Packed)
		if err != nil {
			return nil, err
		}
		sig, err := ecdsa.SignASN1(rand.Reader, leafKey, digest[:])
		if err != nil {
			return nil, errors.Wrap(err, "signing packed statement")
		}
		stmt.Sig = sig
		stmt.X5C = append([][]byte{leafDER}, in.Packed.IntermediatesDER...)
	}

	out, err := cbor.Marshal(&stmt)
	return out, errors.Wrap(err, "encoding packed statement")
}

func clientData(typ string, challenge []byte, origin string) ([]byte, error) {
	out, err := json.Marshal(map[string]any{
		"type":        typ,
		"challenge":   codec.Encode(challenge),
		"origin":      origin,
		"crossOrigin": false,
	})
	return out, errors.Wrap(err, "encoding client data")
}
