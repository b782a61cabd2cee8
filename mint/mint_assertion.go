package mint

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"

	"github.com/pkg/errors"

	"github.com/splitsecure/go-webauthn-ceremony/authenticatordata"
	"github.com/splitsecure/go-webauthn-ceremony/ceremony"
	"github.com/splitsecure/go-webauthn-ceremony/codec"
)

type AssertionInput struct {
	Key          *ecdsa.PrivateKey
	RPID         string
	Origin       string
	Challenge    []byte
	CredentialID []byte
	UserHandle   []byte
	SignCount    uint32

	UserPresent  bool
	UserVerified bool
}

type AssertionOutput struct {
	Response ceremony.AuthenticationResponse
}

// GenerateAssertion builds an authentication response signed with the
// credential key over authenticatorData || SHA256(clientDataJSON).
func GenerateAssertion(in *AssertionInput) (AssertionOutput, error) {
	var flags byte
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
	}
	authData, err := authenticatordata.Marshal(&ad)
	if err != nil {
		return AssertionOutput{}, errors.Wrap(err, "marshalling authenticator data")
	}

	clientDataJSON, err := clientData("webauthn.get", in.Challenge, in.Origin)
	if err != nil {
		return AssertionOutput{}, err
	}

	clientDataHash := sha256.Sum256(clientDataJSON)
	message := append(append([]byte{}, authData...), clientDataHash[:]...)
	digest := sha256.Sum256(message)

	sig, err := ecdsa.SignASN1(rand.Reader, in.Key, digest[:])
	if err != nil {
		return AssertionOutput{}, errors.Wrap(err, "signing assertion")
	}

	id := codec.Encode(in.CredentialID)
	out := ceremony.AuthenticationResponse{
		ID:    id,
		RawID: id,
		Type:  "public-key",
		Response: ceremony.AssertionResponse{
			ClientDataJSON:    codec.Encode(clientDataJSON),
			AuthenticatorData: codec.Encode(authData),
			Signature:         codec.Encode(sig),
		},
	}
	if len(in.UserHandle) > 0 {
		out.Response.UserHandle = codec.Encode(in.UserHandle)
	}
	return AssertionOutput{Response: out}, nil
}
