package ceremony

import (
	"crypto/subtle"
	"encoding/json"

	"github.com/splitsecure/go-webauthn-ceremony/codec"
)

// Wire structures for authenticator responses, shaped after the
// PublicKeyCredential JSON serialization browsers produce.

// RegistrationResponse is the credential creation response submitted to
// FinishRegistration.
type RegistrationResponse struct {
	ID       string              `json:"id"`
	RawID    string              `json:"rawId"`
	Type     string              `json:"type"`
	Response AttestationResponse `json:"response"`
}

type AttestationResponse struct {
	ClientDataJSON    string `json:"clientDataJSON"`
	AttestationObject string `json:"attestationObject"`
}

// AuthenticationResponse is the assertion response submitted to
// FinishAuthentication.
type AuthenticationResponse struct {
	ID       string            `json:"id"`
	RawID    string            `json:"rawId"`
	Type     string            `json:"type"`
	Response AssertionResponse `json:"response"`
}

type AssertionResponse struct {
	ClientDataJSON    string `json:"clientDataJSON"`
	AuthenticatorData string `json:"authenticatorData"`
	Signature         string `json:"signature"`
	UserHandle        string `json:"userHandle,omitempty"`
}

// collectedClientData is the contextual binding the client serialized into
// clientDataJSON. https://www.w3.org/TR/webauthn/#dictionary-client-data
type collectedClientData struct {
	Type        string `json:"type"`
	Challenge   string `json:"challenge"`
	Origin      string `json:"origin"`
	CrossOrigin bool   `json:"crossOrigin"`
}

// checkClientData decodes and validates clientDataJSON against the ceremony
// type, the consumed challenge value, and the expected origin. It returns
// the raw JSON bytes, which the authentication ceremony hashes into the
// signed message.
func checkClientData(encoded, wantType string, challenge []byte, expectedOrigin string) ([]byte, *Rejection) {
	raw, err := codec.Decode(encoded)
	if err != nil {
		return nil, reject(ReasonMalformedEncoding, "client data: %v", err)
	}

	var cd collectedClientData
	if err := json.Unmarshal(raw, &cd); err != nil {
		return nil, reject(ReasonMalformedMessage, "client data is not valid JSON: %v", err)
	}
	if cd.Type != wantType {
		return nil, reject(ReasonMalformedMessage, "client data type %q, expected %q", cd.Type, wantType)
	}

	got, err := codec.Decode(cd.Challenge)
	if err != nil {
		return nil, reject(ReasonMalformedEncoding, "client data challenge: %v", err)
	}
	if subtle.ConstantTimeCompare(got, challenge) != 1 {
		return nil, reject(ReasonChallengeInvalid, "client data challenge does not match the issued challenge")
	}

	// Exact comparison. A trailing slash or scheme change is a mismatch.
	if cd.Origin != expectedOrigin {
		return nil, reject(ReasonOriginMismatch, "origin %q, expected %q", cd.Origin, expectedOrigin)
	}

	return raw, nil
}
