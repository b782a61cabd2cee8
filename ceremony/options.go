package ceremony

import "github.com/ldclabs/cose/iana"

// Wire structures for ceremony options, shaped after the WebAuthn
// PublicKeyCredentialCreationOptions / PublicKeyCredentialRequestOptions
// dictionaries. All binary fields are base64url without padding.

type RelyingPartyEntity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type UserEntity struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

type CredentialParameter struct {
	Type string `json:"type"`
	Alg  int    `json:"alg"`
}

type CredentialDescriptor struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type AuthenticatorSelection struct {
	ResidentKey      string `json:"residentKey"`
	UserVerification string `json:"userVerification"`
}

const publicKeyCredentialType = "public-key"

const (
	userVerificationRequired = "required"
	residentKeyPreferred     = "preferred"
	attestationNone          = "none"
)

// supportedCredentialParams advertises every algorithm the cosekey
// verifier implements, in preference order.
var supportedCredentialParams = []CredentialParameter{
	{Type: publicKeyCredentialType, Alg: iana.AlgorithmES256},
	{Type: publicKeyCredentialType, Alg: iana.AlgorithmEdDSA},
	{Type: publicKeyCredentialType, Alg: iana.AlgorithmES384},
	{Type: publicKeyCredentialType, Alg: iana.AlgorithmES512},
	{Type: publicKeyCredentialType, Alg: iana.AlgorithmRS256},
}

// RegistrationOptions is the credential creation payload returned by
// BeginRegistration.
type RegistrationOptions struct {
	Challenge              string                 `json:"challenge"`
	RP                     RelyingPartyEntity     `json:"rp"`
	User                   UserEntity             `json:"user"`
	PubKeyCredParams       []CredentialParameter  `json:"pubKeyCredParams"`
	Timeout                int64                  `json:"timeout,omitempty"`
	ExcludeCredentials     []CredentialDescriptor `json:"excludeCredentials,omitempty"`
	AuthenticatorSelection AuthenticatorSelection `json:"authenticatorSelection"`
	Attestation            string                 `json:"attestation"`
}

// AuthenticationOptions is the credential request payload returned by
// BeginAuthentication. An empty AllowCredentials list permits any
// registered credential (discoverable mode).
type AuthenticationOptions struct {
	Challenge        string                 `json:"challenge"`
	RPID             string                 `json:"rpId"`
	Timeout          int64                  `json:"timeout,omitempty"`
	AllowCredentials []CredentialDescriptor `json:"allowCredentials,omitempty"`
	UserVerification string                 `json:"userVerification"`
}
