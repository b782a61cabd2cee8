package ceremony

import (
	"bytes"
	"context"
	"crypto/sha256"

	"github.com/pkg/errors"

	"github.com/splitsecure/go-webauthn-ceremony/attestation"
	"github.com/splitsecure/go-webauthn-ceremony/authenticatordata"
	"github.com/splitsecure/go-webauthn-ceremony/codec"
	"github.com/splitsecure/go-webauthn-ceremony/cosekey"
)

const clientDataTypeCreate = "webauthn.create"

// BeginRegistrationInput names the user a new credential will belong to.
// UserHandle is the opaque byte identifier sent to the authenticator; it
// must not be derived from a human-readable string by this engine's
// callers (transports may shim that for legacy clients).
type BeginRegistrationInput struct {
	Subject              string
	UserHandle           []byte
	UserName             string
	UserDisplayName      string
	ExcludeCredentialIDs [][]byte
}

// BeginRegistration issues a registration challenge and returns credential
// creation options: user verification required, resident key preferred,
// attestation none, with the caller's already-registered credentials
// excluded so a device cannot double-register.
func (e *Engine) BeginRegistration(ctx context.Context, in *BeginRegistrationInput) (*RegistrationOptions, error) {
	if in.Subject == "" {
		return nil, errors.New("subject is required")
	}
	if len(in.UserHandle) == 0 {
		return nil, errors.New("user handle is required")
	}
	if in.UserName == "" {
		return nil, errors.New("user name is required")
	}

	ch, err := e.issueChallenge(ctx, in.Subject, PurposeRegistration, nil)
	if err != nil {
		return nil, err
	}

	displayName := in.UserDisplayName
	if displayName == "" {
		displayName = in.UserName
	}

	exclude := make([]CredentialDescriptor, 0, len(in.ExcludeCredentialIDs))
	for _, id := range in.ExcludeCredentialIDs {
		exclude = append(exclude, CredentialDescriptor{Type: publicKeyCredentialType, ID: codec.Encode(id)})
	}

	return &RegistrationOptions{
		Challenge: ch.ID(),
		RP:        RelyingPartyEntity{ID: e.rp.ID, Name: e.rp.Name},
		User: UserEntity{
			ID:          codec.Encode(in.UserHandle),
			Name:        in.UserName,
			DisplayName: displayName,
		},
		PubKeyCredParams:   supportedCredentialParams,
		Timeout:            e.challengeTTL.Milliseconds(),
		ExcludeCredentials: exclude,
		AuthenticatorSelection: AuthenticatorSelection{
			ResidentKey:      residentKeyPreferred,
			UserVerification: userVerificationRequired,
		},
		Attestation: attestationNone,
	}, nil
}

// FinishRegistrationInput pairs a registration response with the values it
// must verify against.
type FinishRegistrationInput struct {
	Response          RegistrationResponse
	ExpectedChallenge string
	ExpectedOrigin    string
	ExpectedRPID      string
}

// FinishRegistration verifies a registration response and, on success,
// stores and returns the new attested credential. Every expected failure
// mode is reported as a Rejection inside the result, never as a Go error.
//
// The challenge is consumed before any cryptographic work so a concurrent
// replay fails cheaply, and the credential is only written after every
// check has passed.
func (e *Engine) FinishRegistration(ctx context.Context, in *FinishRegistrationInput) RegistrationResult {
	if in.ExpectedChallenge == "" || in.ExpectedOrigin == "" || in.ExpectedRPID == "" {
		return registrationRejected(reject(ReasonMalformedMessage, "expected challenge, origin, and rp id are required"))
	}
	if in.Response.Type != publicKeyCredentialType {
		return registrationRejected(reject(ReasonMalformedMessage, "credential type %q, expected %q", in.Response.Type, publicKeyCredentialType))
	}

	ch, rej := e.consumeChallenge(ctx, in.ExpectedChallenge, PurposeRegistration)
	if rej != nil {
		return registrationRejected(rej)
	}

	clientDataJSON, rej := checkClientData(in.Response.Response.ClientDataJSON, clientDataTypeCreate, ch.Value, in.ExpectedOrigin)
	if rej != nil {
		return registrationRejected(rej)
	}

	rawObject, err := codec.Decode(in.Response.Response.AttestationObject)
	if err != nil {
		return registrationRejected(reject(ReasonMalformedEncoding, "attestation object: %v", err))
	}
	obj, err := attestation.Parse(rawObject)
	if err != nil {
		return registrationRejected(reject(ReasonMalformedMessage, "attestation object: %v", err))
	}

	ad := authenticatordata.T{}
	if err := authenticatordata.Unmarshal(obj.AuthData, &ad); err != nil {
		return registrationRejected(reject(ReasonMalformedMessage, "authenticator data: %v", err))
	}
	if rej := checkAuthenticatorData(&ad, in.ExpectedRPID); rej != nil {
		return registrationRejected(rej)
	}
	if !ad.HasAttestedCredentialData() {
		return registrationRejected(reject(ReasonMalformedMessage, "authenticator data carries no attested credential data"))
	}

	acd := &ad.AttestedCredentialData
	if len(acd.CredentialID) == 0 {
		return registrationRejected(reject(ReasonMalformedMessage, "empty credential id"))
	}
	if rawID, err := codec.Decode(in.Response.RawID); err != nil || !bytes.Equal(rawID, acd.CredentialID) {
		return registrationRejected(reject(ReasonMalformedMessage, "response rawId does not match the attested credential id"))
	}

	verifier, err := cosekey.New(acd.CredentialPublicKey)
	if err != nil {
		if errors.Is(err, cosekey.ErrUnsupportedAlgorithm) {
			return registrationRejected(reject(ReasonUnsupportedAlgorithm, "%v", err))
		}
		return registrationRejected(reject(ReasonMalformedMessage, "credential public key: %v", err))
	}

	if e.verifyPacked && obj.Format == attestation.FormatPacked {
		clientDataHash := sha256.Sum256(clientDataJSON)
		message := append(append([]byte{}, obj.AuthData...), clientDataHash[:]...)
		err := attestation.VerifyPacked(&attestation.VerifyPackedInput{
			Object:             obj,
			Message:            message,
			CredentialVerifier: verifier,
			Roots:              e.packedRoots,
			Time:               e.now(),
		})
		if err != nil {
			return registrationRejected(reject(ReasonAttestationInvalid, "%v", err))
		}
	}

	cred := AttestedCredential{
		CredentialID: acd.CredentialID,
		PublicKey:    acd.RawCredentialPublicKey,
		SignCount:    ad.SignCount,
		Subject:      ch.Subject,
	}
	if err := e.store.PutCredential(ctx, cred); err != nil {
		return registrationRejected(reject(ReasonStoreUnavailable, "storing credential: %v", err))
	}

	return RegistrationResult{Verified: true, Credential: cred}
}

// checkAuthenticatorData enforces the RP-ID binding and the user
// presence/verification flags shared by both ceremonies.
func checkAuthenticatorData(ad *authenticatordata.T, expectedRPID string) *Rejection {
	want := sha256.Sum256([]byte(expectedRPID))
	if !bytes.Equal(ad.RPIDHash, want[:]) {
		return reject(ReasonRPIDMismatch, "authenticator data is bound to a different relying party")
	}
	if !ad.UserPresent() {
		return reject(ReasonUserNotVerified, "user present flag not set")
	}
	if !ad.UserVerified() {
		return reject(ReasonUserNotVerified, "user verified flag not set")
	}
	return nil
}
