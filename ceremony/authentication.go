package ceremony

import (
	"bytes"
	"context"
	"crypto/sha256"

	"github.com/pkg/errors"

	"github.com/splitsecure/go-webauthn-ceremony/authenticatordata"
	"github.com/splitsecure/go-webauthn-ceremony/codec"
	"github.com/splitsecure/go-webauthn-ceremony/cosekey"
)

const clientDataTypeGet = "webauthn.get"

// BeginAuthenticationInput names the subject to authenticate and the
// credential IDs eligible to respond. An empty list permits any registered
// credential (discoverable mode).
type BeginAuthenticationInput struct {
	Subject            string
	AllowCredentialIDs [][]byte
}

// BeginAuthentication issues an authentication challenge and returns
// credential request options with user verification required.
func (e *Engine) BeginAuthentication(ctx context.Context, in *BeginAuthenticationInput) (*AuthenticationOptions, error) {
	ch, err := e.issueChallenge(ctx, in.Subject, PurposeAuthentication, in.AllowCredentialIDs)
	if err != nil {
		return nil, err
	}

	allow := make([]CredentialDescriptor, 0, len(in.AllowCredentialIDs))
	for _, id := range in.AllowCredentialIDs {
		allow = append(allow, CredentialDescriptor{Type: publicKeyCredentialType, ID: codec.Encode(id)})
	}

	return &AuthenticationOptions{
		Challenge:        ch.ID(),
		RPID:             e.rp.ID,
		Timeout:          e.challengeTTL.Milliseconds(),
		AllowCredentials: allow,
		UserVerification: userVerificationRequired,
	}, nil
}

// FinishAuthenticationInput pairs an assertion response with the stored
// credential it claims to come from and the values it must verify against.
type FinishAuthenticationInput struct {
	Response          AuthenticationResponse
	ExpectedChallenge string
	ExpectedOrigin    string
	ExpectedRPID      string
	Credential        AttestedCredential
}

// FinishAuthentication verifies an assertion against a stored credential.
// On success the stored sign count has already been advanced (atomically,
// via the store's compare-and-swap) and the result carries the new value
// for the caller to persist wherever else it tracks it.
//
// A sign count that fails to strictly increase is reported as
// ReasonPossibleCloneDetected, distinct from a bad signature: the key is
// valid but its usage history is suspicious, and callers should invalidate
// the credential rather than retry.
func (e *Engine) FinishAuthentication(ctx context.Context, in *FinishAuthenticationInput) AuthenticationResult {
	if in.ExpectedChallenge == "" || in.ExpectedOrigin == "" || in.ExpectedRPID == "" {
		return authenticationRejected(reject(ReasonMalformedMessage, "expected challenge, origin, and rp id are required"))
	}
	if in.Response.Type != publicKeyCredentialType {
		return authenticationRejected(reject(ReasonMalformedMessage, "credential type %q, expected %q", in.Response.Type, publicKeyCredentialType))
	}
	if len(in.Credential.CredentialID) == 0 || len(in.Credential.PublicKey) == 0 {
		return authenticationRejected(reject(ReasonMalformedMessage, "stored credential is incomplete"))
	}

	ch, rej := e.consumeChallenge(ctx, in.ExpectedChallenge, PurposeAuthentication)
	if rej != nil {
		return authenticationRejected(rej)
	}

	rawID, err := codec.Decode(in.Response.RawID)
	if err != nil {
		return authenticationRejected(reject(ReasonMalformedEncoding, "rawId: %v", err))
	}
	if !bytes.Equal(rawID, in.Credential.CredentialID) {
		return authenticationRejected(reject(ReasonMalformedMessage, "response rawId does not match the stored credential"))
	}
	if len(ch.AllowedCredentialIDs) > 0 && !containsCredential(ch.AllowedCredentialIDs, rawID) {
		return authenticationRejected(reject(ReasonChallengeInvalid, "credential is not in the challenge allow list"))
	}

	clientDataJSON, rej := checkClientData(in.Response.Response.ClientDataJSON, clientDataTypeGet, ch.Value, in.ExpectedOrigin)
	if rej != nil {
		return authenticationRejected(rej)
	}

	authData, err := codec.Decode(in.Response.Response.AuthenticatorData)
	if err != nil {
		return authenticationRejected(reject(ReasonMalformedEncoding, "authenticator data: %v", err))
	}
	ad := authenticatordata.T{}
	if err := authenticatordata.UnmarshalBase(authData, &ad); err != nil {
		return authenticationRejected(reject(ReasonMalformedMessage, "authenticator data: %v", err))
	}
	if rej := checkAuthenticatorData(&ad, in.ExpectedRPID); rej != nil {
		return authenticationRejected(rej)
	}

	signature, err := codec.Decode(in.Response.Response.Signature)
	if err != nil {
		return authenticationRejected(reject(ReasonMalformedEncoding, "signature: %v", err))
	}

	verifier, err := cosekey.Parse(in.Credential.PublicKey)
	if err != nil {
		if errors.Is(err, cosekey.ErrUnsupportedAlgorithm) {
			return authenticationRejected(reject(ReasonUnsupportedAlgorithm, "%v", err))
		}
		return authenticationRejected(reject(ReasonMalformedMessage, "stored public key: %v", err))
	}

	// The signed message is authenticator data followed by the hash of the
	// client data JSON, never the response payload as a whole.
	clientDataHash := sha256.Sum256(clientDataJSON)
	message := append(append([]byte{}, authData...), clientDataHash[:]...)
	if !verifier.Verify(message, signature) {
		return authenticationRejected(reject(ReasonSignatureInvalid, "assertion signature did not verify"))
	}

	newCount := ad.SignCount
	stored := in.Credential.SignCount
	if stored != 0 || newCount != 0 {
		if newCount <= stored {
			return authenticationRejected(reject(ReasonPossibleCloneDetected, "sign count %d did not advance past %d", newCount, stored))
		}
		ok, err := e.store.UpdateSignCount(ctx, in.Credential.CredentialID, newCount)
		if err != nil {
			return authenticationRejected(reject(ReasonStoreUnavailable, "advancing sign count: %v", err))
		}
		if !ok {
			// A concurrent assertion advanced the counter first.
			return authenticationRejected(reject(ReasonPossibleCloneDetected, "sign count %d was not accepted by the store", newCount))
		}
	}

	return AuthenticationResult{Verified: true, NewSignCount: newCount}
}

func containsCredential(ids [][]byte, id []byte) bool {
	for _, candidate := range ids {
		if bytes.Equal(candidate, id) {
			return true
		}
	}
	return false
}
