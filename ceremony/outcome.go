package ceremony

import "fmt"

// Reason is a stable machine-readable rejection cause. Transports map these
// verbatim onto the wire; callers rely on them to distinguish "this
// credential is wrong" from "our infrastructure is broken".
type Reason string

const (
	// ReasonChallengeInvalid covers a challenge that is missing, expired,
	// already consumed, issued for a different purpose, or answered by a
	// credential outside its allow list.
	ReasonChallengeInvalid Reason = "challenge_invalid"

	// ReasonOriginMismatch reports client data whose origin differs from
	// the expected origin, even by a trailing slash.
	ReasonOriginMismatch Reason = "origin_mismatch"

	// ReasonRPIDMismatch reports authenticator data bound to a different
	// relying party.
	ReasonRPIDMismatch Reason = "rp_id_mismatch"

	// ReasonUserNotVerified reports a missing user-present or
	// user-verified flag where the ceremony requires both.
	ReasonUserNotVerified Reason = "user_not_verified"

	// ReasonSignatureInvalid reports a failed cryptographic verification.
	ReasonSignatureInvalid Reason = "signature_invalid"

	// ReasonPossibleCloneDetected reports a sign count that did not
	// strictly increase. The key verified; its usage history is suspect.
	// Callers should invalidate the credential, not retry.
	ReasonPossibleCloneDetected Reason = "possible_clone_detected"

	// ReasonUnsupportedAlgorithm reports a COSE algorithm this engine does
	// not implement.
	ReasonUnsupportedAlgorithm Reason = "unsupported_algorithm"

	// ReasonMalformedEncoding reports base64url text that does not decode.
	ReasonMalformedEncoding Reason = "malformed_encoding"

	// ReasonMalformedMessage reports structurally invalid input beyond the
	// encoding layer.
	ReasonMalformedMessage Reason = "malformed_message"

	// ReasonAttestationInvalid reports a packed attestation statement that
	// failed verification. Only raised when packed verification is enabled.
	ReasonAttestationInvalid Reason = "attestation_invalid"

	// ReasonStoreUnavailable reports a failing store collaborator. Always
	// retryable; never a statement about the response itself.
	ReasonStoreUnavailable Reason = "store_unavailable"
)

// Rejection is the inspectable failure half of a verification outcome.
type Rejection struct {
	Reason Reason
	Detail string
}

func (r *Rejection) String() string {
	if r.Detail == "" {
		return string(r.Reason)
	}
	return fmt.Sprintf("%s: %s", r.Reason, r.Detail)
}

func reject(reason Reason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// RegistrationResult is the tagged outcome of FinishRegistration. Exactly
// one of Credential (with Verified set) or Rejection is meaningful.
type RegistrationResult struct {
	Verified   bool
	Credential AttestedCredential
	Rejection  *Rejection
}

func registrationRejected(r *Rejection) RegistrationResult {
	return RegistrationResult{Rejection: r}
}

// AuthenticationResult is the tagged outcome of FinishAuthentication.
// NewSignCount is the counter value the caller must persist on success.
type AuthenticationResult struct {
	Verified     bool
	NewSignCount uint32
	Rejection    *Rejection
}

func authenticationRejected(r *Rejection) AuthenticationResult {
	return AuthenticationResult{Rejection: r}
}
