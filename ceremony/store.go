package ceremony

import (
	"context"

	"github.com/pkg/errors"
)

// ErrNotFound indicates a requested record is missing. For challenge
// consumption it also covers a challenge that was already consumed or
// recorded for a different purpose.
var ErrNotFound = errors.New("ceremony: record not found")

// ErrStoreUnavailable wraps store collaborator failures so transports can
// tell infrastructure problems apart from bad input. Always retryable.
var ErrStoreUnavailable = errors.New("ceremony: store unavailable")

// AttestedCredential is the durable product of a successful registration:
// the credential identifier, the COSE-encoded public key exactly as the
// authenticator produced it, and the last accepted sign count.
type AttestedCredential struct {
	CredentialID []byte
	PublicKey    []byte
	SignCount    uint32
	Subject      string
}

// Store is the external collaborator holding all ceremony state.
//
// ConsumeChallenge and UpdateSignCount carry the atomicity this engine
// depends on: a challenge must be consumable exactly once even under
// concurrent requests, and a sign count must only ever move forward.
type Store interface {
	PutChallenge(ctx context.Context, ch Challenge) error

	// ConsumeChallenge atomically marks the challenge consumed and returns
	// its pre-consumption state. ErrNotFound covers a challenge that is
	// missing, already consumed, or recorded for a different purpose; the
	// losing side of a race sees ErrNotFound, never a double success.
	ConsumeChallenge(ctx context.Context, id string, purpose Purpose) (Challenge, error)

	PutCredential(ctx context.Context, cred AttestedCredential) error
	GetCredential(ctx context.Context, credentialID []byte) (AttestedCredential, error)

	// UpdateSignCount advances the stored counter with compare-and-swap
	// semantics: it succeeds only when newCount is strictly greater than
	// the stored value, and reports false otherwise.
	UpdateSignCount(ctx context.Context, credentialID []byte, newCount uint32) (bool, error)
}
