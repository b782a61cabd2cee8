package ceremony

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/splitsecure/go-webauthn-ceremony/codec"
)

// Purpose separates registration challenges from authentication challenges.
// A challenge issued for one purpose can never satisfy the other ceremony.
type Purpose string

const (
	PurposeRegistration   Purpose = "registration"
	PurposeAuthentication Purpose = "authentication"
)

// challengeSize is the number of random bytes in a fresh challenge. The
// WebAuthn spec requires at least 16; this engine issues 32.
const challengeSize = 32

// Challenge is a single-use, expiring random value bound to a subject and
// a purpose. For authentication it also carries the credential IDs that
// are eligible to answer it; an empty list permits any registered
// credential (discoverable mode).
type Challenge struct {
	Value                []byte
	Purpose              Purpose
	Subject              string
	AllowedCredentialIDs [][]byte
	ExpiresAt            time.Time
	Consumed             bool
}

// ID returns the store lookup key for the challenge: its base64url value.
func (c Challenge) ID() string {
	return codec.Encode(c.Value)
}

func (e *Engine) issueChallenge(ctx context.Context, subject string, purpose Purpose, allowed [][]byte) (Challenge, error) {
	value := make([]byte, challengeSize)
	if _, err := e.rand.Read(value); err != nil {
		return Challenge{}, errors.Wrap(err, "generating challenge")
	}

	ch := Challenge{
		Value:                value,
		Purpose:              purpose,
		Subject:              subject,
		AllowedCredentialIDs: allowed,
		ExpiresAt:            e.now().Add(e.challengeTTL),
	}
	if err := e.store.PutChallenge(ctx, ch); err != nil {
		return Challenge{}, errors.Wrapf(ErrStoreUnavailable, "storing challenge: %v", err)
	}
	return ch, nil
}

// consumeChallenge retires the challenge before any cryptographic work so
// that the losing side of a concurrent race fails cheaply. Expiry is
// evaluated against wall-clock time here, at consumption, not at issuance.
func (e *Engine) consumeChallenge(ctx context.Context, id string, purpose Purpose) (Challenge, *Rejection) {
	ch, err := e.store.ConsumeChallenge(ctx, id, purpose)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Challenge{}, reject(ReasonChallengeInvalid, "challenge missing, consumed, or wrong purpose")
		}
		return Challenge{}, reject(ReasonStoreUnavailable, "consuming challenge: %v", err)
	}
	if e.now().After(ch.ExpiresAt) {
		return Challenge{}, reject(ReasonChallengeInvalid, "challenge expired at %s", ch.ExpiresAt.UTC().Format(time.RFC3339))
	}
	return ch, nil
}
