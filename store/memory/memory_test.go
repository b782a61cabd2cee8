package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/splitsecure/go-webauthn-ceremony/ceremony"
	"github.com/splitsecure/go-webauthn-ceremony/store/memory"
)

func testChallenge(value string) ceremony.Challenge {
	return ceremony.Challenge{
		Value:     []byte(value),
		Purpose:   ceremony.PurposeRegistration,
		Subject:   "u1",
		ExpiresAt: time.Now().Add(time.Minute),
	}
}

func TestConsumeChallengeOnce(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	ch := testChallenge("challenge-bytes")
	require.NoError(t, s.PutChallenge(ctx, ch))

	got, err := s.ConsumeChallenge(ctx, ch.ID(), ceremony.PurposeRegistration)
	require.NoError(t, err)
	require.Equal(t, ch.Value, got.Value)
	require.Equal(t, "u1", got.Subject)

	_, err = s.ConsumeChallenge(ctx, ch.ID(), ceremony.PurposeRegistration)
	require.ErrorIs(t, err, ceremony.ErrNotFound)
}

func TestConsumeChallengeConcurrent(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	ch := testChallenge("contended")
	require.NoError(t, s.PutChallenge(ctx, ch))

	const goroutines = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ConsumeChallenge(ctx, ch.ID(), ceremony.PurposeRegistration); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	require.Len(t, wins, 1, "exactly one consumer must win")
}

func TestConsumePurposeMismatchBurnsChallenge(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	ch := testChallenge("wrong-purpose")
	require.NoError(t, s.PutChallenge(ctx, ch))

	_, err := s.ConsumeChallenge(ctx, ch.ID(), ceremony.PurposeAuthentication)
	require.ErrorIs(t, err, ceremony.ErrNotFound)

	// The failed attempt consumed it for the right purpose too.
	_, err = s.ConsumeChallenge(ctx, ch.ID(), ceremony.PurposeRegistration)
	require.ErrorIs(t, err, ceremony.ErrNotFound)
}

func TestConsumeMissingChallenge(t *testing.T) {
	s := memory.New()
	_, err := s.ConsumeChallenge(context.Background(), "no-such-id", ceremony.PurposeRegistration)
	require.ErrorIs(t, err, ceremony.ErrNotFound)
}

func TestCredentialRoundTrip(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	cred := ceremony.AttestedCredential{
		CredentialID: []byte("cred-1"),
		PublicKey:    []byte{0xa5, 0x01, 0x02},
		SignCount:    3,
		Subject:      "u1",
	}
	require.NoError(t, s.PutCredential(ctx, cred))

	got, err := s.GetCredential(ctx, cred.CredentialID)
	require.NoError(t, err)
	require.Equal(t, cred, got)

	_, err = s.GetCredential(ctx, []byte("missing"))
	require.ErrorIs(t, err, ceremony.ErrNotFound)
}

func TestUpdateSignCountCAS(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	cred := ceremony.AttestedCredential{CredentialID: []byte("cred-1"), PublicKey: []byte{1}, SignCount: 5}
	require.NoError(t, s.PutCredential(ctx, cred))

	ok, err := s.UpdateSignCount(ctx, cred.CredentialID, 6)
	require.NoError(t, err)
	require.True(t, ok)

	// Equal and lower counts are refused.
	ok, err = s.UpdateSignCount(ctx, cred.CredentialID, 6)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = s.UpdateSignCount(ctx, cred.CredentialID, 2)
	require.NoError(t, err)
	require.False(t, ok)

	got, err := s.GetCredential(ctx, cred.CredentialID)
	require.NoError(t, err)
	require.Equal(t, uint32(6), got.SignCount)

	_, err = s.UpdateSignCount(ctx, []byte("missing"), 10)
	require.ErrorIs(t, err, ceremony.ErrNotFound)
}

func TestConsumedChallengeNotRearmedByReput(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	ch := testChallenge("replayed")
	require.NoError(t, s.PutChallenge(ctx, ch))

	_, err := s.ConsumeChallenge(ctx, ch.ID(), ceremony.PurposeRegistration)
	require.NoError(t, err)

	// Re-inserting the same challenge must not make it consumable again.
	require.NoError(t, s.PutChallenge(ctx, ch))
	_, err = s.ConsumeChallenge(ctx, ch.ID(), ceremony.PurposeRegistration)
	require.ErrorIs(t, err, ceremony.ErrNotFound)
}

func TestUpdateSignCountConcurrent(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	cred := ceremony.AttestedCredential{CredentialID: []byte("cred-1"), PublicKey: []byte{1}, SignCount: 5}
	require.NoError(t, s.PutCredential(ctx, cred))

	const goroutines = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := s.UpdateSignCount(ctx, cred.CredentialID, 6); err == nil && ok {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	require.Len(t, wins, 1, "exactly one update must win")

	got, err := s.GetCredential(ctx, cred.CredentialID)
	require.NoError(t, err)
	require.Equal(t, uint32(6), got.SignCount)
}
