// Package memory implements the ceremony.Store interface in process
// memory. A single mutex makes challenge consumption and sign-count
// updates atomic, which is all the ceremony ordering guarantees require.
package memory

import (
	"context"
	"sync"

	"github.com/splitsecure/go-webauthn-ceremony/ceremony"
	"github.com/splitsecure/go-webauthn-ceremony/codec"
)

type challengeRecord struct {
	challenge ceremony.Challenge
	consumed  bool
}

// Store holds challenges and credentials in maps keyed by their base64url
// identifiers.
type Store struct {
	mu          sync.Mutex
	challenges  map[string]*challengeRecord
	credentials map[string]*ceremony.AttestedCredential
}

var _ ceremony.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		challenges:  make(map[string]*challengeRecord),
		credentials: make(map[string]*ceremony.AttestedCredential),
	}
}

func (s *Store) PutChallenge(_ context.Context, ch ceremony.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// The first record for an id wins. Re-inserting must never re-arm a
	// consumed challenge.
	if _, ok := s.challenges[ch.ID()]; ok {
		return nil
	}
	s.challenges[ch.ID()] = &challengeRecord{challenge: ch}
	return nil
}

func (s *Store) ConsumeChallenge(_ context.Context, id string, purpose ceremony.Purpose) (ceremony.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.challenges[id]
	if !ok || rec.consumed {
		return ceremony.Challenge{}, ceremony.ErrNotFound
	}

	// Consumed on every attempt, including a purpose mismatch: a challenge
	// that reached the wrong ceremony is burned either way.
	rec.consumed = true
	if rec.challenge.Purpose != purpose {
		return ceremony.Challenge{}, ceremony.ErrNotFound
	}
	return rec.challenge, nil
}

func (s *Store) PutCredential(_ context.Context, cred ceremony.AttestedCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := cred
	s.credentials[codec.Encode(cred.CredentialID)] = &clone
	return nil
}

func (s *Store) GetCredential(_ context.Context, credentialID []byte) (ceremony.AttestedCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.credentials[codec.Encode(credentialID)]
	if !ok {
		return ceremony.AttestedCredential{}, ceremony.ErrNotFound
	}
	return *cred, nil
}

func (s *Store) UpdateSignCount(_ context.Context, credentialID []byte, newCount uint32) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.credentials[codec.Encode(credentialID)]
	if !ok {
		return false, ceremony.ErrNotFound
	}
	if newCount <= cred.SignCount {
		return false, nil
	}
	cred.SignCount = newCount
	return true, nil
}
