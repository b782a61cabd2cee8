package ceremony

import (
	"crypto/rand"
	"crypto/x509"
	"io"
	"time"

	"github.com/pkg/errors"
)

// RelyingParty identifies the server credentials are scoped to.
type RelyingParty struct {
	// ID is the relying party identifier, the domain credentials bind to.
	ID string
	// Name is the human-readable relying party name shown by browsers.
	Name string
}

// Engine runs registration and authentication ceremonies against a Store.
// Each call is a self-contained unit of work; the engine itself holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	rp           RelyingParty
	store        Store
	now          func() time.Time
	rand         io.Reader
	challengeTTL time.Duration

	verifyPacked bool
	packedRoots  []*x509.Certificate
}

type optionsState struct {
	now          func() time.Time
	rand         io.Reader
	challengeTTL time.Duration
	verifyPacked bool
	packedRoots  []*x509.Certificate
}

type option struct {
	apply func(*optionsState)
}

func newoption(fn func(*optionsState)) option {
	return option{
		apply: fn,
	}
}

// WithClock lets the caller control the wall clock used for challenge
// expiry. Tests use it; production code should not.
func WithClock(now func() time.Time) option {
	return newoption(func(s *optionsState) {
		s.now = now
	})
}

// WithRand overrides the randomness source used for challenge values.
func WithRand(r io.Reader) option {
	return newoption(func(s *optionsState) {
		s.rand = r
	})
}

// WithChallengeTTL sets the validity window for issued challenges.
func WithChallengeTTL(ttl time.Duration) option {
	return newoption(func(s *optionsState) {
		s.challengeTTL = ttl
	})
}

// WithPackedAttestation enables verification of "packed" attestation
// statements on registration. Statements carrying a certificate chain are
// checked against the provided roots; statements without one are accepted
// as self-attested. This is an add-on beyond the attestation=none policy.
func WithPackedAttestation(roots []*x509.Certificate) option {
	return newoption(func(s *optionsState) {
		s.verifyPacked = true
		s.packedRoots = roots
	})
}

// New builds an Engine for one relying party over the given store.
func New(rp RelyingParty, store Store, options ...option) (*Engine, error) {
	if rp.ID == "" {
		return nil, errors.New("relying party id is required")
	}
	if store == nil {
		return nil, errors.New("store is required")
	}

	optionsState := optionsState{}

	// compute the options state from the provided options
	for _, option := range options {
		option.apply(&optionsState)
	}

	e := &Engine{
		rp:           rp,
		store:        store,
		now:          optionsState.now,
		rand:         optionsState.rand,
		challengeTTL: optionsState.challengeTTL,
		verifyPacked: optionsState.verifyPacked,
		packedRoots:  optionsState.packedRoots,
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.rand == nil {
		e.rand = rand.Reader
	}
	if e.challengeTTL <= 0 {
		e.challengeTTL = 5 * time.Minute
	}
	return e, nil
}
