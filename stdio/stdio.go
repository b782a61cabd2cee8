// Package stdio adapts the ceremony engine to a one-shot JSON-over-stdio
// protocol: a single command object in, a single result object out. The
// engine knows nothing about this framing; the adapter owns the envelope,
// the per-operation payload validation, and the mapping of rejection
// reasons to stable wire strings.
package stdio

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/splitsecure/go-webauthn-ceremony/ceremony"
	"github.com/splitsecure/go-webauthn-ceremony/codec"
)

// Operation names accepted in the request envelope.
const (
	OpGenerateRegistrationOptions   = "generateRegistrationOptions"
	OpVerifyRegistrationResponse    = "verifyRegistrationResponse"
	OpGenerateAuthenticationOptions = "generateAuthenticationOptions"
	OpVerifyAuthenticationResponse  = "verifyAuthenticationResponse"
)

// Request is the command envelope read from standard input.
type Request struct {
	Op      string          `json:"op"`
	Payload json.RawMessage `json:"payload"`
}

// Handler executes one request against a store.
type Handler struct {
	store ceremony.Store
	cfg   ceremony.Config
	now   func() time.Time
}

func NewHandler(store ceremony.Store, cfg ceremony.Config) *Handler {
	return &Handler{store: store, cfg: cfg, now: time.Now}
}

// Handle runs a raw request and returns the marshaled response plus an ok
// flag. A false flag must surface as a non-zero process exit.
func (h *Handler) Handle(ctx context.Context, raw []byte) ([]byte, bool) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return failure(ceremony.ReasonMalformedMessage, "request is not valid JSON: "+err.Error())
	}

	var (
		result map[string]any
		rej    *ceremony.Rejection
	)
	switch req.Op {
	case OpGenerateRegistrationOptions:
		result, rej = h.generateRegistrationOptions(ctx, req.Payload)
	case OpVerifyRegistrationResponse:
		result, rej = h.verifyRegistrationResponse(ctx, req.Payload)
	case OpGenerateAuthenticationOptions:
		result, rej = h.generateAuthenticationOptions(ctx, req.Payload)
	case OpVerifyAuthenticationResponse:
		result, rej = h.verifyAuthenticationResponse(ctx, req.Payload)
	default:
		return failure("unknown_op", "operation "+req.Op+" is not supported")
	}

	if rej != nil {
		return failure(rej.Reason, rej.Detail)
	}

	result["ok"] = true
	out, err := json.Marshal(result)
	if err != nil {
		return failure(ceremony.ReasonMalformedMessage, "encoding response: "+err.Error())
	}
	return out, true
}

func failure(reason ceremony.Reason, details string) ([]byte, bool) {
	body := map[string]any{"ok": false, "error": string(reason)}
	if details != "" {
		body["details"] = details
	}
	out, _ := json.Marshal(body)
	return out, false
}

// beginError maps errors from the begin operations onto the taxonomy:
// store failures stay retryable, everything else is bad input.
func beginError(err error) *ceremony.Rejection {
	reason := ceremony.ReasonMalformedMessage
	if errors.Is(err, ceremony.ErrStoreUnavailable) {
		reason = ceremony.ReasonStoreUnavailable
	}
	return &ceremony.Rejection{Reason: reason, Detail: err.Error()}
}

func (h *Handler) engine(rpID, rpName string) (*ceremony.Engine, *ceremony.Rejection) {
	if rpID == "" {
		rpID = h.cfg.RPID
	}
	if rpName == "" {
		rpName = h.cfg.RPDisplayName
	}
	eng, err := ceremony.New(
		ceremony.RelyingParty{ID: rpID, Name: rpName},
		h.store,
		ceremony.WithChallengeTTL(h.cfg.ChallengeTTL),
		ceremony.WithClock(h.now),
	)
	if err != nil {
		return nil, &ceremony.Rejection{Reason: ceremony.ReasonMalformedMessage, Detail: err.Error()}
	}
	return eng, nil
}

// expectations fills missing verification targets from configuration, so
// deployments pinned to one relying party can omit them per command.
func (h *Handler) expectations(origin, rpID string) (string, string) {
	if origin == "" {
		origin = h.cfg.RPOrigin
	}
	if rpID == "" {
		rpID = h.cfg.RPID
	}
	return origin, rpID
}

func decodeIDs(encoded []string) ([][]byte, error) {
	ids := make([][]byte, 0, len(encoded))
	for _, e := range encoded {
		id, err := codec.Decode(e)
		if err != nil {
			return nil, errors.Wrapf(err, "credential id %q", e)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
