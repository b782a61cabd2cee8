package stdio

import (
	"context"
	"encoding/json"

	"github.com/splitsecure/go-webauthn-ceremony/ceremony"
	"github.com/splitsecure/go-webauthn-ceremony/codec"
)

type generateRegistrationOptionsPayload struct {
	RPName               string   `json:"rpName"`
	RPID                 string   `json:"rpID"`
	UserIDBase64URL      string   `json:"userIDBase64Url"`
	UserID               string   `json:"userID"`
	UserName             string   `json:"userName"`
	UserDisplayName      string   `json:"userDisplayName"`
	ExcludeCredentialIDs []string `json:"excludeCredentialIDs"`
}

func (h *Handler) generateRegistrationOptions(ctx context.Context, raw json.RawMessage) (map[string]any, *ceremony.Rejection) {
	var p generateRegistrationOptionsPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &ceremony.Rejection{Reason: ceremony.ReasonMalformedMessage, Detail: "payload: " + err.Error()}
	}

	// Legacy clients send a plain string userID; the engine itself only
	// accepts opaque handle bytes, so the shim lives here.
	var userHandle []byte
	switch {
	case p.UserIDBase64URL != "":
		decoded, err := codec.Decode(p.UserIDBase64URL)
		if err != nil {
			return nil, &ceremony.Rejection{Reason: ceremony.ReasonMalformedEncoding, Detail: "userIDBase64Url: " + err.Error()}
		}
		userHandle = decoded
	case p.UserID != "":
		userHandle = []byte(p.UserID)
	}

	exclude, err := decodeIDs(p.ExcludeCredentialIDs)
	if err != nil {
		return nil, &ceremony.Rejection{Reason: ceremony.ReasonMalformedEncoding, Detail: err.Error()}
	}

	eng, rej := h.engine(p.RPID, p.RPName)
	if rej != nil {
		return nil, rej
	}

	opts, err := eng.BeginRegistration(ctx, &ceremony.BeginRegistrationInput{
		Subject:              string(userHandle),
		UserHandle:           userHandle,
		UserName:             p.UserName,
		UserDisplayName:      p.UserDisplayName,
		ExcludeCredentialIDs: exclude,
	})
	if err != nil {
		return nil, beginError(err)
	}
	return map[string]any{"options": opts}, nil
}

type generateAuthenticationOptionsPayload struct {
	RPID               string   `json:"rpID"`
	UserIDBase64URL    string   `json:"userIDBase64Url"`
	UserID             string   `json:"userID"`
	AllowCredentialIDs []string `json:"allowCredentialIDs"`
}

func (h *Handler) generateAuthenticationOptions(ctx context.Context, raw json.RawMessage) (map[string]any, *ceremony.Rejection) {
	var p generateAuthenticationOptionsPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &ceremony.Rejection{Reason: ceremony.ReasonMalformedMessage, Detail: "payload: " + err.Error()}
	}

	subject := p.UserID
	if p.UserIDBase64URL != "" {
		decoded, err := codec.Decode(p.UserIDBase64URL)
		if err != nil {
			return nil, &ceremony.Rejection{Reason: ceremony.ReasonMalformedEncoding, Detail: "userIDBase64Url: " + err.Error()}
		}
		subject = string(decoded)
	}

	allow, err := decodeIDs(p.AllowCredentialIDs)
	if err != nil {
		return nil, &ceremony.Rejection{Reason: ceremony.ReasonMalformedEncoding, Detail: err.Error()}
	}

	eng, rej := h.engine(p.RPID, "")
	if rej != nil {
		return nil, rej
	}

	opts, err := eng.BeginAuthentication(ctx, &ceremony.BeginAuthenticationInput{
		Subject:            subject,
		AllowCredentialIDs: allow,
	})
	if err != nil {
		return nil, beginError(err)
	}
	return map[string]any{"options": opts}, nil
}

type verifyRegistrationPayload struct {
	Response          ceremony.RegistrationResponse `json:"response"`
	ExpectedChallenge string                        `json:"expectedChallenge"`
	ExpectedOrigin    string                        `json:"expectedOrigin"`
	ExpectedRPID      string                        `json:"expectedRPID"`
}

func (h *Handler) verifyRegistrationResponse(ctx context.Context, raw json.RawMessage) (map[string]any, *ceremony.Rejection) {
	var p verifyRegistrationPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &ceremony.Rejection{Reason: ceremony.ReasonMalformedMessage, Detail: "payload: " + err.Error()}
	}
	origin, rpID := h.expectations(p.ExpectedOrigin, p.ExpectedRPID)

	eng, rej := h.engine(rpID, "")
	if rej != nil {
		return nil, rej
	}
	if rej := h.primeChallenge(ctx, p.ExpectedChallenge, ceremony.PurposeRegistration, nil); rej != nil {
		return nil, rej
	}

	result := eng.FinishRegistration(ctx, &ceremony.FinishRegistrationInput{
		Response:          p.Response,
		ExpectedChallenge: p.ExpectedChallenge,
		ExpectedOrigin:    origin,
		ExpectedRPID:      rpID,
	})
	if result.Rejection != nil {
		return nil, result.Rejection
	}

	return map[string]any{
		"verified": true,
		"registrationInfo": map[string]any{
			"credentialID":        codec.Encode(result.Credential.CredentialID),
			"credentialPublicKey": codec.Encode(result.Credential.PublicKey),
			"counter":             result.Credential.SignCount,
		},
	}, nil
}

type storedAuthenticator struct {
	CredentialID        string `json:"credentialID"`
	CredentialPublicKey string `json:"credentialPublicKey"`
	Counter             uint32 `json:"counter"`
}

type verifyAuthenticationPayload struct {
	Response          ceremony.AuthenticationResponse `json:"response"`
	ExpectedChallenge string                          `json:"expectedChallenge"`
	ExpectedOrigin    string                          `json:"expectedOrigin"`
	ExpectedRPID      string                          `json:"expectedRPID"`
	Authenticator     storedAuthenticator             `json:"authenticator"`
}

func (h *Handler) verifyAuthenticationResponse(ctx context.Context, raw json.RawMessage) (map[string]any, *ceremony.Rejection) {
	var p verifyAuthenticationPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &ceremony.Rejection{Reason: ceremony.ReasonMalformedMessage, Detail: "payload: " + err.Error()}
	}

	credID, err := codec.Decode(p.Authenticator.CredentialID)
	if err != nil {
		return nil, &ceremony.Rejection{Reason: ceremony.ReasonMalformedEncoding, Detail: "authenticator.credentialID: " + err.Error()}
	}
	pubKey, err := codec.Decode(p.Authenticator.CredentialPublicKey)
	if err != nil {
		return nil, &ceremony.Rejection{Reason: ceremony.ReasonMalformedEncoding, Detail: "authenticator.credentialPublicKey: " + err.Error()}
	}

	origin, rpID := h.expectations(p.ExpectedOrigin, p.ExpectedRPID)
	eng, rej := h.engine(rpID, "")
	if rej != nil {
		return nil, rej
	}

	cred := ceremony.AttestedCredential{
		CredentialID: credID,
		PublicKey:    pubKey,
		SignCount:    p.Authenticator.Counter,
	}
	if rej := h.primeCredential(ctx, cred); rej != nil {
		return nil, rej
	}
	if rej := h.primeChallenge(ctx, p.ExpectedChallenge, ceremony.PurposeAuthentication, [][]byte{credID}); rej != nil {
		return nil, rej
	}

	result := eng.FinishAuthentication(ctx, &ceremony.FinishAuthenticationInput{
		Response:          p.Response,
		ExpectedChallenge: p.ExpectedChallenge,
		ExpectedOrigin:    origin,
		ExpectedRPID:      rpID,
		Credential:        cred,
	})
	if result.Rejection != nil {
		return nil, result.Rejection
	}

	return map[string]any{
		"verified": true,
		"authenticationInfo": map[string]any{
			"newCounter": result.NewSignCount,
		},
	}, nil
}

// primeChallenge seeds the store with the caller-supplied expected
// challenge. The process is one-shot, so the challenge the engine consumes
// is the one the caller vouched for; single-use semantics still hold
// against a persistent store shared across invocations.
func (h *Handler) primeChallenge(ctx context.Context, encoded string, purpose ceremony.Purpose, allowed [][]byte) *ceremony.Rejection {
	if encoded == "" {
		return &ceremony.Rejection{Reason: ceremony.ReasonMalformedMessage, Detail: "expectedChallenge is required"}
	}
	value, err := codec.Decode(encoded)
	if err != nil {
		return &ceremony.Rejection{Reason: ceremony.ReasonMalformedEncoding, Detail: "expectedChallenge: " + err.Error()}
	}
	ch := ceremony.Challenge{
		Value:                value,
		Purpose:              purpose,
		AllowedCredentialIDs: allowed,
		ExpiresAt:            h.now().Add(h.cfg.ChallengeTTL),
	}
	if err := h.store.PutChallenge(ctx, ch); err != nil {
		return &ceremony.Rejection{Reason: ceremony.ReasonStoreUnavailable, Detail: "priming challenge: " + err.Error()}
	}
	return nil
}

func (h *Handler) primeCredential(ctx context.Context, cred ceremony.AttestedCredential) *ceremony.Rejection {
	if err := h.store.PutCredential(ctx, cred); err != nil {
		return &ceremony.Rejection{Reason: ceremony.ReasonStoreUnavailable, Detail: "priming credential: " + err.Error()}
	}
	return nil
}
