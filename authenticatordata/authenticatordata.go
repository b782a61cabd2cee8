package authenticatordata

import (
	cose_key "github.com/ldclabs/cose/key"
)

const (
	ADF_USER_PRESENT                 = byte(1)
	ADF_RFU1                         = byte(1 << 1)
	ADF_USER_VERIFIED                = byte(1 << 2)
	ADF_BACKUP_ELIGIBLE              = byte(1 << 3)
	ADF_BACKUP_STATE                 = byte(1 << 4)
	ADF_HAS_ATTESTED_CREDENTIAL_DATA = byte(1 << 6)
	ADF_HAS_EXTENSION_DATA           = byte(1 << 7)
)

// T is the authenticator data structure defined by
// https://www.w3.org/TR/webauthn/#sctn-authenticator-data
type T struct {
	RPIDHash               []byte
	Flags                  byte
	SignCount              uint32
	AttestedCredentialData AttestedCredentialData
	// Extensions (ignored)
}

type AttestedCredentialData struct {
	AAGUID              []byte
	CredentialID        []byte
	CredentialPublicKey cose_key.Key

	// RawCredentialPublicKey keeps the COSE key exactly as the
	// authenticator encoded it, for storage and later verification.
	RawCredentialPublicKey []byte
}

func (t *T) UserPresent() bool {
	return t.Flags&ADF_USER_PRESENT != 0
}

func (t *T) UserVerified() bool {
	return t.Flags&ADF_USER_VERIFIED != 0
}

func (t *T) BackupEligible() bool {
	return t.Flags&ADF_BACKUP_ELIGIBLE != 0
}

func (t *T) BackedUp() bool {
	return t.Flags&ADF_BACKUP_STATE != 0
}

func (t *T) HasAttestedCredentialData() bool {
	return t.Flags&ADF_HAS_ATTESTED_CREDENTIAL_DATA != 0
}
