// Package sqlite implements the ceremony.Store interface over a SQLite
// file. The atomic operations the ceremonies rely on are expressed as
// single guarded UPDATE statements, so the database serializes racing
// consumers without any application-level locking.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/splitsecure/go-webauthn-ceremony/ceremony"
	"github.com/splitsecure/go-webauthn-ceremony/codec"
)

const schema = `
CREATE TABLE IF NOT EXISTS challenges (
	id TEXT PRIMARY KEY,
	value BLOB NOT NULL,
	purpose TEXT NOT NULL,
	subject TEXT NOT NULL,
	allow_credential_ids TEXT NOT NULL,
	expires_at INTEGER NOT NULL,
	consumed INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS credentials (
	credential_id TEXT PRIMARY KEY,
	subject TEXT NOT NULL,
	public_key BLOB NOT NULL,
	sign_count INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store implements ceremony persistence over SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ ceremony.Store = (*Store)(nil)

// Open opens a ceremony SQLite store at path and applies the schema.
func Open(path string) (*Store, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening sqlite store")
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		sqlDB.Close()
		return nil, errors.Wrap(err, "applying schema")
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.sqlDB.Close()
}

func (s *Store) PutChallenge(ctx context.Context, ch ceremony.Challenge) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	allowed, err := encodeAllowList(ch.AllowedCredentialIDs)
	if err != nil {
		return err
	}

	// A challenge id already on file wins, consumed or not. Re-inserting
	// must never re-arm a consumed challenge across process invocations.
	_, err = s.sqlDB.ExecContext(ctx, `
		INSERT INTO challenges (id, value, purpose, subject, allow_credential_ids, expires_at, consumed)
		VALUES (?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(id) DO NOTHING;`,
		ch.ID(), ch.Value, string(ch.Purpose), ch.Subject, allowed, toMillis(ch.ExpiresAt),
	)
	return errors.Wrap(err, "put challenge")
}

func (s *Store) ConsumeChallenge(ctx context.Context, id string, purpose ceremony.Purpose) (ceremony.Challenge, error) {
	if err := ctx.Err(); err != nil {
		return ceremony.Challenge{}, err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return ceremony.Challenge{}, errors.Wrap(err, "begin consume")
	}
	defer tx.Rollback()

	// The guarded UPDATE is the atomic consume; losers of a race see zero
	// rows affected.
	res, err := tx.ExecContext(ctx, `UPDATE challenges SET consumed = 1 WHERE id = ? AND consumed = 0;`, id)
	if err != nil {
		return ceremony.Challenge{}, errors.Wrap(err, "consume challenge")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return ceremony.Challenge{}, errors.Wrap(err, "consume challenge")
	}
	if affected == 0 {
		return ceremony.Challenge{}, ceremony.ErrNotFound
	}

	row := tx.QueryRowContext(ctx, `
		SELECT value, purpose, subject, allow_credential_ids, expires_at
		FROM challenges WHERE id = ?;`, id)

	var (
		ch        ceremony.Challenge
		purposeDB string
		allowed   string
		expiresAt int64
	)
	if err := row.Scan(&ch.Value, &purposeDB, &ch.Subject, &allowed, &expiresAt); err != nil {
		return ceremony.Challenge{}, errors.Wrap(err, "load consumed challenge")
	}
	if err := tx.Commit(); err != nil {
		return ceremony.Challenge{}, errors.Wrap(err, "commit consume")
	}

	// A purpose mismatch still burns the challenge; the commit above is
	// deliberate.
	if ceremony.Purpose(purposeDB) != purpose {
		return ceremony.Challenge{}, ceremony.ErrNotFound
	}

	ch.Purpose = purpose
	ch.ExpiresAt = fromMillis(expiresAt)
	ch.AllowedCredentialIDs, err = decodeAllowList(allowed)
	if err != nil {
		return ceremony.Challenge{}, err
	}
	return ch, nil
}

func (s *Store) PutCredential(ctx context.Context, cred ceremony.AttestedCredential) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := toMillis(time.Now())
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT OR REPLACE INTO credentials (credential_id, subject, public_key, sign_count, created_at, updated_at)
		VALUES (?1, ?2, ?3, ?4, COALESCE((SELECT created_at FROM credentials WHERE credential_id = ?1), ?5), ?5);`,
		codec.Encode(cred.CredentialID), cred.Subject, cred.PublicKey, int64(cred.SignCount), now,
	)
	return errors.Wrap(err, "put credential")
}

func (s *Store) GetCredential(ctx context.Context, credentialID []byte) (ceremony.AttestedCredential, error) {
	if err := ctx.Err(); err != nil {
		return ceremony.AttestedCredential{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `
		SELECT subject, public_key, sign_count FROM credentials WHERE credential_id = ?;`,
		codec.Encode(credentialID))

	var (
		cred      ceremony.AttestedCredential
		signCount int64
	)
	if err := row.Scan(&cred.Subject, &cred.PublicKey, &signCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ceremony.AttestedCredential{}, ceremony.ErrNotFound
		}
		return ceremony.AttestedCredential{}, errors.Wrap(err, "get credential")
	}
	cred.CredentialID = credentialID
	cred.SignCount = uint32(signCount)
	return cred, nil
}

func (s *Store) UpdateSignCount(ctx context.Context, credentialID []byte, newCount uint32) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	id := codec.Encode(credentialID)
	res, err := s.sqlDB.ExecContext(ctx, `
		UPDATE credentials SET sign_count = ?1, updated_at = ?2
		WHERE credential_id = ?3 AND sign_count < ?1;`,
		int64(newCount), toMillis(time.Now()), id,
	)
	if err != nil {
		return false, errors.Wrap(err, "update sign count")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "update sign count")
	}
	if affected > 0 {
		return true, nil
	}

	var exists int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM credentials WHERE credential_id = ?;`, id).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "update sign count")
	}
	if exists == 0 {
		return false, ceremony.ErrNotFound
	}
	return false, nil
}

// DeleteExpiredChallenges removes challenges whose window has passed.
// Callers run it periodically; the ceremonies never depend on it.
func (s *Store) DeleteExpiredChallenges(ctx context.Context, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx, `DELETE FROM challenges WHERE expires_at < ?;`, toMillis(now))
	return errors.Wrap(err, "delete expired challenges")
}

func encodeAllowList(ids [][]byte) (string, error) {
	encoded := make([]string, 0, len(ids))
	for _, id := range ids {
		encoded = append(encoded, codec.Encode(id))
	}
	out, err := json.Marshal(encoded)
	if err != nil {
		return "", errors.Wrap(err, "encoding allow list")
	}
	return string(out), nil
}

func decodeAllowList(raw string) ([][]byte, error) {
	var encoded []string
	if err := json.Unmarshal([]byte(raw), &encoded); err != nil {
		return nil, errors.Wrap(err, "decoding allow list")
	}
	if len(encoded) == 0 {
		return nil, nil
	}
	ids := make([][]byte, 0, len(encoded))
	for _, e := range encoded {
		id, err := codec.Decode(e)
		if err != nil {
			return nil, errors.Wrap(err, "decoding allow list entry")
		}
		ids = append(ids, id)
	}
	return ids, nil
}
