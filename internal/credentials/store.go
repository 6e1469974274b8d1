// Package credentials stores per-platform, per-user auth tokens sealed at
// rest, with every access recorded in the audit log.
package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"shuttle/internal/audit"
)

// Credential is a platform access grant for one user. Token fields hold
// plaintext only in memory; at rest they are sealed.
type Credential struct {
	Platform     string
	UserID       string
	AccessToken  string
	RefreshToken string
	// ExpiresAt is advisory; the store does not enforce expiry, callers
	// must check it before use.
	ExpiresAt time.Time
}

// Key returns the composite store key.
func (c Credential) Key() string {
	return c.Platform + "/" + c.UserID
}

// Expired reports whether the credential carries an elapsed expiry.
func (c Credential) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// ErrNotFound is returned when no credential exists for a key.
var ErrNotFound = errors.New("credential not found")

// Store persists credentials in the shared SQLite database. Every read,
// write, and removal appends exactly one audit entry naming the composite
// key — never the secret value.
type Store struct {
	db     *sql.DB
	sealer *sealer
	auditL *audit.Log
}

// NewStore builds a credential store sealing tokens with the given secret.
func NewStore(db *sql.DB, secret string, auditLog *audit.Log) (*Store, error) {
	s, err := newSealer(secret)
	if err != nil {
		return nil, err
	}
	if auditLog == nil {
		return nil, errors.New("audit log is required")
	}
	return &Store{db: db, sealer: s, auditL: auditLog}, nil
}

// Set stores or replaces the credential for its composite key.
func (s *Store) Set(ctx context.Context, cred Credential) error {
	platform, userID, err := normalizeKey(cred.Platform, cred.UserID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(cred.AccessToken) == "" {
		return errors.New("access token is required")
	}

	accessSealed, err := s.sealer.seal([]byte(cred.AccessToken))
	if err != nil {
		return err
	}
	var refreshSealed []byte
	if cred.RefreshToken != "" {
		refreshSealed, err = s.sealer.seal([]byte(cred.RefreshToken))
		if err != nil {
			return err
		}
	}

	var expiresAt any
	if !cred.ExpiresAt.IsZero() {
		expiresAt = cred.ExpiresAt.UTC().Format(time.RFC3339Nano)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO credentials (platform, user_id, access_token_sealed, refresh_token_sealed, expires_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT (platform, user_id) DO UPDATE SET
             access_token_sealed = excluded.access_token_sealed,
             refresh_token_sealed = excluded.refresh_token_sealed,
             expires_at = excluded.expires_at,
             updated_at = excluded.updated_at`,
		platform,
		userID,
		accessSealed,
		refreshSealed,
		expiresAt,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("store credential: %w", err)
	}

	return s.auditL.Append(ctx, "credential_set", userID, platform+"/"+userID)
}

// Get fetches the credential for a composite key. Missing keys surface
// ErrNotFound.
func (s *Store) Get(ctx context.Context, platform, userID string) (Credential, error) {
	platform, userID, err := normalizeKey(platform, userID)
	if err != nil {
		return Credential{}, err
	}

	row := s.db.QueryRowContext(
		ctx,
		`SELECT access_token_sealed, refresh_token_sealed, expires_at FROM credentials WHERE platform = ? AND user_id = ?`,
		platform, userID,
	)

	var (
		accessSealed  []byte
		refreshSealed []byte
		expiresRaw    sql.NullString
	)
	err = row.Scan(&accessSealed, &refreshSealed, &expiresRaw)
	if errors.Is(err, sql.ErrNoRows) {
		// The lookup itself is audited even when nothing is found.
		if auditErr := s.auditL.Append(ctx, "credential_get", userID, platform+"/"+userID); auditErr != nil {
			return Credential{}, auditErr
		}
		return Credential{}, fmt.Errorf("%w: %s/%s", ErrNotFound, platform, userID)
	}
	if err != nil {
		return Credential{}, fmt.Errorf("read credential: %w", err)
	}

	access, err := s.sealer.open(accessSealed)
	if err != nil {
		return Credential{}, err
	}
	cred := Credential{
		Platform:    platform,
		UserID:      userID,
		AccessToken: string(access),
	}
	if len(refreshSealed) > 0 {
		refresh, err := s.sealer.open(refreshSealed)
		if err != nil {
			return Credential{}, err
		}
		cred.RefreshToken = string(refresh)
	}
	if expiresRaw.Valid && expiresRaw.String != "" {
		expires, err := time.Parse(time.RFC3339Nano, expiresRaw.String)
		if err != nil {
			return Credential{}, fmt.Errorf("parse credential expiry: %w", err)
		}
		cred.ExpiresAt = expires
	}

	if err := s.auditL.Append(ctx, "credential_get", userID, platform+"/"+userID); err != nil {
		return Credential{}, err
	}
	return cred, nil
}

// Remove deletes the credential for a composite key. Removing a missing key
// is not an error; the removal attempt is still audited.
func (s *Store) Remove(ctx context.Context, platform, userID string) error {
	platform, userID, err := normalizeKey(platform, userID)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(
		ctx,
		`DELETE FROM credentials WHERE platform = ? AND user_id = ?`,
		platform, userID,
	); err != nil {
		return fmt.Errorf("remove credential: %w", err)
	}
	return s.auditL.Append(ctx, "credential_remove", userID, platform+"/"+userID)
}

// Keys lists stored composite keys without touching secret material. The
// listing is not audited because no secret is read.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT platform, user_id FROM credentials ORDER BY platform, user_id`)
	if err != nil {
		return nil, fmt.Errorf("list credential keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var platform, userID string
		if err := rows.Scan(&platform, &userID); err != nil {
			return nil, err
		}
		keys = append(keys, platform+"/"+userID)
	}
	return keys, rows.Err()
}

func normalizeKey(platform, userID string) (string, string, error) {
	platform = strings.ToLower(strings.TrimSpace(platform))
	userID = strings.TrimSpace(userID)
	if platform == "" {
		return "", "", errors.New("platform is required")
	}
	if userID == "" {
		return "", "", errors.New("user id is required")
	}
	return platform, userID, nil
}
