package database

import (
	"database/sql"
	"fmt"
	"time"

	"showtrackr/models"
)

// CredentialRepository persists per-user TVDB PIN/token records.
type CredentialRepository struct {
	db *sql.DB
}

// NewCredentialRepository creates a credential repository.
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Get returns the credential record for a user. A user with no record gets
// a zero-value credential, never an error.
func (r *CredentialRepository) Get(userID string) (models.TVDBCredential, error) {
	cred := models.TVDBCredential{UserID: userID}

	row := r.db.QueryRow(`
		SELECT pin, token, token_expires_at, last_manual_refresh, last_refresh_at, last_trigger
		FROM tvdb_credentials WHERE user_id = ?`, userID)

	var expires, manual, refresh sql.NullTime
	err := row.Scan(&cred.PIN, &cred.Token, &expires, &manual, &refresh, &cred.LastTrigger)
	if err == sql.ErrNoRows {
		return cred, nil
	}
	if err != nil {
		return cred, fmt.Errorf("get credential: %w", err)
	}
	cred.TokenExpiresAt = nullTimePtr(expires)
	cred.LastManualRefresh = nullTimePtr(manual)
	cred.LastRefreshAt = nullTimePtr(refresh)
	return cred, nil
}

// UpsertAuth stores the PIN, token, and token expiry for a user.
func (r *CredentialRepository) UpsertAuth(userID, pin, token string, expiresAt time.Time) error {
	_, err := r.db.Exec(`
		INSERT INTO tvdb_credentials (user_id, pin, token, token_expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			pin = excluded.pin,
			token = excluded.token,
			token_expires_at = excluded.token_expires_at,
			updated_at = excluded.updated_at`,
		userID, pin, token, expiresAt.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}
	return nil
}

// SavePIN stores a new PIN and clears any issued token. A changed PIN
// invalidates the trustworthiness of a previously issued token.
func (r *CredentialRepository) SavePIN(userID, pin string) error {
	_, err := r.db.Exec(`
		INSERT INTO tvdb_credentials (user_id, pin, token, token_expires_at, updated_at)
		VALUES (?, ?, '', NULL, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			pin = excluded.pin,
			token = '',
			token_expires_at = NULL,
			updated_at = excluded.updated_at`,
		userID, pin, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save pin: %w", err)
	}
	return nil
}

// SetLastManualRefresh stamps the manual-refresh cooldown timestamp.
func (r *CredentialRepository) SetLastManualRefresh(userID string, at time.Time) error {
	return r.stamp(userID, "last_manual_refresh", at)
}

// SetLastRefresh stamps the last refresh time and what triggered it.
func (r *CredentialRepository) SetLastRefresh(userID string, trigger models.RefreshTrigger, at time.Time) error {
	_, err := r.db.Exec(`
		INSERT INTO tvdb_credentials (user_id, last_refresh_at, last_trigger, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			last_refresh_at = excluded.last_refresh_at,
			last_trigger = excluded.last_trigger,
			updated_at = excluded.updated_at`,
		userID, at.UTC(), string(trigger), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("stamp refresh: %w", err)
	}
	return nil
}

func (r *CredentialRepository) stamp(userID, column string, at time.Time) error {
	query := fmt.Sprintf(`
		INSERT INTO tvdb_credentials (user_id, %s, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			%s = excluded.%s,
			updated_at = excluded.updated_at`, column, column, column)
	if _, err := r.db.Exec(query, userID, at.UTC(), time.Now().UTC()); err != nil {
		return fmt.Errorf("stamp %s: %w", column, err)
	}
	return nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
