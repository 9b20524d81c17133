package credentials

import (
	"errors"
	"strings"
	"time"

	"showtrackr/internal/database"
	"showtrackr/models"
)

var (
	ErrPINRequired = errors.New("pin is required")
)

// TokenTTL is how long a persisted provider token is trusted. The provider
// issues tokens that last roughly a month; we expire ours a few days early
// so scheduled refreshes re-login before the real expiry.
const TokenTTL = 27 * 24 * time.Hour

// Service is the per-user credential store for the upstream metadata
// provider.
type Service struct {
	repo *database.CredentialRepository
}

// NewService creates a credential service backed by the given repository.
func NewService(repo *database.CredentialRepository) *Service {
	return &Service{repo: repo}
}

// GetUserAuth reads the credential record for a user. A user with no
// record gets a zero-value credential, never a not-found error.
func (s *Service) GetUserAuth(userID string) (models.TVDBCredential, error) {
	return s.repo.Get(userID)
}

// PersistAuth upserts the PIN, token, and a computed expiry for a user.
func (s *Service) PersistAuth(userID, pin, token string) error {
	return s.repo.UpsertAuth(userID, pin, token, time.Now().UTC().Add(TokenTTL))
}

// SavePIN stores a new PIN for the user and clears any issued token, since
// a changed PIN invalidates it.
func (s *Service) SavePIN(userID, pin string) error {
	pin = strings.TrimSpace(pin)
	if pin == "" {
		return ErrPINRequired
	}
	return s.repo.SavePIN(userID, pin)
}

// IsExpired reports whether a token expiry timestamp is absent or past.
func IsExpired(t *time.Time) bool {
	return t == nil || time.Now().After(*t)
}

// LastManualRefresh returns when the user last triggered a manual refresh,
// nil when never.
func (s *Service) LastManualRefresh(userID string) (*time.Time, error) {
	cred, err := s.repo.Get(userID)
	if err != nil {
		return nil, err
	}
	return cred.LastManualRefresh, nil
}

// SetLastManualRefresh stamps the manual-refresh cooldown timestamp. The
// check in the handler and this write are independent calls, so two
// near-simultaneous requests can both pass the cooldown window.
func (s *Service) SetLastManualRefresh(userID string, at time.Time) error {
	return s.repo.SetLastManualRefresh(userID, at)
}

// SetLastRefresh records a completed refresh and its trigger.
func (s *Service) SetLastRefresh(userID string, trigger models.RefreshTrigger, at time.Time) error {
	return s.repo.SetLastRefresh(userID, trigger, at)
}
