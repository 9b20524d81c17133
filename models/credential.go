package models

import "time"

// TVDBCredential is the per-user PIN/token record for the upstream
// metadata provider. The zero value means "no credential stored"; a user
// without a PIN cannot be refreshed.
type TVDBCredential struct {
	UserID            string     `json:"-"`
	PIN               string     `json:"-"` // never exposed over the API
	Token             string     `json:"-"`
	TokenExpiresAt    *time.Time `json:"tokenExpiresAt,omitempty"`
	LastManualRefresh *time.Time `json:"lastManualRefresh,omitempty"`
	LastRefreshAt     *time.Time `json:"lastRefreshAt,omitempty"`
	LastTrigger       string     `json:"lastRefreshTrigger,omitempty"`
}

// HasPIN reports whether a PIN is stored for the user.
func (c TVDBCredential) HasPIN() bool {
	return c.PIN != ""
}
