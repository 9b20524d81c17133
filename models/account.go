package models

import "time"

const (
	// MasterAccountUsername is the default username for the master account.
	MasterAccountUsername = "admin"
)

// Account represents an authenticated user of the tracker. Master accounts
// can manage other accounts; regular accounts only see their own library.
type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // bcrypt hash, excluded from API responses
	IsMaster     bool      `json:"isMaster"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// AccountStorage is the persistence representation. Unlike Account, it
// includes the password hash.
type AccountStorage struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"passwordHash"`
	IsMaster     bool      `json:"isMaster"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ToStorage converts an Account to AccountStorage for persistence.
func (a Account) ToStorage() AccountStorage {
	return AccountStorage{
		ID:           a.ID,
		Username:     a.Username,
		PasswordHash: a.PasswordHash,
		IsMaster:     a.IsMaster,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

// ToAccount converts an AccountStorage back to Account.
func (as AccountStorage) ToAccount() Account {
	return Account{
		ID:           as.ID,
		Username:     as.Username,
		PasswordHash: as.PasswordHash,
		IsMaster:     as.IsMaster,
		CreatedAt:    as.CreatedAt,
		UpdatedAt:    as.UpdatedAt,
	}
}
