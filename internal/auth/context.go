package auth

import (
	"net/http"

	"showtrackr/models"
)

// ContextKey is the type used for request context keys.
type ContextKey string

const (
	// ContextKeyAccountID holds the authenticated account ID.
	ContextKeyAccountID ContextKey = "accountID"
	// ContextKeyIsMaster holds the master account flag.
	ContextKeyIsMaster ContextKey = "isMaster"
	// ContextKeySession holds the full session.
	ContextKeySession ContextKey = "session"
)

// GetAccountID retrieves the authenticated account ID from the request context.
func GetAccountID(r *http.Request) string {
	if id, ok := r.Context().Value(ContextKeyAccountID).(string); ok {
		return id
	}
	return ""
}

// IsMaster reports whether the authenticated account is the master account.
func IsMaster(r *http.Request) bool {
	if isMaster, ok := r.Context().Value(ContextKeyIsMaster).(bool); ok {
		return isMaster
	}
	return false
}

// GetSession retrieves the session from the request context.
func GetSession(r *http.Request) (models.Session, bool) {
	session, ok := r.Context().Value(ContextKeySession).(models.Session)
	return session, ok
}
