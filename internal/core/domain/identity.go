package domain

import "time"

// User is a managed account record. Authentication flows never expose the
// password hash outside the identity provider.
type User struct {
	ID           string
	Username     string
	Email        *string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
}

// RefreshToken is a persisted, rotatable credential for session refresh.
// Only the hash of the raw token is stored.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Expired reports whether the token lifetime has elapsed at the supplied moment.
func (t RefreshToken) Expired(at time.Time) bool {
	return at.After(t.ExpiresAt)
}
