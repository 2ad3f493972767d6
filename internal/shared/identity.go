package shared

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session value keys holding the authenticated identity.
const (
	identityTokenKey    = "token"
	identityUsernameKey = "username"
	identityRoleKey     = "role"
	authStateKey        = "auth_state"
)

// SessionState tracks where a session sits in the login lifecycle.
type SessionState string

const (
	StateUninitialized SessionState = "uninitialized"
	StateAuthenticated SessionState = "authenticated"
	StateLoggedOut     SessionState = "logged_out"
)

// Identity is the operator identity held for the lifetime of a login.
type Identity struct {
	Username string
	Role     string
	Token    string
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == "admin"
}

// TokenExpired inspects the access token's exp claim without verifying the
// signature; the billing service holds the signing key, we only mirror its
// lifetime. Tokens without a readable exp claim are treated as unexpired.
func (i Identity) TokenExpired(now time.Time) bool {
	if i.Token == "" {
		return true
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(i.Token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return now.After(exp.Time)
}

// SetIdentity transitions the session to Authenticated.
func (s *Session) SetIdentity(ident Identity) {
	s.Set(identityTokenKey, ident.Token)
	s.Set(identityUsernameKey, ident.Username)
	s.Set(identityRoleKey, ident.Role)
	s.Set(authStateKey, string(StateAuthenticated))
}

// ClearIdentity transitions the session to LoggedOut and drops the identity.
func (s *Session) ClearIdentity() {
	s.Delete(identityTokenKey)
	s.Delete(identityUsernameKey)
	s.Delete(identityRoleKey)
	s.Set(authStateKey, string(StateLoggedOut))
}

// State returns the session's position in the login lifecycle.
func (s *Session) State() SessionState {
	if s == nil {
		return StateUninitialized
	}
	switch SessionState(s.Get(authStateKey)) {
	case StateAuthenticated:
		return StateAuthenticated
	case StateLoggedOut:
		return StateLoggedOut
	default:
		return StateUninitialized
	}
}

// Identity returns the stored identity and whether the session is
// authenticated with an unexpired token.
func (s *Session) Identity() (Identity, bool) {
	if s == nil || s.State() != StateAuthenticated {
		return Identity{}, false
	}
	ident := Identity{
		Username: s.Get(identityUsernameKey),
		Role:     s.Get(identityRoleKey),
		Token:    s.Get(identityTokenKey),
	}
	if ident.Username == "" || ident.Token == "" {
		return Identity{}, false
	}
	if ident.TokenExpired(time.Now()) {
		return Identity{}, false
	}
	return ident, true
}
