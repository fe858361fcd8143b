// Package session owns the authenticated identity: the backend session
// token and its refresh cycle, the persisted session blob, and the active
// structure applied to outgoing requests.
package session

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/sibylline/appkit/store"
)

// State tracks where the manager is in its lifecycle.
type State string

const (
	StateAnonymous      State = "anonymous"
	StateAuthenticating State = "authenticating"
	StateAuthenticated  State = "authenticated"
	StateLoggedOut      State = "logged_out"
)

// TokenData is the backend session token with its expiry timestamp
// (unix seconds).
type TokenData struct {
	JWT string `json:"jwt"`
	Exp int64  `json:"exp"`
}

// LoginData carries per-login settings from the authentication response.
type LoginData struct {
	PrimaryStructure any `json:"primary_structure"`
}

// Structure is a backend organization the identity may act under. The
// backend serializes ids as either numbers or strings; Key normalizes.
type Structure struct {
	ID   any    `json:"id"`
	Name string `json:"name"`
}

// Key returns the structure id in canonical string form.
func (s Structure) Key() string {
	return store.NormalizeID(s.ID)
}

// Data is the persisted session blob stored under storage.LocalUserKey.
type Data struct {
	Token      TokenData   `json:"token"`
	Login      LoginData   `json:"login"`
	Structures []Structure `json:"structures"`
}

// structure returns the structure matching key, if any.
func (d *Data) structure(key string) (Structure, bool) {
	for _, s := range d.Structures {
		if s.Key() == key {
			return s, true
		}
	}
	return Structure{}, false
}

// tokenExpiry recovers the expiry claim from an unverified JWT, for
// responses that omit the exp field next to the token.
func tokenExpiry(raw string) (int64, bool) {
	token, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return 0, false
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0, false
	}
	return exp.Unix(), true
}
