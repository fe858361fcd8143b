// Package identity abstracts the external identity provider that issues
// the short-lived tokens the backend exchanges for its own session token.
package identity

import "context"

// User is the authenticated principal as reported by the provider.
type User struct {
	UID         string
	Email       string
	DisplayName string
}

// Provider is the contract an external identity provider must satisfy.
// Implementations support password sign-in and a federated (authorization
// code) flow, and can always produce a fresh token for the current user.
type Provider interface {
	// PasswordSignIn authenticates with email/password credentials.
	PasswordSignIn(ctx context.Context, email, password string) (*User, error)

	// FederatedSignIn completes an authorization-code sign-in, as
	// produced by an OAuth popup or redirect.
	FederatedSignIn(ctx context.Context, code string) (*User, error)

	// IDToken returns a fresh token string for the current user,
	// refreshing through the provider when the cached one has expired.
	IDToken(ctx context.Context) (string, error)

	// CurrentUser returns the signed-in user, or nil.
	CurrentUser() *User

	// OnAuthStateChanged registers a callback invoked with the new user
	// on sign-in and with nil on sign-out.
	OnAuthStateChanged(callback func(*User))

	// SignOut discards the provider-side session.
	SignOut(ctx context.Context) error
}
