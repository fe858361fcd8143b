package providerfakes

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/sibylline/appkit/identity"
)

var _ identity.Provider = (*FakeProvider)(nil)

// FakeProvider is a scriptable identity provider for tests.
type FakeProvider struct {
	lock sync.Mutex

	user      *identity.User
	idToken   string
	listeners []func(*identity.User)

	SignInErr  error
	IDTokenErr error

	// IDTokenCalls counts how many tokens were requested.
	IDTokenCalls int
}

// NewFakeProvider returns a provider with no signed-in user.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{}
}

// SetUser installs a signed-in user and the token it will present.
func (p *FakeProvider) SetUser(user *identity.User, idToken string) {
	p.lock.Lock()
	p.user = user
	p.idToken = idToken
	listeners := append([]func(*identity.User){}, p.listeners...)
	p.lock.Unlock()

	for _, listener := range listeners {
		listener(user)
	}
}

func (p *FakeProvider) PasswordSignIn(_ context.Context, email, _ string) (*identity.User, error) {
	if p.SignInErr != nil {
		return nil, p.SignInErr
	}
	user := &identity.User{UID: "uid-" + email, Email: email}
	p.SetUser(user, "fake-id-token")
	return user, nil
}

func (p *FakeProvider) FederatedSignIn(_ context.Context, code string) (*identity.User, error) {
	if p.SignInErr != nil {
		return nil, p.SignInErr
	}
	user := &identity.User{UID: "uid-" + code}
	p.SetUser(user, "fake-id-token")
	return user, nil
}

func (p *FakeProvider) IDToken(context.Context) (string, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.IDTokenCalls++
	if p.IDTokenErr != nil {
		return "", p.IDTokenErr
	}
	if p.user == nil {
		return "", errors.New("not signed in")
	}
	return p.idToken, nil
}

func (p *FakeProvider) CurrentUser() *identity.User {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.user
}

func (p *FakeProvider) OnAuthStateChanged(callback func(*identity.User)) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.listeners = append(p.listeners, callback)
}

func (p *FakeProvider) SignOut(context.Context) error {
	p.lock.Lock()
	p.user = nil
	p.idToken = ""
	listeners := append([]func(*identity.User){}, p.listeners...)
	p.lock.Unlock()

	for _, listener := range listeners {
		listener(nil)
	}
	return nil
}
