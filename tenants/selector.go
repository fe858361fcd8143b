package tenants

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/sibylline/appkit/events"
	"github.com/sibylline/appkit/identity"
	"github.com/sibylline/appkit/storage"
)

// API is the slice of the HTTP client the selector reconfigures when a
// licence is activated.
type API interface {
	SetEndpoint(host string, tls bool) error
}

// Authenticator re-establishes the session after the endpoint changed.
// session.Manager satisfies this contract.
type Authenticator interface {
	AuthToAPI(ctx context.Context) error
}

// Deps holds all collaborator dependencies for the Selector.
type Deps struct {
	Directory Directory
	API       API
	Sessions  Authenticator
	Provider  identity.Provider
	Storage   storage.Store
	Events    *events.Bus
}

// Selector resolves the licences visible to the authenticated identity
// and activates one. The directory lookup is cached for the session.
type Selector struct {
	deps   Deps
	appKey string
	logger zerolog.Logger

	mu     sync.Mutex
	cached []*Tenant
}

// SelectorOption modifies a Selector at construction time.
type SelectorOption func(*Selector)

// WithLogger sets the selector's logger.
func WithLogger(logger zerolog.Logger) SelectorOption {
	return func(s *Selector) {
		s.logger = logger
	}
}

// NewSelector initializes a Selector. appKey is this application's
// registration key in the tenant directory.
func NewSelector(deps Deps, appKey string, options ...SelectorOption) (*Selector, error) {
	if deps.Directory == nil {
		return nil, errors.New("[NewSelector] directory is required")
	}
	if deps.API == nil {
		return nil, errors.New("[NewSelector] API client is required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("[NewSelector] session manager is required")
	}
	if deps.Provider == nil {
		return nil, errors.New("[NewSelector] identity provider is required")
	}
	if deps.Storage == nil {
		return nil, errors.New("[NewSelector] storage is required")
	}
	if deps.Events == nil {
		return nil, errors.New("[NewSelector] event bus is required")
	}
	if appKey == "" {
		return nil, errors.New("[NewSelector] app key is required")
	}

	selector := &Selector{
		deps:   deps,
		appKey: appKey,
		logger: zerolog.Nop(),
	}
	for _, opt := range options {
		opt(selector)
	}
	return selector, nil
}

// ResolveTenants returns the licences visible to the current identity,
// querying the directory once per session.
func (s *Selector) ResolveTenants(ctx context.Context) ([]*Tenant, error) {
	s.mu.Lock()
	if s.cached != nil {
		cached := append([]*Tenant{}, s.cached...)
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	user := s.deps.Provider.CurrentUser()
	if user == nil {
		return nil, errors.Wrap(ErrNoAuthenticatedIdentity, "[ResolveTenants]")
	}

	list, err := s.deps.Directory.TenantsForUser(ctx, user.UID, s.appKey)
	if err != nil {
		return nil, errors.Wrap(err, "[ResolveTenants] directory query")
	}
	if len(list) == 0 {
		return nil, errors.Wrapf(ErrLicenceNotFound, "[ResolveTenants] uid %q", user.UID)
	}

	s.mu.Lock()
	s.cached = list
	s.mu.Unlock()

	s.deps.Events.Publish(events.LicencesRetrieved, list)
	return append([]*Tenant{}, list...), nil
}

// Activate makes tenant the active licence: persists the choice, repoints
// the API endpoint, and re-authenticates against the new deployment.
// A tenant without an endpoint host fails before anything is mutated.
func (s *Selector) Activate(ctx context.Context, tenant *Tenant) error {
	if tenant == nil || tenant.DB == "" {
		return errors.Wrap(ErrLicenceServerUndefined, "[Activate]")
	}

	s.deps.Events.Publish(events.BeforeLicenceChange, tenant)

	if err := s.deps.Storage.Set(storage.LicenceKey, tenant); err != nil {
		return errors.Wrapf(err, "[Activate] persisting licence %q", tenant.ID)
	}
	if err := s.deps.API.SetEndpoint(tenant.DB, tenant.TLS); err != nil {
		return errors.Wrapf(err, "[Activate] endpoint for licence %q", tenant.ID)
	}
	if err := s.deps.Sessions.AuthToAPI(ctx); err != nil {
		return errors.Wrapf(err, "[Activate] authenticating against %q", tenant.DB)
	}

	s.logger.Info().Str("licence", tenant.ID).Str("host", tenant.DB).Msg("licence activated")
	s.deps.Events.Publish(events.LicenceChanged, tenant)
	return nil
}

// ActivateStored re-activates the persisted licence from a previous run.
// It reports false without error when no licence was stored.
func (s *Selector) ActivateStored(ctx context.Context) (bool, error) {
	var tenant Tenant
	found, err := s.deps.Storage.Get(storage.LicenceKey, &tenant)
	if err != nil {
		return false, errors.Wrap(err, "[ActivateStored] reading licence")
	}
	if !found {
		return false, nil
	}
	return true, s.Activate(ctx, &tenant)
}

// InvalidateCache forgets the cached directory lookup, forcing the next
// ResolveTenants to query again. Called on logout.
func (s *Selector) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = nil
}
