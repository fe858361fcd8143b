// Package appkit wires the client toolkit together: an HTTP client bound
// to the active licence's endpoint, a session manager that keeps the
// bearer token fresh, a licence selector over the tenant directory, and
// a registry of remote resource collections synchronized into an
// in-memory store.
package appkit

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/sibylline/appkit/api"
	"github.com/sibylline/appkit/assets"
	"github.com/sibylline/appkit/events"
	"github.com/sibylline/appkit/identity"
	"github.com/sibylline/appkit/internal/config"
	"github.com/sibylline/appkit/session"
	"github.com/sibylline/appkit/storage"
	"github.com/sibylline/appkit/store"
	"github.com/sibylline/appkit/tenants"
)

// App is the assembled toolkit. Fields are ready to use after New.
type App struct {
	Store    *store.Store
	Assets   *assets.Registry
	API      *api.Client
	Events   *events.Bus
	Sessions *session.Manager
	Licences *tenants.Selector

	logger zerolog.Logger
}

type options struct {
	logger  zerolog.Logger
	storage storage.Store
}

// Option modifies App construction.
type Option func(*options)

// WithLogger sets the logger propagated to all components.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithStorage overrides the default file-backed blob store.
func WithStorage(s storage.Store) Option {
	return func(o *options) {
		o.storage = s
	}
}

// New assembles an App from the environment configuration, the tenant
// directory, and the registered identity providers. collections names the
// store collections available to RegisterCollection.
func New(directory tenants.Directory, providers map[string]identity.Provider, collections []string, opts ...Option) (*App, error) {
	cfg := config.New()

	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.storage == nil {
		fileStore, err := storage.NewFile(cfg.GetDataFolder())
		if err != nil {
			return nil, errors.Wrap(err, "[New] blob storage")
		}
		o.storage = fileStore
	}

	providerName := cfg.GetIdentityProvider()
	provider, ok := providers[providerName]
	if !ok {
		return nil, errors.Wrapf(session.ErrAuthProviderUnreferenced, "[New] %q", providerName)
	}

	bus := events.New()
	st := store.New(collections...)

	client := api.New("", api.WithLogger(o.logger))
	if host := cfg.GetAPIHost(); host != "" {
		if err := client.SetEndpoint(host, cfg.GetAPITLS()); err != nil {
			return nil, errors.Wrap(err, "[New] default endpoint")
		}
	}

	sessions, err := session.NewManager(session.Deps{
		API:       client,
		Providers: providers,
		Storage:   o.storage,
		Events:    bus,
	}, providerName, session.WithLogger(o.logger))
	if err != nil {
		return nil, errors.Wrap(err, "[New] session manager")
	}

	licences, err := tenants.NewSelector(tenants.Deps{
		Directory: directory,
		API:       client,
		Sessions:  sessions,
		Provider:  provider,
		Storage:   o.storage,
		Events:    bus,
	}, cfg.GetAppKey(), tenants.WithLogger(o.logger))
	if err != nil {
		return nil, errors.Wrap(err, "[New] licence selector")
	}

	// A logout invalidates the cached directory lookup along with the
	// session blobs.
	if err := bus.Subscribe(events.Logout, licences.InvalidateCache); err != nil {
		return nil, errors.Wrap(err, "[New] logout subscription")
	}

	return &App{
		Store:    st,
		Assets:   assets.NewRegistry(),
		API:      client,
		Events:   bus,
		Sessions: sessions,
		Licences: licences,
		logger:   o.logger,
	}, nil
}

// AuthToAPI establishes the authenticated session. See
// session.Manager.AuthToAPI.
func (a *App) AuthToAPI(ctx context.Context) error {
	return a.Sessions.AuthToAPI(ctx)
}

// RegisterCollection creates a resource collection bound to one of the
// app's store collections and registers it under the same name.
func (a *App) RegisterCollection(name, endpoint string, opts ...assets.CollectionOption) (*assets.Collection, error) {
	opts = append([]assets.CollectionOption{assets.WithLogger(a.logger)}, opts...)
	collection, err := assets.NewCollection(a.Store, a.API, name, endpoint, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "[RegisterCollection] %q", name)
	}
	if err := a.Assets.Register(name, collection); err != nil {
		return nil, errors.Wrapf(err, "[RegisterCollection] %q", name)
	}
	return collection, nil
}
