package tenants_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sibylline/appkit/events"
	"github.com/sibylline/appkit/identity"
	"github.com/sibylline/appkit/identity/providerfakes"
	"github.com/sibylline/appkit/storage"
	"github.com/sibylline/appkit/tenants"
	"github.com/sibylline/appkit/tenants/dirfakes"
)

type fakeEndpointAPI struct {
	lock sync.Mutex
	host string
	tls  bool
	sets int
	err  error
}

var _ tenants.API = (*fakeEndpointAPI)(nil)

func (f *fakeEndpointAPI) SetEndpoint(host string, tls bool) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.err != nil {
		return f.err
	}
	f.host = host
	f.tls = tls
	f.sets++
	return nil
}

type fakeAuthenticator struct {
	calls int
	err   error
}

var _ tenants.Authenticator = (*fakeAuthenticator)(nil)

func (f *fakeAuthenticator) AuthToAPI(context.Context) error {
	f.calls++
	return f.err
}

type selectorFixture struct {
	directory *dirfakes.FakeDirectory
	api       *fakeEndpointAPI
	sessions  *fakeAuthenticator
	provider  *providerfakes.FakeProvider
	store     *storage.Memory
	bus       *events.Bus
	selector  *tenants.Selector
}

func newSelectorFixture(t *testing.T) *selectorFixture {
	t.Helper()

	fixture := &selectorFixture{
		directory: dirfakes.NewFakeDirectory(),
		api:       &fakeEndpointAPI{},
		sessions:  &fakeAuthenticator{},
		provider:  providerfakes.NewFakeProvider(),
		store:     storage.NewMemory(),
		bus:       events.New(),
	}
	fixture.provider.SetUser(&identity.User{UID: "uid-1"}, "token")

	selector, err := tenants.NewSelector(tenants.Deps{
		Directory: fixture.directory,
		API:       fixture.api,
		Sessions:  fixture.sessions,
		Provider:  fixture.provider,
		Storage:   fixture.store,
		Events:    fixture.bus,
	}, "appkit-test")
	require.NoError(t, err)
	fixture.selector = selector
	return fixture
}

func TestSelector_ResolveTenants(t *testing.T) {
	ctx := context.Background()

	t.Run("filters by user and app key", func(t *testing.T) {
		fixture := newSelectorFixture(t)
		fixture.directory.Upsert("lic-a", &tenants.Tenant{
			Name: "Club A", DB: "a.example.org", TLS: true,
			Users: []string{"uid-1"}, Apps: []string{"appkit-test"},
		})
		fixture.directory.Upsert("lic-b", &tenants.Tenant{
			Name: "Club B", DB: "b.example.org",
			Users: []string{"uid-other"}, Apps: []string{"appkit-test"},
		})
		fixture.directory.Upsert("lic-c", &tenants.Tenant{
			Name: "Club C", DB: "c.example.org",
			Users: []string{"uid-1"}, Apps: []string{"another-app"},
		})

		list, err := fixture.selector.ResolveTenants(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.Equal(t, "lic-a", list[0].ID, "directory id merged onto stored fields")
		require.Equal(t, "Club A", list[0].Name)
	})

	t.Run("second call served from cache", func(t *testing.T) {
		fixture := newSelectorFixture(t)
		fixture.directory.Upsert("lic-a", &tenants.Tenant{
			DB: "a.example.org", Users: []string{"uid-1"}, Apps: []string{"appkit-test"},
		})

		_, err := fixture.selector.ResolveTenants(ctx)
		require.NoError(t, err)
		_, err = fixture.selector.ResolveTenants(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, fixture.directory.Queries)

		fixture.selector.InvalidateCache()
		_, err = fixture.selector.ResolveTenants(ctx)
		require.NoError(t, err)
		require.Equal(t, 2, fixture.directory.Queries)
	})

	t.Run("zero tenants", func(t *testing.T) {
		fixture := newSelectorFixture(t)
		_, err := fixture.selector.ResolveTenants(ctx)
		require.ErrorIs(t, err, tenants.ErrLicenceNotFound)
	})

	t.Run("no authenticated identity", func(t *testing.T) {
		fixture := newSelectorFixture(t)
		require.NoError(t, fixture.provider.SignOut(ctx))

		_, err := fixture.selector.ResolveTenants(ctx)
		require.ErrorIs(t, err, tenants.ErrNoAuthenticatedIdentity)
	})

	t.Run("licencesRetrieved emitted on lookup", func(t *testing.T) {
		fixture := newSelectorFixture(t)
		fixture.directory.Upsert("lic-a", &tenants.Tenant{
			DB: "a.example.org", Users: []string{"uid-1"}, Apps: []string{"appkit-test"},
		})

		var retrieved []*tenants.Tenant
		require.NoError(t, fixture.bus.Subscribe(events.LicencesRetrieved, func(list []*tenants.Tenant) {
			retrieved = list
		}))

		_, err := fixture.selector.ResolveTenants(ctx)
		require.NoError(t, err)
		require.Len(t, retrieved, 1)
	})
}

func TestSelector_Activate(t *testing.T) {
	ctx := context.Background()

	t.Run("missing host fails before any mutation", func(t *testing.T) {
		fixture := newSelectorFixture(t)

		err := fixture.selector.Activate(ctx, &tenants.Tenant{ID: "lic-x", Name: "Broken"})
		require.ErrorIs(t, err, tenants.ErrLicenceServerUndefined)
		require.Zero(t, fixture.api.sets)
		require.Zero(t, fixture.sessions.calls)

		var stored tenants.Tenant
		found, err := fixture.store.Get(storage.LicenceKey, &stored)
		require.NoError(t, err)
		require.False(t, found)
	})

	t.Run("nil tenant rejected", func(t *testing.T) {
		fixture := newSelectorFixture(t)
		err := fixture.selector.Activate(ctx, nil)
		require.ErrorIs(t, err, tenants.ErrLicenceServerUndefined)
	})

	t.Run("activation repoints endpoint and re-authenticates", func(t *testing.T) {
		fixture := newSelectorFixture(t)

		var order []events.Kind
		require.NoError(t, fixture.bus.Subscribe(events.BeforeLicenceChange, func(*tenants.Tenant) {
			order = append(order, events.BeforeLicenceChange)
		}))
		require.NoError(t, fixture.bus.Subscribe(events.LicenceChanged, func(*tenants.Tenant) {
			order = append(order, events.LicenceChanged)
		}))

		tenant := &tenants.Tenant{ID: "lic-a", Name: "Club A", DB: "a.example.org", TLS: true}
		require.NoError(t, fixture.selector.Activate(ctx, tenant))

		require.Equal(t, "a.example.org", fixture.api.host)
		require.True(t, fixture.api.tls)
		require.Equal(t, 1, fixture.sessions.calls)
		require.Equal(t, []events.Kind{events.BeforeLicenceChange, events.LicenceChanged}, order)

		var stored tenants.Tenant
		found, err := fixture.store.Get(storage.LicenceKey, &stored)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "lic-a", stored.ID)
	})

	t.Run("re-authentication failure propagates", func(t *testing.T) {
		fixture := newSelectorFixture(t)
		fixture.sessions.err = context.DeadlineExceeded

		err := fixture.selector.Activate(ctx, &tenants.Tenant{ID: "lic-a", DB: "a.example.org"})
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestSelector_ActivateStored(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing stored", func(t *testing.T) {
		fixture := newSelectorFixture(t)
		activated, err := fixture.selector.ActivateStored(ctx)
		require.NoError(t, err)
		require.False(t, activated)
		require.Zero(t, fixture.sessions.calls)
	})

	t.Run("stored licence re-activated", func(t *testing.T) {
		fixture := newSelectorFixture(t)
		require.NoError(t, fixture.store.Set(storage.LicenceKey, tenants.Tenant{
			ID: "lic-a", DB: "a.example.org", TLS: true,
		}))

		activated, err := fixture.selector.ActivateStored(ctx)
		require.NoError(t, err)
		require.True(t, activated)
		require.Equal(t, "a.example.org", fixture.api.host)
		require.Equal(t, 1, fixture.sessions.calls)
	})
}
