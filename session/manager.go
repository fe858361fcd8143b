package session

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/sibylline/appkit/events"
	"github.com/sibylline/appkit/identity"
	"github.com/sibylline/appkit/storage"
	"github.com/sibylline/appkit/store"
)

const (
	// DefaultExpiryMargin is how long before actual token expiry a
	// persisted session is considered stale and the refresh fires.
	DefaultExpiryMargin = 20 * time.Second

	defaultAuthPath = "users/auth"

	// refreshTimeout bounds the background re-authentication exchange.
	refreshTimeout = 30 * time.Second
)

// API is the slice of the HTTP client the manager drives: the exchange
// endpoint plus the two session headers it exclusively owns.
type API interface {
	PostForm(ctx context.Context, path string, form map[string]string) (any, error)
	SetBearerToken(token string)
	ClearBearerToken()
	SetStructure(structureID string)
	ClearStructure()
}

// Deps holds all collaborator dependencies for the Manager.
type Deps struct {
	API       API
	Providers map[string]identity.Provider
	Storage   storage.Store
	Events    *events.Bus
}

// Manager owns the session lifecycle:
//
//	anonymous -> authenticating -> authenticated -> (expiring -> authenticating) | logged out
//
// A single-shot refresh timer is armed on every successful authentication
// and re-armed only from its own completion handler.
type Manager struct {
	deps         Deps
	providerName string
	authPath     string
	expiryMargin time.Duration
	instanceID   string
	clock        clock.Clock
	logger       zerolog.Logger

	mu              sync.Mutex
	state           State
	current         *Data
	activeStructure string
	inited          bool
	refreshTimer    *clock.Timer
}

// ManagerOption modifies a Manager at construction time.
type ManagerOption func(*Manager)

// WithClock sets the clock (primarily for testing).
func WithClock(c clock.Clock) ManagerOption {
	return func(m *Manager) {
		m.clock = c
	}
}

// WithLogger sets the manager's logger.
func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithExpiryMargin overrides the safety margin before token expiry.
func WithExpiryMargin(margin time.Duration) ManagerOption {
	return func(m *Manager) {
		m.expiryMargin = margin
	}
}

// WithAuthPath overrides the authentication exchange endpoint path.
func WithAuthPath(path string) ManagerOption {
	return func(m *Manager) {
		m.authPath = path
	}
}

// NewManager initializes a Manager with required dependencies.
// providerName selects the identity provider used for the exchange.
func NewManager(deps Deps, providerName string, options ...ManagerOption) (*Manager, error) {
	if deps.API == nil {
		return nil, errors.New("[NewManager] API client is required")
	}
	if deps.Storage == nil {
		return nil, errors.New("[NewManager] storage is required")
	}
	if deps.Events == nil {
		return nil, errors.New("[NewManager] event bus is required")
	}
	if providerName == "" {
		return nil, errors.Wrap(ErrAuthProviderUnreferenced, "[NewManager] provider name is required")
	}

	manager := &Manager{
		deps:         deps,
		providerName: providerName,
		authPath:     defaultAuthPath,
		expiryMargin: DefaultExpiryMargin,
		instanceID:   uuid.NewString(),
		clock:        clock.New(),
		logger:       zerolog.Nop(),
		state:        StateAnonymous,
	}
	for _, opt := range options {
		opt(manager)
	}
	return manager, nil
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// InstanceID identifies this client instance across exchanges.
func (m *Manager) InstanceID() string { return m.instanceID }

// Current returns the adopted session data, or nil.
func (m *Manager) Current() *Data {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// ActiveStructure returns the normalized id of the active structure, or
// an empty string when none is active.
func (m *Manager) ActiveStructure() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeStructure
}

// AuthToAPI establishes an authenticated session against the backing API.
// A persisted session still valid beyond the expiry margin is adopted
// directly; otherwise a full identity-provider exchange runs.
func (m *Manager) AuthToAPI(ctx context.Context) error {
	m.setState(StateAuthenticating)

	var persisted Data
	found, err := m.deps.Storage.Get(storage.LocalUserKey, &persisted)
	if err != nil {
		m.logger.Warn().Err(err).Msg("unreadable persisted session, re-authenticating")
		found = false
	}
	if found && m.remaining(&persisted) > m.expiryMargin {
		m.adopt(&persisted, false)
		return nil
	}

	return m.authenticate(ctx, false)
}

// ActivateStructure switches the active structure to the given id. The id
// must belong to the authenticated identity's structure list.
func (m *Manager) ActivateStructure(id any) error {
	key := store.NormalizeID(id)

	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return errors.Wrap(ErrNotAuthenticated, "[ActivateStructure]")
	}
	if _, ok := m.current.structure(key); !ok {
		m.mu.Unlock()
		return errors.Wrapf(ErrStructureUnavailable, "[ActivateStructure] %q", key)
	}
	m.activeStructure = key
	firstActivation := !m.inited
	m.inited = true
	m.mu.Unlock()

	m.deps.API.SetStructure(key)
	m.deps.Events.Publish(events.StructureChanged, key)
	if firstActivation {
		m.deps.Events.Publish(events.AuthInited)
	}
	return nil
}

// Deauthenticate tears the session down: persisted blobs, headers, timer,
// and in-memory identity. Safe to call from any state, repeatedly.
func (m *Manager) Deauthenticate() {
	m.deps.Events.Publish(events.Logout)
	m.deps.Events.Publish(events.BeforeClearAuth)

	m.mu.Lock()
	if m.refreshTimer != nil {
		m.refreshTimer.Stop()
		m.refreshTimer = nil
	}
	m.current = nil
	m.activeStructure = ""
	m.inited = false
	m.state = StateLoggedOut
	m.mu.Unlock()

	if err := m.deps.Storage.Delete(storage.LocalUserKey); err != nil {
		m.logger.Warn().Err(err).Msg("failed to clear persisted session")
	}
	if err := m.deps.Storage.Delete(storage.LicenceKey); err != nil {
		m.logger.Warn().Err(err).Msg("failed to clear persisted licence")
	}
	m.deps.API.ClearBearerToken()
	m.deps.API.ClearStructure()

	m.deps.Events.Publish(events.AuthCleared)
}

// authenticate performs the full exchange: identity-provider token in,
// backend session token out, persisted and adopted.
func (m *Manager) authenticate(ctx context.Context, isRefresh bool) error {
	provider, ok := m.deps.Providers[m.providerName]
	if !ok {
		return errors.Wrapf(ErrAuthProviderUnreferenced, "[authenticate] %q", m.providerName)
	}

	idToken, err := provider.IDToken(ctx)
	if err != nil {
		return errors.Wrap(err, "[authenticate] identity provider token")
	}

	raw, err := m.deps.API.PostForm(ctx, m.authPath, map[string]string{
		"token":    idToken,
		"instance": m.instanceID,
	})
	if err != nil {
		return errors.Wrap(err, "[authenticate] session exchange")
	}

	session, err := decodeSession(raw)
	if err != nil {
		return errors.Wrap(err, "[authenticate] session exchange")
	}
	if session.Token.Exp == 0 {
		if exp, ok := tokenExpiry(session.Token.JWT); ok {
			session.Token.Exp = exp
		}
	}

	if err := m.deps.Storage.Set(storage.LocalUserKey, session); err != nil {
		m.logger.Warn().Err(err).Msg("failed to persist session")
	}

	m.adopt(session, isRefresh)
	return nil
}

// adopt installs a session: bearer header, refresh timer, structure
// activation, and the notification fan-out.
func (m *Manager) adopt(session *Data, isRefresh bool) {
	m.deps.API.SetBearerToken(session.Token.JWT)

	m.mu.Lock()
	m.current = session
	m.state = StateAuthenticated
	m.armRefreshLocked(m.remaining(session) - m.expiryMargin)
	keepStructure := m.activeStructure
	if _, stillThere := session.structure(keepStructure); !stillThere {
		keepStructure = ""
		m.activeStructure = ""
	}
	m.mu.Unlock()

	m.deps.Events.Publish(events.AuthChanged)
	if isRefresh {
		m.deps.Events.Publish(events.AuthRefreshed)
	}

	if keepStructure != "" {
		m.deps.API.SetStructure(keepStructure)
		return
	}
	m.activateInitialStructure(session)
}

// activateInitialStructure applies the tenant-activation rules: the
// primary structure wins when present, a single structure activates
// implicitly, multiple structures wait for an explicit choice.
func (m *Manager) activateInitialStructure(session *Data) {
	primary := store.NormalizeID(session.Login.PrimaryStructure)
	if primary != "" {
		if _, ok := session.structure(primary); ok {
			if err := m.ActivateStructure(primary); err != nil {
				m.logger.Error().Err(err).Msg("primary structure activation failed")
			}
			return
		}
		m.logger.Warn().Str("structure", primary).Msg("primary structure not in authorized list")
	}

	switch len(session.Structures) {
	case 0:
		// Not fatal, but resource requests will likely return nothing.
		m.logger.Warn().Msg("identity has no structures")
		m.markInited()
	case 1:
		if err := m.ActivateStructure(session.Structures[0].ID); err != nil {
			m.logger.Error().Err(err).Msg("structure activation failed")
		}
	default:
		// Several candidates and no primary: the caller must choose via
		// ActivateStructure before authInited fires.
	}
}

func (m *Manager) markInited() {
	m.mu.Lock()
	first := !m.inited
	m.inited = true
	m.mu.Unlock()
	if first {
		m.deps.Events.Publish(events.AuthInited)
	}
}

// refresh is the timer callback. Failures surface as authError
// notifications; the manager stays authenticated with its aging token.
func (m *Manager) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	if err := m.authenticate(ctx, true); err != nil {
		m.logger.Error().Err(err).Msg("session refresh failed")
		m.deps.Events.Publish(events.AuthError, err.Error())
	}
}

// armRefreshLocked replaces the scheduled refresh. Callers hold m.mu.
// The floor keeps a server handing out near-expired tokens from turning
// the timer into a busy loop.
func (m *Manager) armRefreshLocked(d time.Duration) {
	if d < time.Second {
		d = time.Second
	}
	if m.refreshTimer != nil {
		m.refreshTimer.Stop()
	}
	m.refreshTimer = m.clock.AfterFunc(d, m.refresh)
}

func (m *Manager) remaining(session *Data) time.Duration {
	return time.Unix(session.Token.Exp, 0).Sub(m.clock.Now())
}

func (m *Manager) setState(state State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
}

// decodeSession converts envelope data into a session blob through a
// JSON round-trip, since the envelope's data field is untyped.
func decodeSession(raw any) (*Data, error) {
	blob, err := sonic.Marshal(raw)
	if err != nil {
		return nil, errors.Wrap(err, "[decodeSession] encoding response data")
	}
	var session Data
	if err := sonic.Unmarshal(blob, &session); err != nil {
		return nil, errors.Wrap(err, "[decodeSession] decoding session")
	}
	if session.Token.JWT == "" {
		return nil, errors.New("[decodeSession] response carries no session token")
	}
	return &session, nil
}
