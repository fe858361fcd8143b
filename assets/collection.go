// Package assets orchestrates remote resource collections: fetch by id or
// by filter, keep the backing store in sync with server responses, and
// remember which identifiers the server has confirmed absent so they are
// not requested again.
package assets

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/sibylline/appkit/store"
)

// DefaultIDParam is the payload key under which identifier lists travel
// unless the collection is configured otherwise.
const DefaultIDParam = "id"

// Fetcher issues a GET against the resource endpoint and returns the
// decoded envelope data. api.Client satisfies this contract.
type Fetcher interface {
	Get(ctx context.Context, path string, query map[string]string) (any, error)
}

// UpdateAction replaces direct store mutation for callers that route
// updates through their own named action. It must have the same net
// effect as a refresh mutation on the target collection.
type UpdateAction func(items []store.Item) error

// ResetAction replaces direct store mutation for collection resets.
type ResetAction func() error

// Collection binds a named store collection to a remote endpoint.
//
// Concurrent GetByID calls for the same unresolved id each issue their own
// request; there is no in-flight coalescing. The single response-merge
// path keeps the store consistent regardless.
type Collection struct {
	store    *store.Store
	notFound *store.NotFoundCache
	client   Fetcher
	logger   zerolog.Logger

	name        string
	endpoint    string
	queryParams map[string]string
	idParam     string
	pendingKey  string

	updateAction UpdateAction
	resetAction  ResetAction

	pendingMu sync.Mutex
	pending   int
}

// CollectionOption modifies a Collection at construction time.
type CollectionOption func(*Collection)

// WithQueryParams fixes query parameters merged into every request.
func WithQueryParams(params map[string]string) CollectionOption {
	return func(c *Collection) {
		c.queryParams = params
	}
}

// WithIDParam overrides the payload key carrying identifier lists.
func WithIDParam(param string) CollectionOption {
	return func(c *Collection) {
		c.idParam = param
	}
}

// WithPendingKey names the pending-state flag for this collection.
func WithPendingKey(key string) CollectionOption {
	return func(c *Collection) {
		c.pendingKey = key
	}
}

// WithUpdateAction delegates store updates to a named action.
func WithUpdateAction(action UpdateAction) CollectionOption {
	return func(c *Collection) {
		c.updateAction = action
	}
}

// WithResetAction delegates store resets to a named action.
func WithResetAction(action ResetAction) CollectionOption {
	return func(c *Collection) {
		c.resetAction = action
	}
}

// WithLogger sets the collection's logger.
func WithLogger(logger zerolog.Logger) CollectionOption {
	return func(c *Collection) {
		c.logger = logger
	}
}

// NewCollection binds the named store collection to endpoint. The
// collection must already be addressable in the backing store.
func NewCollection(st *store.Store, client Fetcher, name, endpoint string, options ...CollectionOption) (*Collection, error) {
	if st == nil {
		return nil, errors.New("[NewCollection] store is required")
	}
	if client == nil {
		return nil, errors.New("[NewCollection] client is required")
	}
	if name == "" || !st.Has(name) {
		return nil, errors.Wrapf(store.ErrUndefinedCollection, "[NewCollection] %q", name)
	}
	if endpoint == "" {
		return nil, errors.New("[NewCollection] endpoint is required")
	}

	collection := &Collection{
		store:      st,
		notFound:   store.NewNotFoundCache(),
		client:     client,
		logger:     zerolog.Nop(),
		name:       name,
		endpoint:   endpoint,
		idParam:    DefaultIDParam,
		pendingKey: name + "Pending",
	}
	for _, opt := range options {
		opt(collection)
	}
	return collection, nil
}

// Name returns the backing collection name.
func (c *Collection) Name() string { return c.name }

// PendingKey identifies this collection's pending-state flag.
func (c *Collection) PendingKey() string { return c.pendingKey }

// Pending reports whether a list load is currently in flight.
func (c *Collection) Pending() bool {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	return c.pending > 0
}

// IsNotFound reports whether id is currently known to be absent upstream.
func (c *Collection) IsNotFound(id any) bool {
	return c.notFound.IsNotFound(id)
}

type getConfig struct {
	bypassNotFoundCache bool
}

// GetOption modifies a single GetByID call.
type GetOption func(*getConfig)

// BypassNotFoundCache forces a network lookup even when the id was
// previously confirmed absent.
func BypassNotFoundCache() GetOption {
	return func(cfg *getConfig) {
		cfg.bypassNotFoundCache = true
	}
}

// GetByID resolves a single resource. Resolution order: the local
// collection, then the not-found cache, then a singular fetch against
// {endpoint}/{id}. A nil item with a nil error means the resource is
// confirmed absent upstream.
func (c *Collection) GetByID(ctx context.Context, id any, options ...GetOption) (store.Item, error) {
	cfg := getConfig{}
	for _, opt := range options {
		opt(&cfg)
	}

	normalized := store.NormalizeID(id)
	if normalized == "" {
		return nil, errors.Wrapf(ErrUndefinedID, "[GetByID] collection %q", c.name)
	}

	// Presence in the collection is authoritative and resurrects the id
	// from any prior not-found state.
	if item, found, err := c.store.Get(c.name, normalized); err != nil {
		return nil, errors.Wrapf(err, "[GetByID] collection %q", c.name)
	} else if found {
		c.notFound.ClearNotFound(normalized)
		return item, nil
	}

	if !cfg.bypassNotFoundCache && c.notFound.IsNotFound(normalized) {
		c.logger.Warn().Str("collection", c.name).Str("id", normalized).
			Msg("id known to be absent upstream, skipping fetch")
		return nil, nil
	}

	data, err := c.client.Get(ctx, c.endpoint+"/"+normalized, cloneParams(c.queryParams))
	if err != nil {
		return nil, errors.Wrapf(err, "[GetByID] fetching %s/%s", c.endpoint, normalized)
	}

	items := toItems(data)
	if len(items) == 0 {
		c.notFound.MarkNotFound(normalized)
		return nil, nil
	}

	c.notFound.ClearNotFound(normalized)
	if err := c.applyUpdate(items); err != nil {
		return nil, errors.Wrapf(err, "[GetByID] merging %s/%s", c.endpoint, normalized)
	}

	for _, item := range items {
		if item.ID() == normalized {
			return item, nil
		}
	}
	return items[0], nil
}

// ListNotLoadedIDs filters ids down to those that are neither present in
// the collection nor confirmed absent upstream. Duplicate ids are checked
// once. With bypassNotFoundCache set, confirmed-absent ids are retained.
func (c *Collection) ListNotLoadedIDs(ids []string, bypassNotFoundCache bool) ([]string, error) {
	seen := make(map[string]struct{}, len(ids))
	notLoaded := make([]string, 0, len(ids))
	for _, raw := range ids {
		id := store.NormalizeID(raw)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		_, found, err := c.store.Get(c.name, id)
		if err != nil {
			return nil, errors.Wrapf(err, "[ListNotLoadedIDs] collection %q", c.name)
		}
		if found {
			continue
		}
		if !bypassNotFoundCache && c.notFound.IsNotFound(id) {
			continue
		}
		notLoaded = append(notLoaded, id)
	}
	return notLoaded, nil
}

// Load fetches a filtered list of resources and merges the response into
// the collection. When the payload carries an identifier list under the
// configured id parameter, already-resolved ids are stripped first; if
// nothing is left to request, Load returns without a network call.
func (c *Collection) Load(ctx context.Context, payload map[string]string) ([]store.Item, error) {
	merged := cloneParams(c.queryParams)
	for key, value := range payload {
		merged[key] = value
	}

	var requested []string
	if rawIDs, ok := merged[c.idParam]; ok {
		filtered, err := c.ListNotLoadedIDs(splitIDs(rawIDs), false)
		if err != nil {
			return nil, errors.Wrap(err, "[Load] filtering id list")
		}
		// An empty filtered list would otherwise turn into an unfiltered
		// "fetch everything" request.
		if len(filtered) == 0 {
			return nil, nil
		}
		merged[c.idParam] = strings.Join(filtered, ",")
		requested = filtered
	}

	c.setPending(1)
	defer c.setPending(-1)

	data, err := c.client.Get(ctx, c.endpoint, merged)
	if err != nil {
		return nil, errors.Wrapf(err, "[Load] fetching %s", c.endpoint)
	}

	items := toItems(data)
	if requested != nil {
		returned := make(map[string]struct{}, len(items))
		for _, item := range items {
			returned[item.ID()] = struct{}{}
		}
		for _, id := range requested {
			if _, ok := returned[id]; ok {
				c.notFound.ClearNotFound(id)
			} else {
				c.notFound.MarkNotFound(id)
			}
		}
	}

	if err := c.applyUpdate(items); err != nil {
		return nil, errors.Wrapf(err, "[Load] merging %s", c.endpoint)
	}
	return items, nil
}

// Reset clears the not-found cache and empties the collection.
func (c *Collection) Reset() error {
	c.notFound.Clear()
	if c.resetAction != nil {
		return errors.Wrapf(c.resetAction(), "[Reset] collection %q", c.name)
	}
	return errors.Wrapf(c.store.Mutate(c.name, nil, store.ModeReplace), "[Reset] collection %q", c.name)
}

func (c *Collection) applyUpdate(items []store.Item) error {
	if c.updateAction != nil {
		return c.updateAction(items)
	}
	return c.store.Mutate(c.name, items, store.ModeRefresh)
}

func (c *Collection) setPending(delta int) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	c.pending += delta
	if c.pending < 0 {
		c.pending = 0
	}
}

func cloneParams(params map[string]string) map[string]string {
	clone := make(map[string]string, len(params))
	for key, value := range params {
		clone[key] = value
	}
	return clone
}

func splitIDs(raw string) []string {
	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return ids
}

// toItems normalizes envelope data into items: a single record becomes a
// one-item slice, a list maps element-wise, anything else is empty.
func toItems(data any) []store.Item {
	switch v := data.(type) {
	case map[string]any:
		if len(v) == 0 {
			return nil
		}
		return []store.Item{store.Item(v)}
	case []any:
		items := make([]store.Item, 0, len(v))
		for _, element := range v {
			if record, ok := element.(map[string]any); ok {
				items = append(items, store.Item(record))
			}
		}
		return items
	default:
		return nil
	}
}
