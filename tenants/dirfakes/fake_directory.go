package dirfakes

import (
	"context"
	"slices"
	"sync"

	"github.com/sibylline/appkit/tenants"
)

var _ tenants.Directory = (*FakeDirectory)(nil)

// FakeDirectory is an in-memory tenant directory for tests.
type FakeDirectory struct {
	lock sync.RWMutex
	docs map[string]*tenants.Tenant

	// Err, when set, fails every query.
	Err error

	// Queries counts TenantsForUser calls.
	Queries int
}

// NewFakeDirectory returns an empty directory.
func NewFakeDirectory() *FakeDirectory {
	return &FakeDirectory{docs: make(map[string]*tenants.Tenant)}
}

// Upsert stores a tenant document under id.
func (d *FakeDirectory) Upsert(id string, tenant *tenants.Tenant) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.docs[id] = tenant
}

func (d *FakeDirectory) TenantsForUser(_ context.Context, uid, appKey string) ([]*tenants.Tenant, error) {
	d.lock.Lock()
	d.Queries++
	d.lock.Unlock()

	d.lock.RLock()
	defer d.lock.RUnlock()
	if d.Err != nil {
		return nil, d.Err
	}

	matches := make([]*tenants.Tenant, 0)
	for id, doc := range d.docs {
		if !slices.Contains(doc.Users, uid) || !slices.Contains(doc.Apps, appKey) {
			continue
		}
		// Directory-assigned id merged onto the stored fields.
		merged := *doc
		merged.ID = id
		matches = append(matches, &merged)
	}
	return matches, nil
}
