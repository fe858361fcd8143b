package tenants

import "context"

// Directory is the tenant-directory document store. Implementations query
// tenant documents whose user list contains the given uid and whose app
// list contains this application's registration key, merging the
// directory-assigned document id onto the stored fields.
type Directory interface {
	TenantsForUser(ctx context.Context, uid, appKey string) ([]*Tenant, error)
}
