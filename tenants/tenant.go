// Package tenants resolves the licences (backend deployments) visible to
// an authenticated identity and activates one, repointing the API client
// and re-establishing the session against the chosen deployment.
package tenants

// Tenant is a licence record from the tenant directory: one backend
// deployment plus its display name. DB is the endpoint host; a tenant
// without a host cannot be activated.
type Tenant struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	DB    string   `json:"db"`
	TLS   bool     `json:"tls"`
	Users []string `json:"users"`
	Apps  []string `json:"apps"`
}
