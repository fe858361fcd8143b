// Package storage persists the session-scoped blobs: the authenticated
// session under "local_user" and the chosen licence under "licence".
// Backends encode values as JSON; callers read them back into typed
// structures.
package storage

// Well-known blob keys.
const (
	LocalUserKey = "local_user"
	LicenceKey   = "licence"
)

// Store is a small key/value persistence contract. Get decodes the stored
// blob into out and reports whether the key existed; missing keys are not
// errors. Delete on an absent key is a no-op.
type Store interface {
	Get(key string, out any) (bool, error)
	Set(key string, value any) error
	Delete(key string) error
	Clear() error
}
