package session

import "errors"

var (
	ErrAuthProviderUnreferenced = errors.New("auth provider unreferenced")
	ErrStructureUnavailable     = errors.New("structure unavailable")
	ErrNotAuthenticated         = errors.New("not authenticated")
)
