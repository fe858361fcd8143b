package tenants

import "errors"

var (
	ErrLicenceNotFound         = errors.New("no licence for identity")
	ErrLicenceServerUndefined  = errors.New("licence server undefined")
	ErrNoAuthenticatedIdentity = errors.New("no authenticated identity")
)
