package api

import "errors"

var ErrEndpointUndefined = errors.New("endpoint host undefined")
