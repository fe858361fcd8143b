package assets

import "errors"

var (
	ErrUndefinedID           = errors.New("undefined id")
	ErrCollectionUndefined   = errors.New("assets collection undefined")
	ErrCollectionUnavailable = errors.New("assets collection unavailable")
)
