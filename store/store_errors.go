package store

import "errors"

var (
	ErrUndefinedCollection = errors.New("undefined collection")
	ErrUnknownMode         = errors.New("unknown mutation mode")
)
