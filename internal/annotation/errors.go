package annotation

import (
	"errors"
)

var (
	// ErrDuplicateKey is returned when a well-known template role is added
	// twice. Custom keys never collide; they are auto-uniquified instead.
	ErrDuplicateKey = errors.New("duplicate region key")

	// ErrRegionNotFound is returned for operations referencing an unknown
	// key. The store is left untouched.
	ErrRegionNotFound = errors.New("region not found")
)
