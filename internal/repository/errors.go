package repository

import "errors"

// ErrNotFound is returned when a row or cache entry does not exist.
var ErrNotFound = errors.New("not found")
