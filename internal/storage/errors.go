package storage

import "errors"

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnavailable indicates the persisted store could not be opened or a
// transaction failed.
var ErrUnavailable = errors.New("storage unavailable")
