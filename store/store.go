// Package store holds what the persistence backends share.
package store

import "errors"

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")
