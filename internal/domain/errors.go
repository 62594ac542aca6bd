package domain

import "errors"

var (
	// ErrNotFound is returned when a requested snapshot does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidConfig indicates a malformed engine configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrEngineClosed is returned by commands issued after disposal.
	ErrEngineClosed = errors.New("engine closed")
)
