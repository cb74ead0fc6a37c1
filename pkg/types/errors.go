package types

import "errors"

// Standard errors returned by the index store and archive readers.
var (
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidID       = errors.New("invalid entity ID")
	ErrInvalidData     = errors.New("invalid entity data")
	ErrStoreClosed     = errors.New("store is closed")
	ErrInvalidCategory = errors.New("invalid archive category")

	// ErrArchiveRootMissing is the one environment failure the maintenance
	// tools treat as hard: data problems are reported, a missing archive
	// tree is not.
	ErrArchiveRootMissing = errors.New("archive root does not exist")
)
