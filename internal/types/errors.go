package types

import "errors"

// Storage-level errors shared by every backend.
var (
	ErrLinkNotFound     = errors.New("link not found")
	ErrDuplicateCode    = errors.New("short code already exists")
	ErrStoreUnavailable = errors.New("store unavailable")
)
