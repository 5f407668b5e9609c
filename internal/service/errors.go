package service

import (
	"errors"
	"fmt"

	"shortlinks/internal/types"
)

var (
	ErrInvalidURL              = errors.New("invalid url")
	ErrInvalidCode             = errors.New("custom short code must be 4-12 letters, digits, hyphens or underscores")
	ErrReservedCode            = errors.New("short code is reserved")
	ErrCodeTaken               = errors.New("short code is already taken")
	ErrCodeGenerationExhausted = errors.New("failed to generate a unique short code")
	ErrInvalidExpiry           = errors.New("expiry must be in the future")
	ErrInvalidWindow           = errors.New("window must be between 1 and 365 days")

	ErrLinkNotFound = types.ErrLinkNotFound
	ErrLinkInactive = fmt.Errorf("%w: link is inactive", types.ErrLinkNotFound)
	ErrLinkExpired  = errors.New("link has expired")
)
