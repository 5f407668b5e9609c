package service

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const maxURLLength = 2048

var customCodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{4,12}$`)

var reservedCodes = map[string]struct{}{
	"api":       {},
	"admin":     {},
	"analytics": {},
	"health":    {},
	"shorten":   {},
}

// NormalizeURL trims raw, defaults a missing scheme to https and lowercases
// scheme and host. Only absolute http and https URLs are accepted.
func NormalizeURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: url is required", ErrInvalidURL)
	}

	if i := strings.Index(s, "://"); i >= 0 {
		scheme := strings.ToLower(s[:i])
		if scheme != "http" && scheme != "https" {
			return "", fmt.Errorf("%w: scheme %q is not allowed", ErrInvalidURL, scheme)
		}
	} else {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: host is required", ErrInvalidURL)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	normalized := u.String()
	if len(normalized) > maxURLLength {
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidURL, maxURLLength)
	}
	return normalized, nil
}

// ValidateCustomCode checks a caller-chosen code. Reserved words are
// rejected before the format check so "api" reports as reserved.
func ValidateCustomCode(code string) error {
	if IsReserved(code) {
		return fmt.Errorf("%w: %q", ErrReservedCode, code)
	}
	if !customCodePattern.MatchString(code) {
		return ErrInvalidCode
	}
	return nil
}

func IsReserved(code string) bool {
	_, ok := reservedCodes[strings.ToLower(code)]
	return ok
}
