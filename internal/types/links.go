package types

import (
	"time"

	"github.com/google/uuid"
)

type ShortLink struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	OriginalURL string     `json:"original_url" db:"original_url"`
	ShortCode   string     `json:"short_code" db:"short_code"`
	ClickCount  int64      `json:"click_count" db:"click_count"`
	IsActive    bool       `json:"is_active" db:"is_active"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// Expired reports whether the link has an expiry that is not after now.
func (l *ShortLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}

// LinkView is what callers get back after creating a link. ShortURL is
// derived from the configured base URL and never stored.
type LinkView struct {
	ID          uuid.UUID  `json:"id"`
	OriginalURL string     `json:"originalUrl"`
	ShortCode   string     `json:"shortCode"`
	ShortURL    string     `json:"shortUrl"`
	ClickCount  int64      `json:"clickCount"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}
