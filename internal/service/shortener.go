package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"shortlinks/internal/cache"
	"shortlinks/internal/types"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

const cacheTTL = 10 * time.Minute

type CreateRequest struct {
	URL        string     `json:"url"`
	CustomCode string     `json:"customShortCode,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

type Shortener struct {
	links     LinkStore
	cache     LinkCache
	allocator *CodeAllocator
	recorder  *Recorder
	baseURL   string
}

// NewShortener wires the create and resolve paths. linkCache may be nil.
func NewShortener(links LinkStore, linkCache LinkCache, recorder *Recorder, baseURL string) *Shortener {
	return &Shortener{
		links:     links,
		cache:     linkCache,
		allocator: NewCodeAllocator(links),
		recorder:  recorder,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// Create returns a link for req.URL. When an active link for the same
// normalized URL exists it is returned instead and created is false.
func (s *Shortener) Create(ctx context.Context, req CreateRequest) (link *types.ShortLink, created bool, err error) {
	originalURL, err := NormalizeURL(req.URL)
	if err != nil {
		return nil, false, err
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
		return nil, false, ErrInvalidExpiry
	}
	if req.CustomCode != "" {
		if err := ValidateCustomCode(req.CustomCode); err != nil {
			return nil, false, err
		}
	}

	existing, err := s.links.FindActiveByURL(ctx, originalURL)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, types.ErrLinkNotFound) {
		return nil, false, err
	}

	if req.CustomCode != "" {
		link, err = s.createCustom(ctx, originalURL, req)
	} else {
		link, err = s.createGenerated(ctx, originalURL, req)
	}
	if err != nil {
		return nil, false, err
	}
	slog.Info("Short link created", "id", link.ID, "code", link.ShortCode)
	return link, true, nil
}

func (s *Shortener) createCustom(ctx context.Context, originalURL string, req CreateRequest) (*types.ShortLink, error) {
	code, err := s.allocator.Allocate(ctx, req.CustomCode)
	if err != nil {
		return nil, err
	}
	link := newLink(originalURL, code, req.ExpiresAt)
	if err := s.links.CreateLink(ctx, link); err != nil {
		if errors.Is(err, types.ErrDuplicateCode) {
			return nil, fmt.Errorf("%w: %q", ErrCodeTaken, code)
		}
		return nil, err
	}
	return link, nil
}

// createGenerated shares one attempt budget between allocator collisions
// and inserts that lose a race on the unique constraint.
func (s *Shortener) createGenerated(ctx context.Context, originalURL string, req CreateRequest) (*types.ShortLink, error) {
	remaining := s.allocator.maxAttempts
	for remaining > 0 {
		code, used, err := s.allocator.generate(ctx, remaining)
		if err != nil {
			return nil, err
		}
		remaining -= used

		link := newLink(originalURL, code, req.ExpiresAt)
		err = s.links.CreateLink(ctx, link)
		if err == nil {
			return link, nil
		}
		if !errors.Is(err, types.ErrDuplicateCode) {
			return nil, err
		}
		slog.Warn("Short code lost insert race, retrying", "code", code, "attempts_left", remaining)
	}
	return nil, ErrCodeGenerationExhausted
}

func newLink(originalURL, code string, expiresAt *time.Time) *types.ShortLink {
	return &types.ShortLink{
		ID:          uuid.New(),
		OriginalURL: originalURL,
		ShortCode:   strings.ToLower(code),
		IsActive:    true,
		ExpiresAt:   expiresAt,
		CreatedAt:   time.Now().UTC(),
	}
}

// Resolve returns the live link for code. Inactive links resolve as not
// found; expiry is checked against the current time on every call.
func (s *Shortener) Resolve(ctx context.Context, code string) (*types.ShortLink, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil, ErrLinkNotFound
	}

	link, err := s.lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	if !link.IsActive {
		return nil, ErrLinkInactive
	}
	if link.Expired(time.Now()) {
		return nil, ErrLinkExpired
	}
	return link, nil
}

// ResolveAndRedirect resolves code and hands the visit to the recorder
// without waiting for it to be written.
func (s *Shortener) ResolveAndRedirect(ctx context.Context, code string, visit types.Visit) (string, error) {
	link, err := s.Resolve(ctx, code)
	if err != nil {
		return "", err
	}

	visit.LinkID = link.ID
	if visit.At.IsZero() {
		visit.At = time.Now()
	}
	if s.recorder != nil {
		s.recorder.Submit(visit)
	}

	return link.OriginalURL, nil
}

func (s *Shortener) lookup(ctx context.Context, code string) (*types.ShortLink, error) {
	if s.cache != nil {
		link, err := s.cache.Get(ctx, code)
		if err == nil {
			return link, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			slog.Warn("Redis error", "error", err)
		}
	}

	link, err := s.links.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, link, cacheTTL); err != nil {
			slog.Warn("Failed to warm up cache", "error", err)
		}
	}
	return link, nil
}

func (s *Shortener) GetLink(ctx context.Context, id uuid.UUID) (*types.ShortLink, error) {
	return s.links.GetByID(ctx, id)
}

// Deactivate turns the link off and evicts it from the cache so the
// redirect path stops serving it.
func (s *Shortener) Deactivate(ctx context.Context, id uuid.UUID) error {
	link, err := s.links.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.links.SetActive(ctx, id, false); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, link.ShortCode); err != nil {
			slog.Warn("Failed to evict link from cache", "code", link.ShortCode, "error", err)
		}
	}
	slog.Info("Short link deactivated", "id", id, "code", link.ShortCode)
	return nil
}

// QRCode renders the short URL of a link as a PNG.
func (s *Shortener) QRCode(ctx context.Context, id uuid.UUID, size int) ([]byte, error) {
	link, err := s.links.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(s.ShortURL(link.ShortCode), qrcode.Medium, size)
}

func (s *Shortener) ShortURL(code string) string {
	return s.baseURL + "/" + code
}

func (s *Shortener) View(link *types.ShortLink) types.LinkView {
	return types.LinkView{
		ID:          link.ID,
		OriginalURL: link.OriginalURL,
		ShortCode:   link.ShortCode,
		ShortURL:    s.ShortURL(link.ShortCode),
		ClickCount:  link.ClickCount,
		ExpiresAt:   link.ExpiresAt,
		CreatedAt:   link.CreatedAt,
	}
}
