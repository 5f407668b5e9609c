package database

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"shortlinks/internal/types"

	"github.com/google/uuid"
)

// Memory keeps links and click events in process memory. It backs local
// development runs and tests, and enforces the same code uniqueness and
// atomic counter rules as the SQL stores.
type Memory struct {
	mu     sync.RWMutex
	links  map[uuid.UUID]*types.ShortLink
	codes  map[string]uuid.UUID
	clicks []types.ClickEvent
}

func NewMemory() *Memory {
	return &Memory{
		links: make(map[uuid.UUID]*types.ShortLink),
		codes: make(map[string]uuid.UUID),
	}
}

func (m *Memory) CreateLink(_ context.Context, link *types.ShortLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	code := strings.ToLower(link.ShortCode)
	if _, exists := m.codes[code]; exists {
		return fmt.Errorf("%w: %s", types.ErrDuplicateCode, code)
	}

	link.ShortCode = code
	stored := *link
	m.links[link.ID] = &stored
	m.codes[code] = link.ID
	return nil
}

func (m *Memory) GetByCode(_ context.Context, code string) (*types.ShortLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.codes[strings.ToLower(code)]
	if !ok {
		return nil, types.ErrLinkNotFound
	}
	link := *m.links[id]
	return &link, nil
}

func (m *Memory) GetByID(_ context.Context, id uuid.UUID) (*types.ShortLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.links[id]
	if !ok {
		return nil, types.ErrLinkNotFound
	}
	link := *stored
	return &link, nil
}

func (m *Memory) FindActiveByURL(_ context.Context, originalURL string) (*types.ShortLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	var found *types.ShortLink
	for _, l := range m.links {
		if l.OriginalURL != originalURL || !l.IsActive || l.Expired(now) {
			continue
		}
		if found == nil || l.CreatedAt.After(found.CreatedAt) {
			found = l
		}
	}
	if found == nil {
		return nil, types.ErrLinkNotFound
	}
	link := *found
	return &link, nil
}

func (m *Memory) CodeExists(_ context.Context, code string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.codes[strings.ToLower(code)]
	return ok, nil
}

func (m *Memory) IncrementClicks(_ context.Context, id uuid.UUID, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, ok := m.links[id]
	if !ok {
		return types.ErrLinkNotFound
	}
	link.ClickCount += delta
	return nil
}

func (m *Memory) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, ok := m.links[id]
	if !ok {
		return types.ErrLinkNotFound
	}
	link.IsActive = active
	return nil
}

func (m *Memory) InsertClicks(_ context.Context, events []types.ClickEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clicks = append(m.clicks, events...)
	return nil
}

func (m *Memory) RecentClicks(_ context.Context, linkID uuid.UUID, limit int) ([]types.ClickEvent, error) {
	events := m.eventsFor(linkID)
	slices.SortStableFunc(events, func(a, b types.ClickEvent) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (m *Memory) CountClicks(_ context.Context, linkID uuid.UUID) (int64, error) {
	return int64(len(m.eventsFor(linkID))), nil
}

func (m *Memory) CountUniqueVisitors(_ context.Context, linkID uuid.UUID) (int64, error) {
	seen := make(map[string]struct{})
	for _, e := range m.eventsFor(linkID) {
		seen[e.IP] = struct{}{}
	}
	return int64(len(seen)), nil
}

func (m *Memory) ClicksByDate(_ context.Context, linkID uuid.UUID, since time.Time) ([]types.DateCount, error) {
	byDay := make(map[string]int64)
	for _, e := range m.eventsFor(linkID) {
		if e.CreatedAt.Before(since) {
			continue
		}
		byDay[e.CreatedAt.UTC().Format(time.DateOnly)]++
	}

	out := make([]types.DateCount, 0, len(byDay))
	for day, n := range byDay {
		out = append(out, types.DateCount{Date: day, Clicks: n})
	}
	slices.SortFunc(out, func(a, b types.DateCount) int { return cmp.Compare(a.Date, b.Date) })
	return out, nil
}

func (m *Memory) GroupCount(_ context.Context, linkID uuid.UUID, field types.GroupField, limit int) ([]types.GroupCount, error) {
	if _, ok := groupColumns[field]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGroupField, field)
	}

	counts := make(map[string]int64)
	for _, e := range m.eventsFor(linkID) {
		if v := fieldValue(e, field); v != "" {
			counts[v]++
		}
	}

	out := make([]types.GroupCount, 0, len(counts))
	for v, n := range counts {
		out = append(out, types.GroupCount{Value: v, Count: n})
	}
	slices.SortFunc(out, func(a, b types.GroupCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Value, b.Value)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) eventsFor(linkID uuid.UUID) []types.ClickEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []types.ClickEvent
	for _, e := range m.clicks {
		if e.LinkID == linkID {
			out = append(out, e)
		}
	}
	return out
}

func fieldValue(e types.ClickEvent, field types.GroupField) string {
	switch field {
	case types.GroupByDevice:
		return string(e.Device)
	case types.GroupByBrowser:
		return e.Browser
	case types.GroupByReferrer:
		return e.Referrer
	case types.GroupByCountry:
		return e.Country
	}
	return ""
}
