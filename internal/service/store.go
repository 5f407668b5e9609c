package service

//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks

import (
	"context"
	"time"

	"shortlinks/internal/types"

	"github.com/google/uuid"
)

// LinkStore is the durable code → link mapping. Implementations enforce
// code uniqueness themselves and report a lost insert race as
// types.ErrDuplicateCode.
type LinkStore interface {
	CreateLink(ctx context.Context, link *types.ShortLink) error
	GetByCode(ctx context.Context, code string) (*types.ShortLink, error)
	GetByID(ctx context.Context, id uuid.UUID) (*types.ShortLink, error)
	FindActiveByURL(ctx context.Context, originalURL string) (*types.ShortLink, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	IncrementClicks(ctx context.Context, id uuid.UUID, delta int64) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

// EventWriter appends click events to the event log.
type EventWriter interface {
	InsertClicks(ctx context.Context, events []types.ClickEvent) error
}

// EventReader answers the grouped and ranged queries analytics needs.
type EventReader interface {
	RecentClicks(ctx context.Context, linkID uuid.UUID, limit int) ([]types.ClickEvent, error)
	CountClicks(ctx context.Context, linkID uuid.UUID) (int64, error)
	CountUniqueVisitors(ctx context.Context, linkID uuid.UUID) (int64, error)
	ClicksByDate(ctx context.Context, linkID uuid.UUID, since time.Time) ([]types.DateCount, error)
	GroupCount(ctx context.Context, linkID uuid.UUID, field types.GroupField, limit int) ([]types.GroupCount, error)
}

type LinkCache interface {
	Get(ctx context.Context, shortCode string) (*types.ShortLink, error)
	Set(ctx context.Context, link *types.ShortLink, expiration time.Duration) error
	Delete(ctx context.Context, shortCode string) error
}

type Locator interface {
	Locate(ip string) (country, city string)
}
