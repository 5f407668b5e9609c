package service

import (
	"cmp"
	"context"
	"slices"
	"time"

	"shortlinks/internal/types"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultWindowDays = 30
	MaxWindowDays     = 365
	topN              = 10

	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
)

// Aggregator builds read-only analytics reports from the event log.
//
// Headline numbers (total clicks, unique visitors) and the device,
// browser, referrer and country breakdowns cover the link's whole
// lifetime; only the per-day series is limited to the window.
type Aggregator struct {
	links  LinkStore
	events EventReader
	now    func() time.Time
}

func NewAggregator(links LinkStore, events EventReader) *Aggregator {
	return &Aggregator{links: links, events: events, now: time.Now}
}

// GetAnalytics returns the link together with its summary.
func (a *Aggregator) GetAnalytics(ctx context.Context, linkID uuid.UUID, windowDays int) (*types.ShortLink, *types.AnalyticsSummary, error) {
	if err := validateWindow(windowDays); err != nil {
		return nil, nil, err
	}
	link, err := a.links.GetByID(ctx, linkID)
	if err != nil {
		return nil, nil, err
	}
	summary, err := a.Summarize(ctx, linkID, windowDays)
	if err != nil {
		return nil, nil, err
	}
	return link, summary, nil
}

func (a *Aggregator) Summarize(ctx context.Context, linkID uuid.UUID, windowDays int) (*types.AnalyticsSummary, error) {
	if err := validateWindow(windowDays); err != nil {
		return nil, err
	}
	since := a.now().Add(-time.Duration(windowDays) * 24 * time.Hour)

	var (
		summary                                 types.AnalyticsSummary
		byDate                                  []types.DateCount
		devices, browsers, referrers, countries []types.GroupCount
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		summary.TotalClicks, err = a.events.CountClicks(gctx, linkID)
		return err
	})
	g.Go(func() (err error) {
		summary.UniqueVisitors, err = a.events.CountUniqueVisitors(gctx, linkID)
		return err
	})
	g.Go(func() (err error) {
		byDate, err = a.events.ClicksByDate(gctx, linkID, since)
		return err
	})
	g.Go(func() (err error) {
		devices, err = a.events.GroupCount(gctx, linkID, types.GroupByDevice, 0)
		return err
	})
	g.Go(func() (err error) {
		browsers, err = a.events.GroupCount(gctx, linkID, types.GroupByBrowser, topN)
		return err
	})
	g.Go(func() (err error) {
		referrers, err = a.events.GroupCount(gctx, linkID, types.GroupByReferrer, topN)
		return err
	})
	g.Go(func() (err error) {
		countries, err = a.events.GroupCount(gctx, linkID, types.GroupByCountry, topN)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary.ClicksByDate = dailySeries(byDate, since)

	summary.DeviceStats = make([]types.DeviceCount, 0, len(devices))
	for _, d := range devices {
		summary.DeviceStats = append(summary.DeviceStats, types.DeviceCount{Device: d.Value, Count: d.Count})
	}

	summary.BrowserStats = make([]types.BrowserCount, 0, topN)
	for _, b := range top(browsers, topN) {
		summary.BrowserStats = append(summary.BrowserStats, types.BrowserCount{Browser: b.Value, Count: b.Count})
	}

	summary.TopReferrers = make([]types.ReferrerCount, 0, topN)
	for _, r := range top(referrers, topN) {
		summary.TopReferrers = append(summary.TopReferrers, types.ReferrerCount{Referrer: r.Value, Count: r.Count})
	}

	summary.CountryStats = make([]types.CountryCount, 0, topN)
	for _, c := range top(countries, topN) {
		summary.CountryStats = append(summary.CountryStats, types.CountryCount{Country: c.Value, Count: c.Count})
	}

	return &summary, nil
}

// RecentClicks returns the newest events for a link. A non-positive limit
// means DefaultHistoryLimit.
func (a *Aggregator) RecentClicks(ctx context.Context, linkID uuid.UUID, limit int) ([]types.ClickEvent, error) {
	if _, err := a.links.GetByID(ctx, linkID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	limit = min(limit, MaxHistoryLimit)

	events, err := a.events.RecentClicks(ctx, linkID, limit)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []types.ClickEvent{}
	}
	return events, nil
}

func validateWindow(days int) error {
	if days < 1 || days > MaxWindowDays {
		return ErrInvalidWindow
	}
	return nil
}

// dailySeries sorts by date and drops any day that ends before since.
// Gaps are left as gaps.
func dailySeries(in []types.DateCount, since time.Time) []types.DateCount {
	first := since.UTC().Format(time.DateOnly)
	out := make([]types.DateCount, 0, len(in))
	for _, d := range in {
		if d.Date < first || d.Clicks <= 0 {
			continue
		}
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b types.DateCount) int { return cmp.Compare(a.Date, b.Date) })
	return out
}

// top orders groups by count, highest first, breaks ties by value and
// keeps at most n, skipping empty values.
func top(groups []types.GroupCount, n int) []types.GroupCount {
	out := make([]types.GroupCount, 0, len(groups))
	for _, g := range groups {
		if g.Value != "" {
			out = append(out, g)
		}
	}
	slices.SortStableFunc(out, func(a, b types.GroupCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Value, b.Value)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
