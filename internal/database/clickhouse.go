package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"shortlinks/internal/types"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/golang-migrate/migrate/v4"
	clickmigrations "github.com/golang-migrate/migrate/v4/database/clickhouse"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
)

//go:embed migrations/clickhouse/*.sql
var migrationsClickHouseFS embed.FS

// groupColumns whitelists the columns GroupCount may interpolate into SQL.
var groupColumns = map[types.GroupField]string{
	types.GroupByDevice:   "device",
	types.GroupByBrowser:  "browser",
	types.GroupByReferrer: "referrer",
	types.GroupByCountry:  "country",
}

var ErrUnknownGroupField = errors.New("unknown group field")

// Analytics is the ClickHouse-backed click event log.
type Analytics struct {
	db *sql.DB
}

func ConnectClickHouse(ctx context.Context, addr, user, pass, dbName string) (*Analytics, error) {
	conn := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: dbName,
			Username: user,
			Password: pass,
		},
		DialTimeout: time.Second * 30,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	a := &Analytics{db: conn}

	if err := a.runMigrations(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return a, nil
}

func (a *Analytics) runMigrations() error {
	d, err := iofs.New(migrationsClickHouseFS, "migrations/clickhouse")
	if err != nil {
		return err
	}

	driver, err := clickmigrations.WithInstance(a.db, &clickmigrations.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance(
		"iofs", d,
		"clickhouse", driver,
	)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	slog.Info("ClickHouse migrations applied successfully")
	return nil
}

func (a *Analytics) Close() error {
	return a.db.Close()
}

// InsertClicks writes the events as one ClickHouse batch. A failed row
// aborts the whole batch so no event is half-recorded.
func (a *Analytics) InsertClicks(ctx context.Context, events []types.ClickEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin click batch", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO clicks
		(id, link_id, ip, user_agent, device, browser, os, referrer, country, city, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return unavailable("prepare click batch", err)
	}
	defer stmt.Close()

	for _, e := range events {
		_, err = stmt.ExecContext(ctx,
			e.ID, e.LinkID, e.IP, e.UserAgent, string(e.Device),
			nullable(e.Browser), nullable(e.OS), nullable(e.Referrer),
			nullable(e.Country), nullable(e.City), e.CreatedAt.UTC())
		if err != nil {
			slog.Error("failed to exec insert for click", "error", err, "link_id", e.LinkID)
			return unavailable("insert click", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return unavailable("commit click batch", err)
	}
	return nil
}

func (a *Analytics) RecentClicks(ctx context.Context, linkID uuid.UUID, limit int) ([]types.ClickEvent, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT
		id, link_id, ip, user_agent, device, browser, os, referrer, country, city, created_at
		FROM clicks WHERE link_id = ? ORDER BY created_at DESC LIMIT ?`, linkID, limit)
	if err != nil {
		return nil, unavailable("recent clicks", err)
	}
	defer rows.Close()

	var events []types.ClickEvent
	for rows.Next() {
		var (
			e      types.ClickEvent
			device string

			browser, os, referrer, country, city sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.LinkID, &e.IP, &e.UserAgent, &device,
			&browser, &os, &referrer, &country, &city, &e.CreatedAt); err != nil {
			return nil, unavailable("scan click", err)
		}
		e.Device = types.Device(device)
		e.Browser, e.OS, e.Referrer = browser.String, os.String, referrer.String
		e.Country, e.City = country.String, city.String
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("recent clicks", err)
	}
	return events, nil
}

func (a *Analytics) CountClicks(ctx context.Context, linkID uuid.UUID) (int64, error) {
	return a.count(ctx, "count clicks", `SELECT count() FROM clicks WHERE link_id = ?`, linkID)
}

func (a *Analytics) CountUniqueVisitors(ctx context.Context, linkID uuid.UUID) (int64, error) {
	return a.count(ctx, "count unique visitors", `SELECT uniqExact(ip) FROM clicks WHERE link_id = ?`, linkID)
}

func (a *Analytics) count(ctx context.Context, op, query string, args ...any) (int64, error) {
	var n uint64
	if err := a.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, unavailable(op, err)
	}
	return int64(n), nil
}

// ClicksByDate groups events at or after since by UTC calendar day,
// ascending. Days without events are absent.
func (a *Analytics) ClicksByDate(ctx context.Context, linkID uuid.UUID, since time.Time) ([]types.DateCount, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT
		formatDateTime(toDate(created_at, 'UTC'), '%Y-%m-%d') AS day, count() AS clicks
		FROM clicks
		WHERE link_id = ? AND created_at >= ?
		GROUP BY day
		ORDER BY day`, linkID, since.UTC())
	if err != nil {
		return nil, unavailable("clicks by date", err)
	}
	defer rows.Close()

	var out []types.DateCount
	for rows.Next() {
		var (
			day    string
			clicks uint64
		)
		if err := rows.Scan(&day, &clicks); err != nil {
			return nil, unavailable("scan clicks by date", err)
		}
		out = append(out, types.DateCount{Date: day, Clicks: int64(clicks)})
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("clicks by date", err)
	}
	return out, nil
}

// GroupCount counts lifetime events per non-null value of field, most
// frequent first. A limit of zero returns every group.
func (a *Analytics) GroupCount(ctx context.Context, linkID uuid.UUID, field types.GroupField, limit int) ([]types.GroupCount, error) {
	column, ok := groupColumns[field]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGroupField, field)
	}

	query := fmt.Sprintf(`SELECT %[1]s AS value, count() AS c
		FROM clicks
		WHERE link_id = ? AND %[1]s IS NOT NULL
		GROUP BY value
		ORDER BY c DESC, value ASC`, column)
	args := []any{linkID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("group clicks by "+column, err)
	}
	defer rows.Close()

	var out []types.GroupCount
	for rows.Next() {
		var (
			value sql.NullString
			c     uint64
		)
		if err := rows.Scan(&value, &c); err != nil {
			return nil, unavailable("scan group "+column, err)
		}
		out = append(out, types.GroupCount{Value: value.String, Count: int64(c)})
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("group clicks by "+column, err)
	}
	return out, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
