package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"shortlinks/internal/types"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const uniqueViolation = "23505"

const linkColumns = "id, original_url, short_code, click_count, is_active, expires_at, created_at"

// Database is the Postgres-backed link store.
type Database struct {
	db *sqlx.DB
}

func ConnectPostgres(ctx context.Context, url string) (*Database, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", url)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pg := &Database{db: db}

	if err := pg.RunMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return pg, nil
}

func (db *Database) RunMigrations() error {
	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}

	driver, err := postgres.WithInstance(db.db.DB, &postgres.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance(
		"iofs", d,
		"postgres", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	slog.Info("Database migrations applied successfully")
	return nil
}

func (db *Database) Close() error {
	return db.db.Close()
}

// CreateLink inserts a new link. The unique index on lower(short_code) is
// the source of truth for code ownership, so a lost race surfaces here as
// types.ErrDuplicateCode.
func (db *Database) CreateLink(ctx context.Context, link *types.ShortLink) error {
	query := `INSERT INTO links (` + linkColumns + `)
		VALUES (:id, :original_url, :short_code, :click_count, :is_active, :expires_at, :created_at)`

	link.ShortCode = strings.ToLower(link.ShortCode)
	if _, err := db.db.NamedExecContext(ctx, query, link); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", types.ErrDuplicateCode, link.ShortCode)
		}
		return unavailable("create link", err)
	}
	return nil
}

func (db *Database) GetByCode(ctx context.Context, code string) (*types.ShortLink, error) {
	var link types.ShortLink
	query := `SELECT ` + linkColumns + ` FROM links WHERE lower(short_code) = lower($1)`
	if err := db.db.GetContext(ctx, &link, query, code); err != nil {
		return nil, lookupError("get link by code", err)
	}
	return &link, nil
}

func (db *Database) GetByID(ctx context.Context, id uuid.UUID) (*types.ShortLink, error) {
	var link types.ShortLink
	query := `SELECT ` + linkColumns + ` FROM links WHERE id = $1`
	if err := db.db.GetContext(ctx, &link, query, id); err != nil {
		return nil, lookupError("get link by id", err)
	}
	return &link, nil
}

// FindActiveByURL returns the newest active, unexpired link for an already
// normalized URL.
func (db *Database) FindActiveByURL(ctx context.Context, originalURL string) (*types.ShortLink, error) {
	var link types.ShortLink
	query := `SELECT ` + linkColumns + ` FROM links
		WHERE original_url = $1 AND is_active AND (expires_at IS NULL OR expires_at > now())
		ORDER BY created_at DESC
		LIMIT 1`
	if err := db.db.GetContext(ctx, &link, query, originalURL); err != nil {
		return nil, lookupError("find link by url", err)
	}
	return &link, nil
}

func (db *Database) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM links WHERE lower(short_code) = lower($1))`
	if err := db.db.GetContext(ctx, &exists, query, code); err != nil {
		return false, unavailable("check code", err)
	}
	return exists, nil
}

// IncrementClicks adds delta to the stored counter in a single statement.
func (db *Database) IncrementClicks(ctx context.Context, id uuid.UUID, delta int64) error {
	res, err := db.db.ExecContext(ctx, `UPDATE links SET click_count = click_count + $2 WHERE id = $1`, id, delta)
	if err != nil {
		return unavailable("increment clicks", err)
	}
	return requireRow(res, "increment clicks")
}

func (db *Database) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	res, err := db.db.ExecContext(ctx, `UPDATE links SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return unavailable("set active", err)
	}
	return requireRow(res, "set active")
}

func requireRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable(op, err)
	}
	if n == 0 {
		return types.ErrLinkNotFound
	}
	return nil
}

func lookupError(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return types.ErrLinkNotFound
	}
	return unavailable(op, err)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", types.ErrStoreUnavailable, op, err)
}
