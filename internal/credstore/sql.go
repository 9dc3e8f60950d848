package credstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"consola.app/internal/migrate"
)

// migrationsTable records which credential store migrations were applied.
const migrationsTable = "console_migrations"

//go:embed migrations/*.up.sql
var migrations embed.FS

// SQLStore keeps credentials in a shared PostgreSQL table, one row per key, scoped by profile.
type SQLStore struct {
	typed
	s *sqlKV
}

type sqlKV struct {
	db      *sql.DB
	profile string
	now     func() time.Time
}

// OpenSQL connects through the pgx stdlib driver.
func OpenSQL(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

// NewSQLStore scopes a store to profile on db.
func NewSQLStore(db *sql.DB, profile string) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("credstore: db is required")
	}
	profile = strings.TrimSpace(profile)
	if profile == "" {
		profile = "default"
	}
	s := &sqlKV{db: db, profile: profile, now: time.Now}
	return &SQLStore{typed: typed{kv: s}, s: s}, nil
}

// Migrate brings the backing schema up to date.
func (s *SQLStore) Migrate(ctx context.Context) error {
	files, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewManager(s.s.db, files, migrate.WithTable(migrationsTable))
	if err != nil {
		return err
	}
	if _, err := m.Up(ctx); err != nil {
		return fmt.Errorf("credstore: migrate: %w", err)
	}
	return nil
}

func (s *sqlKV) get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx,
		`select value from console_kv where profile = $1 and key = $2`, s.profile, key,
	).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("credstore: read %s: %w", key, err)
	}
	return v, true, nil
}

func (s *sqlKV) put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`insert into console_kv(profile, key, value, updated_at) values($1,$2,$3,$4)
		 on conflict (profile, key) do update set value = excluded.value, updated_at = excluded.updated_at`,
		s.profile, key, value, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("credstore: write %s: %w", key, err)
	}
	return nil
}

func (s *sqlKV) clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `delete from console_kv where profile = $1`, s.profile); err != nil {
		return fmt.Errorf("credstore: clear: %w", err)
	}
	return nil
}
