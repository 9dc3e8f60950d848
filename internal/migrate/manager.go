// Package migrate applies versioned SQL files from an fs.FS and records
// them in a bookkeeping table.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strings"
	"time"
)

const defaultTable = "schema_migrations"

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Manager executes *.up.sql migrations found in a filesystem.
type Manager struct {
	db    *sql.DB
	files fs.FS
	table string
	now   func() time.Time
}

// Option configures Manager.
type Option func(*Manager)

// WithTable overrides the bookkeeping table name.
func WithTable(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.table = name
		}
	}
}

// NewManager constructs a Manager over the migrations in files.
func NewManager(db *sql.DB, files fs.FS, opts ...Option) (*Manager, error) {
	if db == nil || files == nil {
		return nil, errors.New("migrate: db and files are required")
	}
	m := &Manager{db: db, files: files, table: defaultTable, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	if !tableName.MatchString(m.table) {
		return nil, fmt.Errorf("migrate: invalid table name %q", m.table)
	}
	return m, nil
}

// Up applies all pending migrations in name order and returns the ones applied.
func (m *Manager) Up(ctx context.Context) ([]string, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	executed, err := m.executed(ctx)
	if err != nil {
		return nil, err
	}
	names, err := m.pending(executed)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		if err := m.apply(ctx, name); err != nil {
			return nil, fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return names, nil
}

// Status returns the applied migrations.
func (m *Manager) Status(ctx context.Context) ([]string, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	executed, err := m.executed(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(executed))
	for name := range executed {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Manager) ensureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`create table if not exists %s (
		name text primary key,
		applied_at timestamptz not null default now()
	)`, m.table)
	_, err := m.db.ExecContext(ctx, ddl)
	return err
}

func (m *Manager) executed(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, fmt.Sprintf(`select name from %s`, m.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		result[name] = true
	}
	return result, rows.Err()
}

func (m *Manager) pending(executed map[string]bool) ([]string, error) {
	matches, err := fs.Glob(m.files, "*.up.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	var out []string
	for _, name := range matches {
		if !executed[name] {
			out = append(out, name)
		}
	}
	return out, nil
}

func (m *Manager) apply(ctx context.Context, name string) error {
	body, err := fs.ReadFile(m.files, name)
	if err != nil {
		return err
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range splitStatements(string(body)) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`insert into %s(name, applied_at) values ($1, $2)`, m.table),
		name, m.now().UTC()); err != nil {
		return err
	}
	return tx.Commit()
}

// splitStatements splits SQL on semicolons outside single-quoted strings.
func splitStatements(sql string) []string {
	var stmts []string
	var current strings.Builder
	inString := false
	for _, r := range sql {
		current.WriteRune(r)
		switch r {
		case '\'':
			inString = !inString
		case ';':
			if !inString {
				stmts = append(stmts, current.String())
				current.Reset()
			}
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		stmts = append(stmts, current.String())
	}
	return stmts
}
