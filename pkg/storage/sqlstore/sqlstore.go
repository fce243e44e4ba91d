// Package sqlstore implements storage.Driver over database/sql. The sqlite
// and postgres drivers open their own connection and embed a Store.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/quill/pkg/llm"
	"github.com/papercomputeco/quill/pkg/storage"
)

// Dialect captures the differences between the supported databases.
type Dialect struct {
	// Name is used in error messages.
	Name string

	// Numbered placeholders ($1, $2, ...) instead of "?".
	Numbered bool

	// IntegerType is the column type for 64-bit integers.
	IntegerType string
}

var (
	SQLite   = Dialect{Name: "sqlite", IntegerType: "INTEGER"}
	Postgres = Dialect{Name: "postgres", Numbered: true, IntegerType: "BIGINT"}
)

// Store provides storage operations on an open database.
type Store struct {
	DB      *sql.DB
	dialect Dialect
}

// New wraps db and creates the schema if it does not exist yet.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	s := &Store{DB: db, dialect: dialect}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS generations (
			id           TEXT PRIMARY KEY,
			kind         TEXT NOT NULL,
			model        TEXT NOT NULL,
			system       TEXT NOT NULL DEFAULT '',
			prompt       TEXT NOT NULL,
			text         TEXT NOT NULL,
			frames       ` + s.dialect.IntegerType + ` NOT NULL DEFAULT 0,
			status       TEXT NOT NULL,
			error        TEXT NOT NULL DEFAULT '',
			created_at   ` + s.dialect.IntegerType + ` NOT NULL,
			completed_at ` + s.dialect.IntegerType + ` NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS generations_created_at ON generations (created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS generations_kind_created_at ON generations (kind, created_at DESC)`,
	}

	for _, stmt := range statements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create %s schema: %w", s.dialect.Name, err)
		}
	}
	return nil
}

// Put inserts gen unless its ID is already stored.
func (s *Store) Put(ctx context.Context, gen *llm.Generation) (bool, error) {
	if gen == nil {
		return false, errors.New("cannot store nil generation")
	}
	if gen.ID == "" {
		return false, errors.New("cannot store generation without an id")
	}

	res, err := s.DB.ExecContext(ctx, s.rebind(`
		INSERT INTO generations
			(id, kind, model, system, prompt, text, frames, status, error, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`),
		gen.ID, gen.Kind, gen.Model, gen.System, gen.Prompt, gen.Text, gen.Frames,
		string(gen.Status), gen.Error, toMicros(gen.CreatedAt), toMicros(gen.CompletedAt),
	)
	if err != nil {
		return false, fmt.Errorf("could not insert generation: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("could not read insert result: %w", err)
	}
	return n == 1, nil
}

const selectColumns = `SELECT id, kind, model, system, prompt, text, frames, status, error, created_at, completed_at FROM generations`

// Get retrieves a generation by ID.
func (s *Store) Get(ctx context.Context, id string) (*llm.Generation, error) {
	row := s.DB.QueryRowContext(ctx, s.rebind(selectColumns+` WHERE id = ?`), id)

	gen, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get generation: %w", err)
	}
	return gen, nil
}

// List returns generations newest first.
func (s *Store) List(ctx context.Context, opts storage.ListOptions) ([]*llm.Generation, error) {
	opts = opts.Normalize()

	query := selectColumns
	args := []any{}
	if opts.Kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, opts.Kind)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, opts.Limit)

	rows, err := s.DB.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}
	defer rows.Close()

	var result []*llm.Generation
	for rows.Next() {
		gen, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan generation: %w", err)
		}
		result = append(result, gen)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}
	return result, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (*llm.Generation, error) {
	var (
		gen                    llm.Generation
		status                 string
		createdAt, completedAt int64
	)
	err := row.Scan(&gen.ID, &gen.Kind, &gen.Model, &gen.System, &gen.Prompt, &gen.Text,
		&gen.Frames, &status, &gen.Error, &createdAt, &completedAt)
	if err != nil {
		return nil, err
	}

	gen.Status = llm.Status(status)
	gen.CreatedAt = fromMicros(createdAt)
	gen.CompletedAt = fromMicros(completedAt)
	return &gen, nil
}

// rebind rewrites "?" placeholders to "$n" for dialects that number them.
// Queries never contain a literal "?".
func (s *Store) rebind(query string) string {
	if !s.dialect.Numbered {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func toMicros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func fromMicros(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.UnixMicro(v).UTC()
}
