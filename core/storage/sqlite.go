package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/artpar/typedwire/adapters/clock"
	"github.com/artpar/typedwire/adapters/idgen"
	"github.com/artpar/typedwire/core/codec"
	"github.com/artpar/typedwire/core/message"
	"github.com/artpar/typedwire/core/validation"
	"github.com/artpar/typedwire/core/wireerr"
	"github.com/artpar/typedwire/ports"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS messages (
  id         TEXT PRIMARY KEY,
  type_name  TEXT NOT NULL,
  format     TEXT NOT NULL,
  payload    BLOB NOT NULL,
  created_at INTEGER NOT NULL
)`

const createIndexSQL = `CREATE INDEX IF NOT EXISTS idx_messages_type_name ON messages(type_name)`

// SQLiteArchive implements Archive with SQLite.
type SQLiteArchive struct {
	db      *sql.DB
	format  codec.WireFormat
	formats *codec.Registry
	clock   ports.Clock
	ids     ports.IDGenerator
	logger  zerolog.Logger
}

// Option configures a SQLiteArchive.
type Option func(*SQLiteArchive)

// WithFormat sets the wire format new records are packed with.
func WithFormat(f codec.WireFormat) Option {
	return func(a *SQLiteArchive) { a.format = f }
}

// WithFormats sets the registry used to find the format of stored records.
func WithFormats(r *codec.Registry) Option {
	return func(a *SQLiteArchive) { a.formats = r }
}

// WithClock sets the clock that stamps new records.
func WithClock(c ports.Clock) Option {
	return func(a *SQLiteArchive) { a.clock = c }
}

// WithIDGenerator sets the generator of record ids.
func WithIDGenerator(g ports.IDGenerator) Option {
	return func(a *SQLiteArchive) { a.ids = g }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(a *SQLiteArchive) { a.logger = l }
}

// NewSQLiteArchive opens the database at path and creates the archive table.
func NewSQLiteArchive(ctx context.Context, path string, opts ...Option) (*SQLiteArchive, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// an in-memory database exists per connection
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	a, err := NewSQLiteArchiveFromDB(ctx, db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

// NewSQLiteArchiveFromDB creates an archive on an existing connection.
func NewSQLiteArchiveFromDB(ctx context.Context, db *sql.DB, opts ...Option) (*SQLiteArchive, error) {
	a := &SQLiteArchive{
		db:      db,
		format:  codec.NewJSON(),
		formats: codec.DefaultRegistry,
		clock:   clock.Real{},
		ids:     idgen.TimeOrdered{},
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		return nil, fmt.Errorf("create table messages: %w", err)
	}
	if _, err := db.ExecContext(ctx, createIndexSQL); err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return a, nil
}

// Put validates m, packs it with the archive format and stores it.
func (a *SQLiteArchive) Put(ctx context.Context, m *message.Message) (string, error) {
	if m == nil {
		return "", fmt.Errorf("put: %w: nil message", wireerr.ErrIncompatible)
	}
	if err := validation.Validate(m); err != nil {
		return "", err
	}

	t := m.Type()
	payload, err := a.format.Pack(t, m)
	if err != nil {
		return "", err
	}

	id := a.ids.New()
	now := a.clock.Now()
	_, err = a.db.ExecContext(ctx,
		"INSERT INTO messages (id, type_name, format, payload, created_at) VALUES (?, ?, ?, ?, ?)",
		id, t.TypeName(), a.format.Name(), payload, now.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("insert: %w", err)
	}

	a.logger.Debug().
		Str("id", id).
		Str("type", t.TypeName()).
		Int("bytes", len(payload)).
		Msg("message archived")
	return id, nil
}

// Record returns the stored record with the given id.
func (a *SQLiteArchive) Record(ctx context.Context, id string) (Record, error) {
	row := a.db.QueryRowContext(ctx,
		"SELECT id, type_name, format, payload, created_at FROM messages WHERE id = ?", id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get %s: %w", id, err)
	}
	return rec, nil
}

// Get unpacks the record with the given id as a message of type t. The
// record must have been stored as a message of type t.
func (a *SQLiteArchive) Get(ctx context.Context, t *message.Type, id string) (*message.Message, error) {
	rec, err := a.Record(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.TypeName != t.TypeName() {
		return nil, fmt.Errorf("%w: record %s holds %s, not %s",
			wireerr.ErrIncompatible, id, rec.TypeName, t.TypeName())
	}

	f := a.format
	if rec.Format != f.Name() {
		var ok bool
		if f, ok = a.formats.Get(rec.Format); !ok {
			return nil, fmt.Errorf("record %s: unknown wire format %q", id, rec.Format)
		}
	}
	return f.Unpack(t, rec.Payload)
}

// List returns the records of a type in insertion order.
func (a *SQLiteArchive) List(ctx context.Context, typeName string, opts ListOptions) ([]Record, error) {
	query := "SELECT id, type_name, format, payload, created_at FROM messages WHERE type_name = ? ORDER BY created_at, rowid"
	args := []any{typeName}
	if opts.Limit > 0 || opts.Offset > 0 {
		limit := opts.Limit
		if limit <= 0 {
			limit = -1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, opts.Offset)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", typeName, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Count returns the number of records of a type.
func (a *SQLiteArchive) Count(ctx context.Context, typeName string) (int64, error) {
	var n int64
	err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages WHERE type_name = ?", typeName).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", typeName, err)
	}
	return n, nil
}

// Delete removes a record.
func (a *SQLiteArchive) Delete(ctx context.Context, id string) error {
	result, err := a.db.ExecContext(ctx, "DELETE FROM messages WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	a.logger.Debug().Str("id", id).Msg("message deleted")
	return nil
}

// Close closes the database connection.
func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}

var _ Archive = (*SQLiteArchive)(nil)

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var rec Record
	var created int64
	if err := s.Scan(&rec.ID, &rec.TypeName, &rec.Format, &rec.Payload, &created); err != nil {
		return Record{}, err
	}
	rec.CreatedAt = time.Unix(0, created).UTC()
	return rec, nil
}
