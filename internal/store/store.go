package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/homekeep/internal/database"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrStorageUnavailable is returned when the engine cannot be opened or
	// an operation exceeds its timeout.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrNotFound is returned by operations that require an existing record.
	// Lookups return (nil, nil) instead.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateKey is returned when Create is given an id that already exists.
	ErrDuplicateKey = errors.New("duplicate key")
)

// DefaultTimeout bounds a single store operation.
const DefaultTimeout = 5 * time.Second

// Stores groups one store per collection over a shared database handle.
type Stores struct {
	db *sql.DB

	Properties    *PropertyStore
	Tasks         *TaskStore
	Warranties    *WarrantyStore
	Providers     *ProviderStore
	Logs          *LogStore
	Trial         *TrialStore
	Notifications *NotificationStore
	Push          *PushStore
}

// New builds the stores over an already migrated database.
func New(db *sql.DB, timeout time.Duration) *Stores {
	c := conn{db: db, timeout: timeout}
	return &Stores{
		db:            db,
		Properties:    &PropertyStore{c},
		Tasks:         &TaskStore{c},
		Warranties:    &WarrantyStore{c},
		Providers:     &ProviderStore{c},
		Logs:          &LogStore{c},
		Trial:         &TrialStore{c},
		Notifications: &NotificationStore{c},
		Push:          &PushStore{c},
	}
}

// Open opens (and migrates) the database at path. Opening an existing
// database is a no-op apart from acquiring the handle.
func Open(path string, timeout time.Duration) (*Stores, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w: %w", ErrStorageUnavailable, err)
	}
	return New(db, timeout), nil
}

func (s *Stores) DB() *sql.DB {
	return s.db
}

func (s *Stores) Close() error {
	return s.db.Close()
}

type conn struct {
	db      *sql.DB
	timeout time.Duration
}

func (c conn) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// exec runs a single statement under the store timeout.
func (c conn) exec(ctx context.Context, op, query string, args ...any) (sql.Result, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, classify(ctx, op, err)
	}
	return res, nil
}

// getOne scans a single row, returning (nil, nil) when it does not exist.
func getOne[T any](ctx context.Context, c conn, op string, scan func(scanner) (*T, error), query string, args ...any) (*T, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	v, err := scan(c.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(ctx, op, err)
	}
	return v, nil
}

// queryAll scans every row of a query.
func queryAll[T any](ctx context.Context, c conn, op string, scan func(scanner) (*T, error), query string, args ...any) ([]T, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(ctx, op, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, classify(ctx, op, fmt.Errorf("scan: %w", err))
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(ctx, op, err)
	}
	return out, nil
}

// requireRow turns a zero-row update into ErrNotFound.
func requireRow(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", op, id, ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(...any) error
}

func classify(ctx context.Context, op string, err error) error {
	switch {
	case ctx.Err() != nil,
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, sql.ErrConnDone),
		strings.Contains(err.Error(), "database is closed"),
		hasCode(err, sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_IOERR, sqlite3.SQLITE_FULL):
		return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
	case isDuplicate(err):
		return fmt.Errorf("%s: %w: %w", op, ErrDuplicateKey, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// hasCode compares primary result codes, so extended codes match their family.
func hasCode(err error, codes ...int) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	primary := se.Code() & 0xff
	for _, c := range codes {
		if primary == c {
			return true
		}
	}
	return false
}

func isDuplicate(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE constraint failed")
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMillis(n.Int64)
	return &t
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func encodeList[T any](v []T) (string, error) {
	if v == nil {
		v = []T{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode list: %w", err)
	}
	return string(b), nil
}

func decodeList[T any](s string) ([]T, error) {
	out := []T{}
	if s == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return out, nil
}
