// Package sqlstore is a repository.Store over database/sql, for sqlite3 and
// postgres.
package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/repository"
	"github.com/poio911/futbol-app-pwa-sub004/pkg/logger"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

const defaultMaxRetries = 5

// errStale means the row changed between read and write.
var errStale = errors.New("stale version")

// ErrUnsupportedDriver is returned by Open for drivers other than sqlite3 and postgres.
var ErrUnsupportedDriver = errors.New("unsupported sql driver")

// Store implements repository.Store.
type Store struct {
	db         *sqlx.DB
	driver     string
	sq         squirrel.StatementBuilderType
	maxRetries int
	logger     logger.Logger
}

var _ repository.Store = (*Store)(nil)

type transactionCallback func(*sqlx.Tx) error

// callbackError carries an error returned by a caller's update func so it
// can be handed back unwrapped.
type callbackError struct{ err error }

func (e callbackError) Error() string { return e.err.Error() }

// Open connects, applies pending migrations and returns the store. A sqlite
// DSN must name a file or a shared-cache memory database because migrations
// run on their own connection.
func Open(ctx context.Context, driverName, dsn string, opts ...Option) (*Store, error) {
	s := &Store{
		driver:     driverName,
		maxRetries: defaultMaxRetries,
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	switch driverName {
	case DriverSQLite:
		s.sq = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)
	case DriverPostgres:
		s.sq = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driverName)
	}

	db, err := sqlx.ConnectContext(ctx, driverName, dsn)
	if err != nil {
		return nil, repository.Wrap("open", fmt.Errorf("%w: %w", repository.ErrUnavailable, err))
	}
	if driverName == DriverSQLite {
		// sqlite allows a single writer
		db.SetMaxOpenConns(1)
	}
	s.db = db

	if err := Migrate(driverName, dsn); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.logger.Info(ctx, "sql store ready", logger.String("driver", driverName))
	return s, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) transaction(ctx context.Context, cb transactionCallback) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	if err := cb(tx); err != nil {
		if err2 := tx.Rollback(); err2 != nil {
			return fmt.Errorf("rollback error: %s\noriginal error: %w", err2, err)
		}
		return err
	}

	return tx.Commit()
}

// update runs cb in a transaction, starting over while it reports errStale.
func (s *Store) update(ctx context.Context, op string, cb transactionCallback) error {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := s.transaction(ctx, cb)
		if errors.Is(err, errStale) {
			s.logger.Debug(ctx, "version conflict, retrying", logger.String("op", op), logger.Int("attempt", attempt+1))
			continue
		}
		return s.fail(op, err)
	}
	return repository.Wrap(op, repository.ErrConflict)
}

// fail maps err to the repository error kinds.
func (s *Store) fail(op string, err error) error {
	if err == nil {
		return nil
	}
	var cb callbackError
	if errors.As(err, &cb) {
		return cb.err
	}
	return repository.Wrap(op, classify(err))
}

func classify(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", repository.ErrUnavailable, err)
	}

	var lite sqlite3.Error
	if errors.As(err, &lite) {
		switch lite.Code {
		case sqlite3.ErrConstraint:
			return fmt.Errorf("%w: %w", repository.ErrAlreadyExists, err)
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrCantOpen:
			return fmt.Errorf("%w: %w", repository.ErrUnavailable, err)
		}
	}

	var pg *pq.Error
	if errors.As(err, &pg) {
		switch {
		case pg.Code == "23505":
			return fmt.Errorf("%w: %w", repository.ErrAlreadyExists, err)
		case pg.Code.Class() == "08", pg.Code.Class() == "57", pg.Code == "40001":
			return fmt.Errorf("%w: %w", repository.ErrUnavailable, err)
		}
	}
	return err
}

func utc(t time.Time) time.Time {
	return t.UTC()
}
