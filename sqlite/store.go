// Package sqlite stores a cryptofolio ledger in a single SQLite file.
//
// Write transactions start with BEGIN IMMEDIATE and the busy timeout is
// zero: when another process holds the database, operations fail at once
// with an error matching cryptofolio.ErrLocked. Views run on a separate
// query only connection with deferred transactions, so that readers do not
// exclude each other.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"

	"github.com/etnz/cryptofolio"
	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store is a cryptofolio.Store over a SQLite database.
type Store struct {
	db  *sql.DB // writes
	ro  *sql.DB // views
	log zerolog.Logger
}

var _ cryptofolio.Store = (*Store)(nil)

// DSN returns the data source name used to write the database at path.
func DSN(path string) string {
	q := url.Values{
		"_pragma": {"foreign_keys(1)", "busy_timeout(0)", "journal_mode(WAL)"},
		"_txlock": {"immediate"},
	}
	return "file:" + path + "?" + q.Encode()
}

// ReadDSN returns the data source name used to read the database at path.
func ReadDSN(path string) string {
	q := url.Values{
		"_pragma": {"foreign_keys(1)", "busy_timeout(0)", "query_only(1)"},
	}
	return "file:" + path + "?" + q.Encode()
}

// Open opens the database at path, creating it if needed, and migrates its
// schema to the latest version.
func Open(ctx context.Context, path string, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	// one connection: in-process callers queue instead of failing as busy
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open %s: %w", path, locked(err))
	}
	if err := migrateUp(db, log); err != nil {
		db.Close()
		return nil, locked(err)
	}
	ro, err := sql.Open("sqlite", ReadDSN(path))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	ro.SetMaxOpenConns(1)
	log.Debug().Str("path", path).Msg("ledger database opened")
	return &Store{db: db, ro: ro, log: log}, nil
}

func migrateUp(db *sql.DB, log zerolog.Logger) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("could not read migrations: %w", err)
	}
	driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}
	// m.Close would close db as well: only the source is released.
	defer src.Close()

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Debug().Msg("schema is up to date")
	case err != nil:
		return fmt.Errorf("failed to apply migrations: %w", err)
	default:
		version, _, _ := m.Version()
		log.Info().Uint("version", version).Msg("schema migrated")
	}
	return nil
}

// View runs fn in a transaction that rejects writes.
func (s *Store) View(ctx context.Context, fn func(cryptofolio.Tx) error) error {
	return s.run(ctx, true, fn)
}

// Update runs fn in a write transaction, committed only if fn succeeds.
func (s *Store) Update(ctx context.Context, fn func(cryptofolio.Tx) error) error {
	return s.run(ctx, false, fn)
}

func (s *Store) run(ctx context.Context, readonly bool, fn func(cryptofolio.Tx) error) error {
	db := s.db
	if readonly {
		db = s.ro
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return locked(err)
	}
	if err := fn(&storeTx{ctx: ctx, tx: tx, readonly: readonly}); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			s.log.Warn().Err(rerr).Msg("rollback failed")
		}
		return locked(err)
	}
	if readonly {
		return tx.Rollback()
	}
	return locked(tx.Commit())
}

// Close closes the database.
func (s *Store) Close() error {
	return errors.Join(s.ro.Close(), s.db.Close())
}

// locked tags SQLITE_BUSY and SQLITE_LOCKED errors with ErrLocked.
func locked(err error) error {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return fmt.Errorf("%w: %v", cryptofolio.ErrLocked, err)
	}
	return err
}
