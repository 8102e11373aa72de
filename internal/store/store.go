package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/docstore/internal/dialect"
	"github.com/roach88/docstore/internal/mapping"
	"github.com/roach88/docstore/internal/schema"
	"github.com/roach88/docstore/internal/session"
)

// Store is an open document store: a database handle, the dialect its
// driver speaks, and the registry of document types mapped onto it.
type Store struct {
	db       *sql.DB
	driver   string
	dialect  dialect.Dialect
	registry *mapping.Registry
	logger   *slog.Logger
}

// Option configures Open.
type Option func(*Store)

// WithLogger sets the logger used by the store and the sessions it opens.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// Open connects to the database named by dsn using a database/sql driver
// ("sqlite3" or "pgx"). The document registry starts empty; register types
// on Registry() and then call ApplySchema.
//
// SQLite databases are configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - a single open connection
//
// Opening the same database repeatedly is safe.
func Open(driver, dsn string, opts ...Option) (*Store, error) {
	d, err := dialect.ForDriver(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if d.Name() == (dialect.SQLite{}).Name() {
		// SQLite only supports one writer at a time
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	s := &Store{
		db:       db,
		driver:   driver,
		dialect:  d,
		registry: mapping.NewRegistry(d),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger.Debug("store opened", "driver", driver, "dialect", d.Name())
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Driver returns the database/sql driver name the store was opened with.
func (s *Store) Driver() string { return s.driver }

// Dialect returns the SQL dialect for the store's driver.
func (s *Store) Dialect() dialect.Dialect { return s.dialect }

// Registry returns the document type registry.
func (s *Store) Registry() *mapping.Registry { return s.registry }

// Script returns the DDL for every registered document type.
func (s *Store) Script() schema.Script {
	return schema.ForRegistry(s.registry)
}

// ApplySchema creates the table and upsert routine of every registered
// document type in one transaction. It is idempotent.
func (s *Store) ApplySchema(ctx context.Context) error {
	script := s.Script()
	if len(script) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := schema.Apply(ctx, tx, script); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}

	s.logger.Info("schema applied", "types", len(s.registry.Types()), "statements", len(script))
	return nil
}

// OpenSession starts a unit of work. The store's logger is used unless
// opts override it.
func (s *Store) OpenSession(opts ...session.Option) *session.Session {
	all := append([]session.Option{session.WithLogger(s.logger)}, opts...)
	return session.New(s.registry, s.db, all...)
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
