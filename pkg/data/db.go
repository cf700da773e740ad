package data

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	// DataFileName is the default SQLite file under the app home dir.
	DataFileName = "fairlens.db"

	driverSQLite   = "sqlite"
	driverPostgres = "postgres"
)

var (
	//go:embed sql/*
	schemaFS embed.FS

	errStoreNotInitialized = errors.New("store not initialized")
)

// Store is the dataset and audit-run database. The default backend is a
// local SQLite file; a postgres:// (or postgresql://) target selects a
// shared Postgres backend instead. Queries are written once with ?
// placeholders and rebound per backend.
type Store struct {
	db     *sql.DB
	driver string
}

// IsPostgresTarget indicates whether the target selects the Postgres
// backend rather than a local SQLite file.
func IsPostgresTarget(target string) bool {
	return strings.HasPrefix(target, "postgres://") || strings.HasPrefix(target, "postgresql://")
}

// Open connects to the given target and ensures the schema exists. The
// schema DDL is idempotent, so opening an existing store is safe.
func Open(target string) (*Store, error) {
	if target == "" {
		return nil, errors.New("store target not specified")
	}

	driver := driverSQLite
	if IsPostgresTarget(target) {
		driver = driverPostgres
	}

	db, err := sql.Open(driver, target)
	if err != nil {
		return nil, fmt.Errorf("error opening %s store: %w", driver, err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}

	slog.Debug("store ready", "driver", driver)
	return s, nil
}

func (s *Store) ensureSchema() error {
	b, err := schemaFS.ReadFile(fmt.Sprintf("sql/%s.ddl.sql", s.driver))
	if err != nil {
		return fmt.Errorf("failed to read %s schema: %w", s.driver, err)
	}
	if _, err := s.db.Exec(string(b)); err != nil {
		return fmt.Errorf("failed to create %s schema: %w", s.driver, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ready() error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}
	return nil
}

// bind rewrites ? placeholders into the backend's form. SQLite takes
// them as written, Postgres wants $1..$n.
func (s *Store) bind(q string) string {
	if s.driver != driverPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Contains checks for val in list.
func Contains[T comparable](list []T, val T) bool {
	for _, item := range list {
		if item == val {
			return true
		}
	}
	return false
}
