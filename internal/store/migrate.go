package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

// EnsureTrigram creates the pg_trgm extension used by the channel name index.
// Roles without CREATE privilege pass as long as a DBA already installed it.
func EnsureTrigram(dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer db.Close()

	_, err = db.Exec("CREATE EXTENSION IF NOT EXISTS pg_trgm")
	if err == nil {
		return nil
	}
	if !strings.Contains(err.Error(), "permission denied") {
		return fmt.Errorf("create pg_trgm extension: %w", err)
	}

	var exists bool
	if qErr := db.QueryRow("SELECT EXISTS(SELECT 1 FROM pg_extension WHERE extname = 'pg_trgm')").Scan(&exists); qErr != nil {
		return fmt.Errorf("check pg_trgm: %w (original: %w)", qErr, err)
	}
	if !exists {
		return fmt.Errorf("pg_trgm is not installed and the database user may not create it; "+
			"ask your database admin to run: CREATE EXTENSION pg_trgm; (original: %w)", err)
	}
	return nil
}

// RunMigrations applies migrations from migrationsPath (e.g. "file://migrations").
func RunMigrations(dsn string, migrationsPath string) error {
	m, err := migrate.New(migrationsPath, dsn)
	if err != nil {
		return fmt.Errorf("migrate.New: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate.Up: %w", err)
	}
	return nil
}
