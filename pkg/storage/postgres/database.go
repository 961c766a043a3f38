package postgres

import (
	"database/sql"
	"fmt"

	"optionscache/config"

	"github.com/lib/pq"
)

// CreateDatabase creates the option cache database on a local server so the
// tables can be migrated with postgres.bootstrap. In production the ingestion
// process owns the database and this is never called. An existing database
// is left untouched.
func CreateDatabase(cfg config.PostgresConfig, env string) error {
	// Maintenance database; DBName may not exist yet.
	server, err := sql.Open("postgres", cfg.ServerDSN(env))
	if err != nil {
		return fmt.Errorf("open server connection for %s: %w", cfg.DBName, err)
	}
	defer server.Close()

	var found bool
	if err := server.QueryRow(`SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`, cfg.DBName).Scan(&found); err != nil {
		return fmt.Errorf("look up option cache database %s: %w", cfg.DBName, err)
	}
	if found {
		return nil
	}

	if _, err := server.Exec("CREATE DATABASE " + pq.QuoteIdentifier(cfg.DBName)); err != nil {
		return fmt.Errorf("create option cache database %s: %w", cfg.DBName, err)
	}
	return nil
}
