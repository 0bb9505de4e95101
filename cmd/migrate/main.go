// Command migrate applies the watch_history schema for the postgres storage
// backend. The database URL is resolved the same way the server resolves it:
// explicit flag, then DATABASE_URL, then the service configuration.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/geekdaily/escape-the-algo/internal/config"
)

func main() {
	var (
		dbURL          string
		migrationsPath string
		direction      string
		steps          int
	)

	flag.StringVar(&dbURL, "db", "", "Database URL (defaults to DATABASE_URL, then the storage.databaseurl config value)")
	flag.StringVar(&migrationsPath, "path", "./migrations", "Path to migrations directory")
	flag.StringVar(&direction, "direction", "up", "Migration direction: up or down")
	flag.IntVar(&steps, "steps", 0, "Number of steps to migrate (0 means all)")
	flag.Parse()

	dbURL = resolveDatabaseURL(dbURL)
	if dbURL == "" {
		log.Fatal("no database URL: pass -db, set DATABASE_URL, or configure the postgres storage backend")
	}

	if err := run(dbURL, migrationsPath, direction, steps); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
}

// resolveDatabaseURL falls through flag, environment, and service config.
// Config load errors are ignored here: callers of the flag or env paths may
// have no config file at all.
func resolveDatabaseURL(flagURL string) string {
	if flagURL != "" {
		return flagURL
	}
	if envURL := os.Getenv("DATABASE_URL"); envURL != "" {
		return envURL
	}
	if cfg, err := config.Load(); err == nil {
		return cfg.Storage.DatabaseURL
	}
	return ""
}

func run(dbURL, migrationsPath, direction string, steps int) error {
	m, err := migrate.New(fmt.Sprintf("file://%s", migrationsPath), dbURL)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	switch direction {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	default:
		return fmt.Errorf("invalid direction %q (must be up or down)", direction)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		log.Println("schema already up to date")
		err = nil
	}
	if err != nil {
		return err
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		log.Println("migration completed (no version)")
	case err != nil:
		return fmt.Errorf("read migration version: %w", err)
	default:
		log.Printf("migration completed (version: %d, dirty: %t)", version, dirty)
	}
	return nil
}
