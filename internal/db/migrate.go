package db

import (
	"embed"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate applies forward-only migrations in filename order, recording each
// applied name in _migrations so it runs exactly once.
func Migrate(database *DB) error {
	_, err := database.Exec(`CREATE TABLE IF NOT EXISTS _migrations (
		name TEXT PRIMARY KEY,
		applied_ts INTEGER NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("create _migrations table: %w", err)
	}

	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, fname := range names {
		name := strings.TrimSuffix(fname, ".sql")

		var applied string
		err := database.QueryRow("SELECT name FROM _migrations WHERE name = ?", name).Scan(&applied)
		if err == nil {
			continue
		}

		raw, err := migrationFS.ReadFile("migrations/" + fname)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		log.Printf("db: applying migration %s", name)
		for _, statement := range strings.Split(string(raw), ";") {
			trimmed := strings.TrimSpace(statement)
			if trimmed == "" {
				continue
			}
			if _, err := database.Exec(trimmed); err != nil {
				return fmt.Errorf("migration %s: %w", name, err)
			}
		}

		if _, err := database.Exec(
			"INSERT INTO _migrations (name, applied_ts) VALUES (?, ?)",
			name, time.Now().Unix(),
		); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}
