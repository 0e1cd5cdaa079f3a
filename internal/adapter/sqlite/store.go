package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/adrianov/diskadmit/internal/port"
)

// Store implements port.TransferRepository using SQLite
type Store struct {
	db *sql.DB
}

// Ensure Store implements port.TransferRepository
var _ port.TransferRepository = (*Store)(nil)

// Open opens a connection to the SQLite database
func Open(dbPath string) (*Store, error) {
	// Open database with WAL mode and busy timeout
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks database connectivity
func (s *Store) Ping() error {
	return s.db.Ping()
}

// migrate creates or updates the database schema
func (s *Store) migrate() error {
	migrations := []string{
		// The dialog guard is intentionally absent from this schema: an
		// outstanding confirmation never survives a restart.
		`CREATE TABLE IF NOT EXISTS transfers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			download_dir TEXT NOT NULL,
			volume INTEGER NOT NULL DEFAULT 0,
			group_id INTEGER NOT NULL DEFAULT -1,
			size_when_done INTEGER NOT NULL DEFAULT 0,
			size_left INTEGER NOT NULL DEFAULT 0,
			added_at TIMESTAMP,
			last_activity_at TIMESTAMP,
			paused_for_disk_space BOOLEAN DEFAULT FALSE,
			last_probe_at TIMESTAMP,
			disk_needed INTEGER NOT NULL DEFAULT 0,
			disk_available INTEGER NOT NULL DEFAULT 0,
			disk_total INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_transfers_volume ON transfers(volume)`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_paused ON transfers(paused_for_disk_space)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}
