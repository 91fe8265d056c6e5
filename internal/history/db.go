package history

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/uvmon/uvmon/internal/config"
)

var (
	db     *sql.DB
	dbMu   sync.Mutex
	dbPath string
)

// Configure sets the database path. Must be called before first use to
// override the default location under the state dir.
func Configure(path string) {
	dbMu.Lock()
	defer dbMu.Unlock()
	if db != nil {
		db.Close()
		db = nil
	}
	dbPath = path
}

func initDB() error {
	dbMu.Lock()
	defer dbMu.Unlock()

	if db != nil {
		return nil
	}

	path := dbPath
	if path == "" {
		if err := config.EnsureDirs(); err != nil {
			return err
		}
		path = filepath.Join(config.GetStateDir(), "uvmon.db")
	}

	d, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := d.Exec(schema); err != nil {
		d.Close()
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	db = d
	return nil
}

func getDBHelper() *sql.DB {
	if err := initDB(); err != nil {
		return nil
	}
	dbMu.Lock()
	defer dbMu.Unlock()
	return db
}

// CloseDB closes the database; mainly for tests.
func CloseDB() error {
	dbMu.Lock()
	defer dbMu.Unlock()
	if db == nil {
		return nil
	}
	err := db.Close()
	db = nil
	return err
}

// withTx runs fn inside a transaction, committing on success.
func withTx(fn func(tx *sql.Tx) error) error {
	d := getDBHelper()
	if d == nil {
		return fmt.Errorf("database not initialized")
	}

	tx, err := d.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	recorded_at INTEGER NOT NULL,
	final_phase TEXT NOT NULL,
	total_packages INTEGER NOT NULL DEFAULT 0,
	installed_packages INTEGER NOT NULL DEFAULT 0,
	download_count INTEGER NOT NULL DEFAULT 0,
	max_concurrent INTEGER NOT NULL DEFAULT 0,
	window_ms INTEGER NOT NULL DEFAULT 0,
	error TEXT
);

CREATE TABLE IF NOT EXISTS run_downloads (
	run_id TEXT NOT NULL,
	package TEXT NOT NULL,
	version TEXT,
	stream_id INTEGER,
	total_size INTEGER NOT NULL DEFAULT 0,
	bytes_received INTEGER NOT NULL DEFAULT 0,
	frames INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	speed_mbps REAL NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);
`
