package storage

import (
	"database/sql"
	"fmt"
	"time"

	"daq-observer/src/logger"
	"daq-observer/src/models"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteStore(cfg *models.MConfig, log *logger.Logger) (*SQLiteStore, error) {
	return &SQLiteStore{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteStore) Initialize() error {
	dsn := d.Config.Storage.DBPath

	// Open DB
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *SQLiteStore) createTables() error {
	// SQLite types: INTEGER for int64, REAL for float64, TEXT for string
	query := `
		CREATE TABLE IF NOT EXISTS sample_windows (
			run_id TEXT,
			window_id INTEGER,
			channel TEXT,
			channel_index INTEGER,
			samples INTEGER,
			saved_at INTEGER,
			PRIMARY KEY (run_id, window_id, channel)
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create sample_windows: %w", err)
	}

	query = `
		CREATE TABLE IF NOT EXISTS samples (
			run_id TEXT,
			window_id INTEGER,
			channel TEXT,
			timestamp_ms REAL,
			value REAL
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create samples: %w", err)
	}

	query = `CREATE INDEX IF NOT EXISTS idx_samples_run ON samples (run_id, channel, timestamp_ms);`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create samples index: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

// SaveWindow persists one exported trace window in a single transaction.
func (d *SQLiteStore) SaveWindow(runID string, trace *models.MTrace) error {
	if trace == nil || len(trace.Timestamps) == 0 {
		return nil
	}

	windowID := time.Now().UnixNano()
	savedAt := time.Now().UTC().Unix()

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	headStmt, err := tx.Prepare(`
		INSERT INTO sample_windows (run_id, window_id, channel, channel_index, samples, saved_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer headStmt.Close()

	stmt, err := tx.Prepare(`
		INSERT INTO samples (run_id, window_id, channel, timestamp_ms, value)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	rows := 0
	for c, values := range trace.Values {
		name := channelName(trace.Channels, c)

		if _, err := headStmt.Exec(runID, windowID, name, c, len(values), savedAt); err != nil {
			return err
		}

		for i, v := range values {
			if _, err := stmt.Exec(runID, windowID, name, trace.Timestamps[i], v); err != nil {
				return err
			}
			rows++
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	d.Logger.Info("Saved window %d for run %s (%d rows)", windowID, runID, rows)
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteStore) CleanupOldData() error {
	retentionDays := d.Config.Storage.RetentionDays
	if retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Unix()

	d.Logger.Info("Cleaning up data older than %d days (saved_at < %d)...", retentionDays, cutoff)

	res, err := d.DB.Exec(`
		DELETE FROM samples WHERE (run_id, window_id) IN (
			SELECT run_id, window_id FROM sample_windows WHERE saved_at < ?
		)
	`, cutoff)
	if err != nil {
		d.Logger.Error("Cleanup samples error: %v", err)
		return err
	}
	if _, err := d.DB.Exec("DELETE FROM sample_windows WHERE saved_at < ?", cutoff); err != nil {
		d.Logger.Error("Cleanup sample_windows error: %v", err)
		return err
	}

	if n, err := res.RowsAffected(); err == nil {
		d.Logger.Info("Cleanup completed, %d sample rows removed", n)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteStore) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

// -----------------------------------------------------------------------------

// channelName falls back to a positional name when the trace has no labels
func channelName(channels []string, idx int) string {
	if idx < len(channels) {
		return channels[idx]
	}
	return fmt.Sprintf("ch%d", idx)
}
