package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"daq-observer/src/logger"
	"daq-observer/src/models"

	"github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresStore struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresStore(cfg *models.MConfig, log *logger.Logger) (*PostgresStore, error) {
	// Schema named after the executable keeps multiple deployments apart
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable name: %w", err)
	}
	name := filepath.Base(exe)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	return &PostgresStore{
		Config: cfg,
		Schema: name,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	// Create Schema
	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresStore initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) createTables() error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."sample_windows" (
			run_id TEXT,
			window_id BIGINT,
			channel TEXT,
			channel_index INTEGER,
			samples INTEGER,
			saved_at BIGINT,
			PRIMARY KEY (run_id, window_id, channel)
		);
	`, d.Schema)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create sample_windows: %w", err)
	}

	query = fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."samples" (
			run_id TEXT,
			window_id BIGINT,
			channel TEXT,
			timestamp_ms DOUBLE PRECISION,
			value DOUBLE PRECISION
		);
	`, d.Schema)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create samples: %w", err)
	}

	query = fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_samples_run ON "%s"."samples" (run_id, channel, timestamp_ms);
	`, d.Schema)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create samples index: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

// SaveWindow persists one exported trace window. Sample rows use the pq bulk
// COPY protocol, one COPY per window.
func (d *PostgresStore) SaveWindow(runID string, trace *models.MTrace) error {
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

	headQuery := fmt.Sprintf(`
		INSERT INTO "%s"."sample_windows" (run_id, window_id, channel, channel_index, samples, saved_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, d.Schema)

	for c, values := range trace.Values {
		name := channelName(trace.Channels, c)
		if _, err := tx.Exec(headQuery, runID, windowID, name, c, len(values), savedAt); err != nil {
			return err
		}
	}

	// Stream the sample rows; no other statement may run while the COPY is open
	stmt, err := tx.Prepare(pq.CopyInSchema(d.Schema, "samples",
		"run_id", "window_id", "channel", "timestamp_ms", "value"))
	if err != nil {
		return err
	}

	rows := 0
	for c, values := range trace.Values {
		name := channelName(trace.Channels, c)
		for i, v := range values {
			if _, err := stmt.Exec(runID, windowID, name, trace.Timestamps[i], v); err != nil {
				return err
			}
			rows++
		}
	}

	// Flush the COPY stream
	if _, err := stmt.Exec(); err != nil {
		return err
	}
	if err := stmt.Close(); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	d.Logger.Info("Saved window %d for run %s (%d rows)", windowID, runID, rows)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) CleanupOldData() error {
	retentionDays := d.Config.Storage.RetentionDays
	if retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Unix()

	d.Logger.Info("Cleaning up data older than %d days (saved_at < %d)...", retentionDays, cutoff)

	query := fmt.Sprintf(`
		DELETE FROM "%s"."samples" s
		USING "%s"."sample_windows" w
		WHERE s.run_id = w.run_id AND s.window_id = w.window_id AND w.saved_at < $1
	`, d.Schema, d.Schema)
	if _, err := d.DB.Exec(query, cutoff); err != nil {
		d.Logger.Error("Cleanup samples error: %v", err)
		return err
	}

	query = fmt.Sprintf(`DELETE FROM "%s"."sample_windows" WHERE saved_at < $1`, d.Schema)
	if _, err := d.DB.Exec(query, cutoff); err != nil {
		d.Logger.Error("Cleanup sample_windows error: %v", err)
		return err
	}

	d.Logger.Info("Cleanup completed")
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
