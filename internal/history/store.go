// Package history records completed run reports in SQLite. The parser core
// itself persists nothing; only the outer commands write here, after a run
// has fully ended.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/uvmon/uvmon/internal/parser"
	"github.com/uvmon/uvmon/internal/progress"
	"github.com/uvmon/uvmon/internal/timeline"
)

// RunEntry is one stored run summary.
type RunEntry struct {
	ID                string
	Source            string
	RecordedAt        int64
	FinalPhase        string
	TotalPackages     int
	InstalledPackages int
	DownloadCount     int
	MaxConcurrent     int
	WindowMS          int64
	Error             string
}

// DownloadEntry is one stored per-package download summary.
type DownloadEntry struct {
	RunID         string
	Package       string
	Version       string
	StreamID      uint64
	TotalSize     int64
	BytesReceived int64
	Frames        int64
	DurationMS    int64
	SpeedMbps     float64
	Status        string
}

// SaveRun stores one completed run: the overall state, its downloads, and
// the timeline summary. Returns the generated run id.
func SaveRun(source string, st parser.OverallState, downloads []progress.Snapshot, report *timeline.Report) (string, error) {
	id := uuid.New().String()

	var errText string
	if st.CurrentPhase == parser.PhaseError {
		errText = "installation failed"
	}

	err := withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO runs (
				id, source, recorded_at, final_phase, total_packages,
				installed_packages, download_count, max_concurrent, window_ms, error
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id, source, time.Now().Unix(), st.CurrentPhase.String(), st.TotalPackages,
			st.InstalledPackages, len(downloads), report.MaxConcurrent, report.WindowMS, errText)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		stmt, err := tx.Prepare(`
			INSERT INTO run_downloads (
				run_id, package, version, stream_id, total_size,
				bytes_received, frames, duration_ms, speed_mbps, status
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		byPkg := make(map[string]timeline.Download, len(report.Downloads))
		for _, d := range report.Downloads {
			byPkg[d.Package] = d
		}

		for _, s := range downloads {
			td := byPkg[s.Package]
			if _, err := stmt.Exec(id, s.Package, s.Version, s.StreamID, s.TotalBytes,
				s.BytesReceived, s.Frames, td.DurationMS, td.SpeedMbps, s.Status.String()); err != nil {
				return fmt.Errorf("failed to insert download: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// LoadRuns returns all stored runs, newest first.
func LoadRuns() ([]RunEntry, error) {
	d := getDBHelper()
	if d == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	rows, err := d.Query(`
		SELECT id, source, recorded_at, final_phase, total_packages,
		       installed_packages, download_count, max_concurrent, window_ms, error
		FROM runs ORDER BY recorded_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunEntry
	for rows.Next() {
		var e RunEntry
		var errText sql.NullString
		if err := rows.Scan(&e.ID, &e.Source, &e.RecordedAt, &e.FinalPhase, &e.TotalPackages,
			&e.InstalledPackages, &e.DownloadCount, &e.MaxConcurrent, &e.WindowMS, &errText); err != nil {
			return nil, err
		}
		if errText.Valid {
			e.Error = errText.String
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LoadDownloads returns the per-package summaries for one run.
func LoadDownloads(runID string) ([]DownloadEntry, error) {
	d := getDBHelper()
	if d == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	rows, err := d.Query(`
		SELECT run_id, package, version, stream_id, total_size,
		       bytes_received, frames, duration_ms, speed_mbps, status
		FROM run_downloads WHERE run_id = ? ORDER BY package
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query downloads: %w", err)
	}
	defer rows.Close()

	var out []DownloadEntry
	for rows.Next() {
		var e DownloadEntry
		if err := rows.Scan(&e.RunID, &e.Package, &e.Version, &e.StreamID, &e.TotalSize,
			&e.BytesReceived, &e.Frames, &e.DurationMS, &e.SpeedMbps, &e.Status); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteRun removes one run and its downloads.
func DeleteRun(id string) error {
	return withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM run_downloads WHERE run_id = ?", id); err != nil {
			return fmt.Errorf("failed to delete downloads: %w", err)
		}
		res, err := tx.Exec("DELETE FROM runs WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("failed to delete run: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("run not found: %s", id)
		}
		return nil
	})
}
