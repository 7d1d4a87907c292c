package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/banshee-data/integrity.report/internal/ili"
)

// Run is one inspection survey.
type Run struct {
	ID             string    `json:"id"`
	Label          string    `json:"label"`
	InspectionDate time.Time `json:"inspection_date"`
}

// InsertRun records a new inspection run.
func (db *DB) InsertRun(run Run) error {
	_, err := db.Exec(
		`INSERT INTO runs (run_id, label, inspection_date) VALUES (?, ?, ?)`,
		run.ID, run.Label, run.InspectionDate,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun loads one run by ID.
func (db *DB) GetRun(runID string) (Run, error) {
	var run Run
	err := db.QueryRow(
		`SELECT run_id, label, inspection_date FROM runs WHERE run_id = ?`, runID,
	).Scan(&run.ID, &run.Label, &run.InspectionDate)
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	return run, nil
}

// ListRuns returns all runs ordered by inspection date.
func (db *DB) ListRuns() ([]Run, error) {
	rows, err := db.Query(
		`SELECT run_id, label, inspection_date FROM runs ORDER BY inspection_date, run_id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.Label, &run.InspectionDate); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// InsertLandmarks stores a run's landmark table in one transaction.
func (db *DB) InsertLandmarks(landmarks []ili.Landmark) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO landmarks (id, run_id, position, kind) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, lm := range landmarks {
		if _, err := stmt.Exec(lm.ID, lm.RunID, lm.Position, string(lm.Kind)); err != nil {
			return fmt.Errorf("insert landmark %s: %w", lm.ID, err)
		}
	}
	return tx.Commit()
}

// LandmarksForRun loads a run's landmarks ordered by position.
func (db *DB) LandmarksForRun(runID string) ([]ili.Landmark, error) {
	rows, err := db.Query(
		`SELECT id, run_id, position, kind FROM landmarks WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("landmarks for %s: %w", runID, err)
	}
	defer rows.Close()

	var landmarks []ili.Landmark
	for rows.Next() {
		var lm ili.Landmark
		var kind string
		if err := rows.Scan(&lm.ID, &lm.RunID, &lm.Position, &kind); err != nil {
			return nil, err
		}
		lm.Kind = ili.LandmarkKind(kind)
		landmarks = append(landmarks, lm)
	}
	return landmarks, rows.Err()
}

// InsertDefects stores a run's defect table in one transaction. The
// corrected position column stays NULL; corrections are derived per
// run pair and stored with the reconciliation result, never written
// back onto the raw survey rows.
func (db *DB) InsertDefects(defects []ili.Defect) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO defects (id, run_id, position, clock, depth_pct, length, width, kind)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, d := range defects {
		if _, err := stmt.Exec(d.ID, d.RunID, d.Position, d.Clock, d.DepthPct, d.Length, d.Width, string(d.Kind)); err != nil {
			return fmt.Errorf("insert defect %s: %w", d.ID, err)
		}
	}
	return tx.Commit()
}

// DefectsForRun loads a run's defects ordered by position.
func (db *DB) DefectsForRun(runID string) ([]ili.Defect, error) {
	rows, err := db.Query(
		`SELECT id, run_id, position, corrected_position, clock, depth_pct, length, width, kind
		 FROM defects WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("defects for %s: %w", runID, err)
	}
	defer rows.Close()

	var defects []ili.Defect
	for rows.Next() {
		var d ili.Defect
		var corrected sql.NullFloat64
		var kind string
		if err := rows.Scan(&d.ID, &d.RunID, &d.Position, &corrected, &d.Clock, &d.DepthPct, &d.Length, &d.Width, &kind); err != nil {
			return nil, err
		}
		if corrected.Valid {
			d.CorrectedPosition = corrected.Float64
			d.Corrected = true
		}
		d.Kind = ili.DefectKind(kind)
		defects = append(defects, d)
	}
	return defects, rows.Err()
}
