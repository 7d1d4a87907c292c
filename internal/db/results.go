package db

import (
	"encoding/json"
	"fmt"

	"github.com/banshee-data/integrity.report/internal/ili"
	"github.com/google/uuid"
)

// SaveReconcileResult persists one run pair's complete reconciliation
// output under a fresh alignment ID. Each save is a whole new result
// set; nothing updates rows of an earlier save.
func (db *DB) SaveReconcileResult(res *ili.ReconcileResult) (string, error) {
	alignmentID := fmt.Sprintf("aln_%s", uuid.NewString())

	allWarnings := append([]string{}, res.Warnings...)
	isValid := false
	if res.Validation != nil {
		allWarnings = append(allWarnings, res.Validation.Warnings...)
		isValid = res.Validation.IsValid
	}
	warnings, err := json.Marshal(allWarnings)
	if err != nil {
		return "", fmt.Errorf("marshal warnings: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO alignments (alignment_id, run_a, run_b, match_rate, rmse, is_valid, warnings)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		alignmentID, res.RunA, res.RunB,
		res.Alignment.MatchRate, res.Alignment.RMSE, boolToInt(isValid), string(warnings),
	)
	if err != nil {
		return "", fmt.Errorf("insert alignment %s/%s: %w", res.RunA, res.RunB, err)
	}

	for _, p := range res.Alignment.Pairs {
		if _, err := tx.Exec(
			`INSERT INTO alignment_pairs (alignment_id, idx_a, idx_b, position_a, position_b)
			 VALUES (?, ?, ?, ?, ?)`,
			alignmentID, p.IndexA, p.IndexB, p.PositionA, p.PositionB,
		); err != nil {
			return "", fmt.Errorf("insert alignment pair: %w", err)
		}
	}

	if res.Matches != nil {
		for _, m := range res.Matches.Matches {
			if _, err := tx.Exec(
				`INSERT INTO matches (match_id, alignment_id, defect_a, defect_b, similarity, confidence)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				m.ID, alignmentID, m.DefectA, m.DefectB, m.Similarity, string(m.Confidence),
			); err != nil {
				return "", fmt.Errorf("insert match %s: %w", m.ID, err)
			}
		}
		for _, u := range res.Matches.Unmatched {
			if _, err := tx.Exec(
				`INSERT INTO unmatched_defects (alignment_id, defect_id, run_id, reason)
				 VALUES (?, ?, ?, ?)`,
				alignmentID, u.DefectID, u.RunID, string(u.Reason),
			); err != nil {
				return "", fmt.Errorf("insert unmatched %s: %w", u.DefectID, err)
			}
		}
		for _, g := range res.Matches.Groups {
			members, err := json.Marshal(g.Members)
			if err != nil {
				return "", fmt.Errorf("marshal group members: %w", err)
			}
			if _, err := tx.Exec(
				`INSERT INTO defect_groups (alignment_id, kind, anchor, members)
				 VALUES (?, ?, ?, ?)`,
				alignmentID, string(g.Kind), g.Anchor, string(members),
			); err != nil {
				return "", fmt.Errorf("insert defect group: %w", err)
			}
		}
	}

	for _, g := range res.Growth {
		if _, err := tx.Exec(
			`INSERT INTO growth (alignment_id, match_id, interval_years, depth_rate, length_rate, width_rate, rapid_growth)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			alignmentID, g.MatchID, g.IntervalYrs, g.DepthRate, g.LengthRate, g.WidthRate, boolToInt(g.RapidGrowth),
		); err != nil {
			return "", fmt.Errorf("insert growth %s: %w", g.MatchID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return alignmentID, nil
}

// StoredAlignment is the persisted summary of one alignment.
type StoredAlignment struct {
	AlignmentID string   `json:"alignment_id"`
	RunA        string   `json:"run_a"`
	RunB        string   `json:"run_b"`
	MatchRate   float64  `json:"match_rate"`
	RMSE        float64  `json:"rmse"`
	IsValid     bool     `json:"is_valid"`
	Warnings    []string `json:"warnings,omitempty"`
}

// LatestAlignment returns the most recent stored alignment for the run
// pair.
func (db *DB) LatestAlignment(runA, runB string) (*StoredAlignment, error) {
	var sa StoredAlignment
	var valid int
	var warnings string
	err := db.QueryRow(
		`SELECT alignment_id, run_a, run_b, match_rate, rmse, is_valid, warnings
		 FROM alignments WHERE run_a = ? AND run_b = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		runA, runB,
	).Scan(&sa.AlignmentID, &sa.RunA, &sa.RunB, &sa.MatchRate, &sa.RMSE, &valid, &warnings)
	if err != nil {
		return nil, fmt.Errorf("latest alignment %s/%s: %w", runA, runB, err)
	}
	sa.IsValid = valid != 0
	if err := json.Unmarshal([]byte(warnings), &sa.Warnings); err != nil {
		return nil, fmt.Errorf("unmarshal warnings: %w", err)
	}
	return &sa, nil
}

// AlignmentPairs loads the matched landmark pairs of a stored alignment.
func (db *DB) AlignmentPairs(alignmentID string) ([]ili.MatchedPair, error) {
	rows, err := db.Query(
		`SELECT idx_a, idx_b, position_a, position_b FROM alignment_pairs
		 WHERE alignment_id = ? ORDER BY idx_a`, alignmentID)
	if err != nil {
		return nil, fmt.Errorf("alignment pairs %s: %w", alignmentID, err)
	}
	defer rows.Close()

	var pairs []ili.MatchedPair
	for rows.Next() {
		var p ili.MatchedPair
		if err := rows.Scan(&p.IndexA, &p.IndexB, &p.PositionA, &p.PositionB); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// MatchesForAlignment loads the stored matches of one alignment,
// ordered by descending similarity.
func (db *DB) MatchesForAlignment(alignmentID string) ([]ili.Match, error) {
	rows, err := db.Query(
		`SELECT match_id, defect_a, defect_b, similarity, confidence FROM matches
		 WHERE alignment_id = ? ORDER BY similarity DESC, match_id`, alignmentID)
	if err != nil {
		return nil, fmt.Errorf("matches for %s: %w", alignmentID, err)
	}
	defer rows.Close()

	var matches []ili.Match
	for rows.Next() {
		var m ili.Match
		var conf string
		if err := rows.Scan(&m.ID, &m.DefectA, &m.DefectB, &m.Similarity, &conf); err != nil {
			return nil, err
		}
		m.Confidence = ili.Confidence(conf)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// UnmatchedForAlignment loads the unmatched classifications of one
// alignment.
func (db *DB) UnmatchedForAlignment(alignmentID string) ([]ili.UnmatchedDefect, error) {
	rows, err := db.Query(
		`SELECT defect_id, run_id, reason FROM unmatched_defects
		 WHERE alignment_id = ? ORDER BY run_id, defect_id`, alignmentID)
	if err != nil {
		return nil, fmt.Errorf("unmatched for %s: %w", alignmentID, err)
	}
	defer rows.Close()

	var out []ili.UnmatchedDefect
	for rows.Next() {
		var u ili.UnmatchedDefect
		var reason string
		if err := rows.Scan(&u.DefectID, &u.RunID, &reason); err != nil {
			return nil, err
		}
		u.Reason = ili.UnmatchedReason(reason)
		out = append(out, u)
	}
	return out, rows.Err()
}

// GrowthForAlignment loads the stored growth records of one alignment.
func (db *DB) GrowthForAlignment(alignmentID string) ([]ili.GrowthRecord, error) {
	rows, err := db.Query(
		`SELECT match_id, interval_years, depth_rate, length_rate, width_rate, rapid_growth
		 FROM growth WHERE alignment_id = ? ORDER BY depth_rate DESC`, alignmentID)
	if err != nil {
		return nil, fmt.Errorf("growth for %s: %w", alignmentID, err)
	}
	defer rows.Close()

	var out []ili.GrowthRecord
	for rows.Next() {
		var g ili.GrowthRecord
		var rapid int
		if err := rows.Scan(&g.MatchID, &g.IntervalYrs, &g.DepthRate, &g.LengthRate, &g.WidthRate, &rapid); err != nil {
			return nil, err
		}
		g.RapidGrowth = rapid != 0
		out = append(out, g)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
