package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/banshee-data/integrity.report/internal/db"
	"github.com/banshee-data/integrity.report/internal/ili"
	"github.com/banshee-data/integrity.report/internal/ili/monitor"
)

// runMigrate handles the migrate subcommand.
func runMigrate(database *db.DB, direction string) error {
	switch direction {
	case "up":
		if err := database.MigrateUp(*migrationsDir); err != nil {
			return err
		}
		fmt.Println("migrations applied")
	case "down":
		if err := database.MigrateDown(*migrationsDir); err != nil {
			return err
		}
		fmt.Println("rolled back one migration")
	case "version":
		version, dirty, err := database.MigrateVersion(*migrationsDir)
		if err != nil {
			return err
		}
		fmt.Printf("version %d dirty=%v\n", version, dirty)
	default:
		return fmt.Errorf("unknown migrate direction %q (want up, down or version)", direction)
	}
	return nil
}

// runReconcile reconciles two stored runs from the command line,
// persists the result, writes PNG plots and prints a JSON summary to
// stdout.
func runReconcile(database *db.DB, cfg ili.Config, runA, runB string) error {
	if runA == "" || runB == "" {
		return fmt.Errorf("usage: reconcile <run_a> <run_b>")
	}

	pair, err := loadStoredPair(database, runA, runB)
	if err != nil {
		return err
	}

	reconciler, err := ili.NewReconciler(cfg)
	if err != nil {
		return err
	}
	res, err := reconciler.Reconcile(*pair)
	if err != nil {
		return err
	}

	alignmentID, err := database.SaveReconcileResult(res)
	if err != nil {
		return fmt.Errorf("store result: %w", err)
	}

	files, err := monitor.NewResidualPlotter(nil, *plotsDir).WriteAll(res)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: plot generation failed: %v\n", err)
	}

	summary := struct {
		AlignmentID string   `json:"alignment_id"`
		MatchRate   float64  `json:"match_rate"`
		RMSE        float64  `json:"rmse"`
		Matched     int      `json:"matched"`
		New         int      `json:"new"`
		Disappeared int      `json:"disappeared"`
		Plots       []string `json:"plots,omitempty"`
		Warnings    []string `json:"warnings,omitempty"`
	}{
		AlignmentID: alignmentID,
		MatchRate:   res.Alignment.MatchRate,
		RMSE:        res.Alignment.RMSE,
		Plots:       files,
		Warnings:    res.Warnings,
	}
	if res.Matches != nil {
		summary.Matched = res.Matches.Stats.Matched
		summary.New = res.Matches.Stats.New
		summary.Disappeared = res.Matches.Stats.RepairedRemoved
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

// loadStoredPair builds the pipeline input for two stored runs, with
// the inspection gap derived from their dates.
func loadStoredPair(database *db.DB, runA, runB string) (*ili.RunPair, error) {
	a, err := database.GetRun(runA)
	if err != nil {
		return nil, err
	}
	b, err := database.GetRun(runB)
	if err != nil {
		return nil, err
	}

	landmarksA, err := database.LandmarksForRun(runA)
	if err != nil {
		return nil, err
	}
	landmarksB, err := database.LandmarksForRun(runB)
	if err != nil {
		return nil, err
	}
	defectsA, err := database.DefectsForRun(runA)
	if err != nil {
		return nil, err
	}
	defectsB, err := database.DefectsForRun(runB)
	if err != nil {
		return nil, err
	}

	gap := 0.0
	if !a.InspectionDate.IsZero() && !b.InspectionDate.IsZero() {
		gap = b.InspectionDate.Sub(a.InspectionDate).Hours() / (24 * 365.25)
	}

	return &ili.RunPair{
		RunA:               runA,
		RunB:               runB,
		LandmarksA:         landmarksA,
		LandmarksB:         landmarksB,
		DefectsA:           defectsA,
		DefectsB:           defectsB,
		InspectionGapYears: gap,
	}, nil
}
