// integrity.report reconciles repeated in-line inspection surveys of a
// pipeline: it aligns landmark sequences, corrects odometer drift,
// matches defects across runs, and tracks growth between inspections.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/integrity.report/internal/config"
	"github.com/banshee-data/integrity.report/internal/db"
	"github.com/banshee-data/integrity.report/internal/ili"
	"github.com/banshee-data/integrity.report/internal/monitoring"
)

var (
	dbFile        = flag.String("db", "integrity_data.db", "SQLite database file")
	listen        = flag.String("listen", ":8080", "Listen address for serve")
	tuningFile    = flag.String("config", "", "Optional tuning config JSON (defaults apply when empty)")
	dataDir       = flag.String("data-dir", "", "Restrict ingest file paths to this directory (empty = no restriction)")
	migrationsDir = flag.String("migrations", "migrations", "Migrations directory")
	webhookURL    = flag.String("webhook", "", "Webhook URL notified when a reconciliation completes")
	plotsDir      = flag.String("plots", "plots", "Output directory for reconcile PNG plots")
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: %s [flags] <command> [args]

Commands:
  serve                     run the HTTP server
  migrate <up|down|version> manage the database schema
  reconcile <run_a> <run_b> reconcile two stored runs and write plots

Flags:
`, os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "serve"
	}

	pipelineCfg, err := loadPipelineConfig(*tuningFile)
	if err != nil {
		log.Fatalf("failed to load tuning config: %v", err)
	}

	database, err := db.Open(*dbFile)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	switch cmd {
	case "serve":
		if err := database.MigrateUp(*migrationsDir); err != nil {
			log.Fatalf("failed to migrate database: %v", err)
		}
		if err := runServe(database, pipelineCfg); err != nil {
			log.Fatalf("server error: %v", err)
		}
	case "migrate":
		if err := runMigrate(database, flag.Arg(1)); err != nil {
			log.Fatalf("migrate error: %v", err)
		}
	case "reconcile":
		if err := runReconcile(database, pipelineCfg, flag.Arg(1), flag.Arg(2)); err != nil {
			log.Fatalf("reconcile error: %v", err)
		}
	default:
		usage()
		os.Exit(2)
	}
}

// loadPipelineConfig layers the optional tuning file over the built-in
// defaults.
func loadPipelineConfig(path string) (ili.Config, error) {
	base := ili.DefaultConfig()
	if path == "" {
		return base, nil
	}
	tuning, err := config.LoadTuningConfig(path)
	if err != nil {
		return base, err
	}
	monitoring.Logf("loaded tuning config from %s", path)
	return tuning.Apply(base), nil
}
