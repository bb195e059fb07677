package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/irontracks/musclemap/internal/app"
	"github.com/irontracks/musclemap/internal/config"
	"github.com/irontracks/musclemap/internal/importer"
	"github.com/irontracks/musclemap/internal/ingest/alpha"
	"github.com/irontracks/musclemap/internal/logging"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	path := flag.String("path", "", "Alpha Progression CSV export, or a directory of exports (required)")
	login := flag.String("user", "local", "login of the user the sessions belong to")
	tz := flag.String("tz", "Local", "IANA time zone the export times were written in")
	dryRun := flag.Bool("dry-run", false, "parse and count without writing to the database")
	flag.Parse()

	if *path == "" {
		fmt.Fprintf(os.Stderr, "Usage: musclemap-import -config config.yaml -path export.csv [-user login] [-tz America/Sao_Paulo] [-dry-run]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log, logCloser := logging.New(cfg.Log)
	defer logCloser.Close()

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		log.Error("unknown time zone", "tz", *tz, "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, _, err := app.OpenStore(ctx, cfg.Database, "migrations")
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	userID, err := db.GetOrCreateUser(ctx, *login, *login)
	if err != nil {
		log.Error("failed to resolve user", "user", *login, "error", err)
		os.Exit(1)
	}

	if *dryRun {
		log.Info("DRY RUN mode: no data will be written to the database")
	}

	imp := importer.New(alpha.NewProvider(db, loc, log), userID, log, *dryRun)
	stats, err := imp.Import(ctx, *path)
	if err != nil {
		log.Error("import failed", "error", err)
		printStats(log, stats)
		os.Exit(1)
	}

	printStats(log, stats)
	log.Info("import complete", "user", *login, "user_id", userID)
}

func printStats(log *slog.Logger, stats *importer.Stats) {
	log.Info("import stats",
		"files_processed", stats.FilesProcessed,
		"files_skipped", stats.FilesSkipped,
		"files_errored", stats.FilesErrored,
		"sessions_found", stats.SessionsFound,
		"workouts_inserted", stats.WorkoutsInserted,
		"workouts_updated", stats.WorkoutsUpdated,
		"sets_found", stats.SetsFound,
	)
}
