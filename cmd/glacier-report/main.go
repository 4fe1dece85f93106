// Command glacier-report runs multi-temporal SAR glacier analysis over a
// manifest of raw scenes and records the results in a sqlite database.
//
// Usage:
//
//	glacier-report [flags] analyze
//	glacier-report [flags] migrate up|down|status
//
// Scene acquisition and raster decoding beyond plain CSV grids are external
// to this tool; the manifest points at pre-extracted digital-number rasters.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/alpine-sar/glacier.report/internal/config"
	"github.com/alpine-sar/glacier.report/internal/db"
	"github.com/alpine-sar/glacier.report/internal/ingest"
	"github.com/alpine-sar/glacier.report/internal/pipeline"
	"github.com/alpine-sar/glacier.report/internal/sar"
	"github.com/alpine-sar/glacier.report/internal/version"
)

var (
	dbPath       = flag.String("db", "glacier_analysis.db", "Path to the sqlite results database")
	configPath   = flag.String("config", config.DefaultConfigPath, "Path to the tuning config JSON")
	manifestPath = flag.String("manifest", "scenes.json", "Path to the scene manifest JSON")
)

func main() {
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		printHelp()
		os.Exit(1)
	}

	switch args[0] {
	case "analyze":
		runAnalyze()
	case "migrate":
		runMigrate(args[1:])
	case "version":
		fmt.Printf("glacier-report %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
	case "help":
		printHelp()
	default:
		fmt.Printf("Unknown command: %s\n\n", args[0])
		printHelp()
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println(`glacier-report - multi-temporal SAR glacier analysis

Commands:
  analyze            Process the manifest's scenes and record results
  migrate up         Apply pending database migrations
  migrate down       Roll back the most recent migration
  migrate status     Show the current migration version
  version            Show build information
  help               Show this help

Flags:
  -db       sqlite database path (default glacier_analysis.db)
  -config   tuning config JSON (default ` + config.DefaultConfigPath + `)
  -manifest scene manifest JSON (default scenes.json)`)
}

func runMigrate(args []string) {
	if len(args) < 1 {
		log.Fatal("Usage: glacier-report migrate up|down|status")
	}

	database, err := db.OpenDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	switch args[0] {
	case "up":
		if err := database.MigrateUp(); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("migrations applied")
	case "down":
		if err := database.MigrateDown(); err != nil {
			log.Fatalf("Migration rollback failed: %v", err)
		}
		log.Println("rolled back one migration")
	case "status":
		version, dirty, err := database.MigrateVersion()
		if err != nil {
			log.Fatalf("Failed to read migration version: %v", err)
		}
		log.Printf("migration version %d (dirty=%v)", version, dirty)
	default:
		log.Fatalf("Unknown migrate action: %s", args[0])
	}
}

func runAnalyze() {
	cfg, err := config.LoadTuningConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	params := pipeline.ParamsFromTuning(cfg)

	entries, err := ingest.LoadManifest(*manifestPath)
	if err != nil {
		log.Fatalf("Failed to load manifest: %v", err)
	}
	scenes, err := ingest.LoadScenes(filepath.Dir(*manifestPath), entries)
	if err != nil {
		log.Fatalf("Failed to load scenes: %v", err)
	}
	log.Printf("loaded %d scenes from %s", len(scenes), *manifestPath)

	database, err := db.OpenDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()
	if err := database.MigrateUp(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	store := db.NewRunStore(database)
	runID, err := store.BeginRun(params)
	if err != nil {
		log.Fatalf("Failed to record run: %v", err)
	}
	log.Printf("analysis run %s started", runID)

	outcomes, err := pipeline.Run(params, scenes)
	if err != nil {
		store.CompleteRun(runID, err)
		log.Fatalf("Pipeline failed: %v", err)
	}

	segmented := recordScenes(store, runID, outcomes)
	recordComparisons(store, runID, params, outcomes)

	series, err := pipeline.BuildSeries(params, outcomes)
	if err != nil {
		store.CompleteRun(runID, err)
		log.Fatalf("Series construction failed: %v", err)
	}
	if err := store.InsertTrend(runID, series); err != nil {
		log.Fatalf("Failed to record trend: %v", err)
	}
	if err := store.CompleteRun(runID, nil); err != nil {
		log.Fatalf("Failed to complete run: %v", err)
	}

	log.Printf("run %s complete: %d scenes segmented, %d excluded", runID, segmented, len(series.Excluded))
	for _, ex := range series.Excluded {
		log.Printf("  excluded year %d: %s", ex.Year, ex.Reason)
	}
	for _, s := range series.Samples {
		log.Printf("  %d: area %.3f km², mean backscatter %.2f dB (threshold %.2f dB)",
			s.Year, s.IceAreaKm2, s.MeanBackscatterDB, s.ThresholdDB)
	}
	if series.InsufficientData {
		log.Printf("insufficient data for trend (%d samples)", len(series.Samples))
		return
	}
	if t := series.AreaTrend; t != nil {
		log.Printf("area trend: %+.4f km²/year (R²=%.3f, p=%.4f)", t.SlopePerYear, t.RSquared, t.PValue)
	}
	if t := series.BackscatterTrend; t != nil {
		log.Printf("backscatter trend: %+.4f dB/year (R²=%.3f, p=%.4f)", t.SlopePerYear, t.RSquared, t.PValue)
	}
	log.Printf("area CV %.4f, total change %+.3f km² (%+.1f%%)",
		series.AreaCV, series.TotalChangeKm2, series.RelativeChangePct)
}

// recordScenes persists per-scene rows and returns the segmented count.
func recordScenes(store *db.RunStore, runID string, outcomes []pipeline.SceneOutcome) int {
	segmented := 0
	for _, o := range outcomes {
		if o.Err != nil {
			year := o.Input.Scene.AcquisitionDate.Year()
			if err := store.InsertExcludedScene(runID, o.Input.ID, year, o.Err.Error()); err != nil {
				log.Printf("failed to record exclusion for %s: %v", o.Input.ID, err)
			}
			continue
		}
		if err := store.InsertSceneMetric(db.SceneMetricFromSegmented(runID, o.Input.ID, o.Segmented)); err != nil {
			log.Printf("failed to record metrics for %s: %v", o.Input.ID, err)
			continue
		}
		segmented++
	}
	return segmented
}

// recordComparisons runs the change detector over consecutive segmented
// scenes and persists the scalar summaries.
func recordComparisons(store *db.RunStore, runID string, params pipeline.Params, outcomes []pipeline.SceneOutcome) {
	cd := sar.ChangeDetector{
		Method:         params.ChangeMethod,
		SignificanceDB: params.SignificanceThresholdDB,
	}

	var prev *pipeline.SceneOutcome
	for i := range outcomes {
		o := &outcomes[i]
		if o.Err != nil {
			continue
		}
		if prev != nil {
			res, err := cd.Compare(prev.Segmented, o.Segmented)
			if err != nil {
				log.Printf("comparison %s -> %s failed: %v", prev.Input.ID, o.Input.ID, err)
			} else {
				log.Printf("change %s -> %s: mean %+.2f dB, %.1f%% decreased, %.1f%% increased",
					prev.Input.ID, o.Input.ID,
					res.MeanChangeDB, res.PercentAreaDecreased, res.PercentAreaIncreased)
				summary := db.ChangeSummary{
					RunID:                runID,
					BeforeSceneID:        prev.Input.ID,
					AfterSceneID:         o.Input.ID,
					Method:               params.ChangeMethod.String(),
					ValidPixels:          res.ValidPixels,
					PercentAreaDecreased: res.PercentAreaDecreased,
					PercentAreaIncreased: res.PercentAreaIncreased,
					MeanChangeDB:         res.MeanChangeDB,
					StdChangeDB:          res.StdChangeDB,
					MaxDecreaseDB:        res.MaxDecreaseDB,
					MaxIncreaseDB:        res.MaxIncreaseDB,
				}
				if err := store.InsertChangeSummary(summary); err != nil {
					log.Printf("failed to record change summary: %v", err)
				}
			}
		}
		prev = o
	}
}
