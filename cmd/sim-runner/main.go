// Package main runs a headless seeded farm simulation and verifies the
// calendar guarantees. It exits non-zero when any check fails.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/greenvale/farmsim/server/internal/events"
	"github.com/greenvale/farmsim/server/internal/infra/storage"
	"github.com/greenvale/farmsim/server/internal/platform/logger"
	"github.com/greenvale/farmsim/server/internal/platform/metrics"
	"github.com/greenvale/farmsim/server/internal/simulation"
)

func main() {
	seed := flag.Int64("seed", 0, "Weather seed (0 = derived from the current time)")
	cycles := flag.Int("cycles", 4, "Number of seasons to simulate")
	location := flag.String("location", "Ocean", "Where to fish each day")
	hour := flag.Int("hour", 12, "Hour to fish each day [6,23]")
	dbPath := flag.String("db", "", "Optional SQLite journal for the run's events")
	asJSON := flag.Bool("json", false, "Print the report as JSON")
	verbose := flag.Bool("v", false, "Log engine activity")
	flag.Parse()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	appLogger := logger.NewNop()
	if *verbose {
		appLogger = logger.NewDevelopment()
	}
	defer appLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	report, err := run(ctx, *seed, *cycles, *location, *hour, *dbPath, appLogger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "simulation failed: %v\n", err)
		os.Exit(2)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(report)
	} else {
		printReport(report)
	}
	if !report.Passed() {
		os.Exit(1)
	}
}

func run(ctx context.Context, seed int64, cycles int, location string, hour int, dbPath string, log *logger.Logger) (*simulation.Report, error) {
	collector := metrics.NewCollector()
	opts := simulation.DefaultOptions(seed)
	opts.Cycles, opts.FishLocation, opts.FishHour = cycles, location, hour
	opts.Metrics = collector

	if dbPath != "" {
		db, err := storage.InitSQLite(dbPath, 1)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		sessionID := "sim-" + uuid.NewString()
		opts.EventLog = events.NewEventLog(storage.NewJournal(storage.NewSQLiteEventRepository(db), sessionID, collector))
		fmt.Printf("Journaling to %s as session %s\n", dbPath, sessionID)
	}

	runner, err := simulation.NewRunner(opts, log)
	if err != nil {
		return nil, err
	}
	return runner.Run(ctx)
}

func printReport(r *simulation.Report) {
	line := strings.Repeat("=", 60)
	fmt.Println(line)
	fmt.Printf("FARM SIMULATION  seed=%d  days=%d  rollovers=%d  events=%d\n", r.Seed, r.Days, r.Rollovers, r.Events)
	fmt.Println(line)
	fmt.Printf("%-4s %-8s %5s %6s %6s %9s %7s\n", "#", "SEASON", "DAYS", "RAINY", "FISH", "HARVESTED", "GOLD")
	for _, s := range r.Seasons {
		fmt.Printf("%-4d %-8s %5d %6d %6d %9d %7d\n", s.Index+1, s.Season, s.Days, s.RainyDays, s.FishCaught, s.Harvested, s.GoldEarned)
	}
	fmt.Println(line)

	if r.Passed() {
		fmt.Println("All checks passed")
		return
	}
	fmt.Printf("%d violations:\n", len(r.Violations))
	for _, v := range r.Violations {
		fmt.Printf("  [%s] day %d: %s\n", v.Check, v.Day, v.Detail)
	}
}
