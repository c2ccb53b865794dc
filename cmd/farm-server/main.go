// Package main is the entry point for the farm simulation server.
// It only handles dependency injection and server initialization.
// NO business logic belongs here.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/greenvale/farmsim/server/internal/engine"
	"github.com/greenvale/farmsim/server/internal/events"
	"github.com/greenvale/farmsim/server/internal/infra/storage"
	"github.com/greenvale/farmsim/server/internal/network"
	"github.com/greenvale/farmsim/server/internal/platform/config"
	"github.com/greenvale/farmsim/server/internal/platform/logger"
	"github.com/greenvale/farmsim/server/internal/platform/metrics"
)

const tuningInterval = time.Minute

func main() {
	cfg := config.DefaultConfig()
	fast := flag.Bool("fast", false, "Use development timings (10ms ticks)")
	dev := flag.Bool("dev", false, "Human-readable development logging")
	tick := flag.Duration("tick", cfg.TickInterval, "Real duration of one clock tick")
	perTick := flag.Int("minutes-per-tick", cfg.MinutesPerTick, "Game minutes per tick (must divide 60)")
	seed := flag.Int64("seed", cfg.WeatherSeed, "Weather seed (0 = time-seeded)")
	dbPath := flag.String("db", cfg.DBPath, "SQLite journal path (\":memory:\" for none on disk)")
	addr := flag.String("addr", cfg.ListenAddr, "HTTP listen address")
	flag.Parse()

	if *fast {
		cfg = config.FastConfig()
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "tick":
			cfg.TickInterval = *tick
		case "minutes-per-tick":
			cfg.MinutesPerTick = *perTick
		case "seed":
			cfg.WeatherSeed = *seed
		case "db":
			cfg.DBPath = *dbPath
		case "addr":
			cfg.ListenAddr = *addr
		}
	})

	appLogger := logger.NewLogger()
	if *dev {
		appLogger = logger.NewDevelopment()
	}
	defer appLogger.Sync()

	if err := run(cfg, appLogger); err != nil {
		appLogger.Error("Farm server stopped with error", logger.Err(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, appLogger *logger.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	collector := metrics.NewCollector()

	appLogger.Info("Initializing SQLite journal...", logger.String("path", cfg.DBPath))
	db, err := storage.InitSQLite(cfg.DBPath, cfg.DBMaxOpenConns)
	if err != nil {
		return err
	}
	defer db.Close()

	sessionID := uuid.NewString()
	eventRepo := storage.NewSQLiteEventRepository(db)
	journal := storage.NewJournal(eventRepo, sessionID, collector)

	appLogger.Info("Bootstrapping EventLog...", logger.String("session", sessionID))
	eventLog := events.NewEventLog(journal)
	eventLog.OnPersistError(func(e events.GameEvent, err error) {
		appLogger.Warn("Failed to journal event", logger.String("type", string(e.Type)), logger.Err(err))
	})
	defer eventLog.Flush()

	appLogger.Info("Bootstrapping Engine Subsystems...")
	gameEngine, err := engine.NewEngine(cfg, eventLog, appLogger, collector)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	gameEngine.Start(gctx)

	appLogger.Info("Bootstrapping WebSocket Hub...")
	hub := network.NewHub(cfg, gameEngine.Clock(), appLogger.Named("hub"), collector)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	hub.StartEventPoller(gctx, eventLog)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.HandleFunc("/metrics", collector.Handler())
	mux.HandleFunc("/metrics/prometheus", collector.PrometheusHandler())
	network.NewAPI(gameEngine, storage.NewRecap(eventRepo), sessionID, appLogger.Named("api")).RegisterRoutes(mux)
	network.NewReplayHandler(eventLog, appLogger.Named("replay")).RegisterRoutes(mux)

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	g.Go(func() error {
		appLogger.Info("HTTP API & WS Server listening", logger.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		abandoned := gameEngine.Shutdown()
		appLogger.Info("Engine stopped", logger.Int("abandoned_tasks", abandoned))
		return err
	})

	g.Go(func() error {
		ticker := time.NewTicker(tuningInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				rec := config.Analyze(collector.Snapshot(), cfg)
				for _, note := range rec.Notes {
					appLogger.Warn("Tuning recommendation", logger.String("note", note))
				}
				before := cfg.ClientSendBuffer
				config.ApplyRecommendations(cfg, rec)
				if cfg.ClientSendBuffer != before {
					hub.SetSendBuffer(cfg.ClientSendBuffer)
					appLogger.Info("Client send buffer resized",
						logger.Int("from", before),
						logger.Int("to", cfg.ClientSendBuffer),
					)
				}
			}
		}
	})

	return g.Wait()
}
