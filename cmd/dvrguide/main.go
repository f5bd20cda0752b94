// dvrguide is the single-process entrypoint: it wires the catalog store,
// the refresh orchestrator, the resolver + detector, and the
// filters/preferences admin API behind one HTTP listener.
//
// Provider ingesters are an external contract; none
// are registered here; operators wire their own ingest.Ingester
// implementations into the registry built in newIngestRegistry below.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fieldguide/dvrguide/internal/catalog"
	"github.com/fieldguide/dvrguide/internal/config"
	"github.com/fieldguide/dvrguide/internal/detector"
	"github.com/fieldguide/dvrguide/internal/dvrapi"
	"github.com/fieldguide/dvrguide/internal/filters"
	"github.com/fieldguide/dvrguide/internal/handlers"
	"github.com/fieldguide/dvrguide/internal/ingest"
	"github.com/fieldguide/dvrguide/internal/lanes"
	"github.com/fieldguide/dvrguide/internal/logging"
	"github.com/fieldguide/dvrguide/internal/mapper"
	"github.com/fieldguide/dvrguide/internal/orchestrator"
	"github.com/fieldguide/dvrguide/internal/resolver"
	"github.com/fieldguide/dvrguide/internal/shutdown"
)

func main() {
	log := logging.New("dvrguide")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config load failed")
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			log.WithError(err).Warn("sentry init failed, continuing without error reporting")
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	store, err := catalog.Open(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("catalog open failed")
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.EnsureSchema(ctx); err != nil {
		log.WithError(err).Fatal("schema ensure failed")
	}

	dvr := dvrapi.New(cfg.DVRHost, cfg.DVRPort)

	segment, err := resolver.BuildDummySegment(log)
	if err != nil {
		log.WithError(err).Warn("dummy HLS segment unavailable, /lane/{lane}/segment.ts will 404")
	}

	if cfg.DetectorEnabled() {
		if err := detector.BootstrapSidecars(ctx, dvr, cfg.DVRImportMountPath, cfg.LaneCount, log); err != nil {
			log.WithError(err).Warn("sidecar bootstrap failed")
		}
	}

	var onStreamHit resolver.DetectorTrigger
	var onAdbStreamHit resolver.AdbDetectorTrigger
	if cfg.DetectorEnabled() {
		det := detector.New(detector.Config{
			Store:                  store,
			PrefsLoader:            store.LoadPreferences,
			PaddingMinutes:         cfg.PaddingMinutes,
			DefaultPriority:        mapper.DefaultPriority,
			ServicesForAdbProvider: mapper.ServicesForAdbProvider,
			DVR:                    dvr,
			ImportMountPath:        cfg.DVRImportMountPath,
			DefaultAPIPort:         cfg.DVRAPIPort,
			Debounce:               cfg.DebounceDuration(),
			Log:                    log,
		})
		onStreamHit = det.TriggerLane
		onAdbStreamHit = det.TriggerAdbLane
	} else {
		log.Warn("no DVR import mount configured, detector disabled; stub HLS still serves")
	}

	resolverSrv := resolver.NewServer(store, store.LoadPreferences, cfg.PaddingMinutes, segment, onStreamHit, onAdbStreamHit, log)

	orchCfg := orchestrator.Config{
		Store:                  store,
		Registry:               newIngestRegistry(),
		DVR:                    dvr,
		OutDir:                 cfg.OutDir,
		ResolverBaseURL:        cfg.ResolverBaseURL,
		DaysAhead:              cfg.DaysAhead,
		RefreshDVRHooks:        true,
		ServicesForAdbProvider: mapper.ServicesForAdbProvider,
		DefaultPriority:        mapper.DefaultPriority,
		LaneOptions: lanes.Options{
			LaneCount:               cfg.LaneCount,
			LaneStartCh:             cfg.LaneStartChannel,
			DaysAhead:               cfg.DaysAhead,
			PaddingMinutes:          cfg.PaddingMinutes,
			PlaceholderBlockMinutes: cfg.PlaceholderBlockMins,
			PlaceholderExtraDays:    cfg.PlaceholderExtraDays,
			DisplayPrefix:           "Fruit Lane",
			FakeChannelDenyList:     cfg.FakeChannelDenyList,
		},
		AdbOptions: lanes.AdbOptions{
			DaysAhead:           cfg.DaysAhead,
			FakeChannelDenyList: cfg.FakeChannelDenyList,
		},
		Log: log,
	}
	logBuffer := orchestrator.NewLogBuffer()
	// The ring buffer doubles as a logrus hook, so every structured line any
	// component emits is also visible on /api/logs/stream.
	log.Logger.AddHook(logBuffer)
	orch := orchestrator.New(orchCfg, logBuffer)
	orchSrv := orchestrator.NewServer(orch, store, log)

	filtersSrv := filters.NewServer(store, mapper.DefaultPriority, log)

	sched, err := orchestrator.NewScheduler(orch, store, cfg.TZ, log)
	if err != nil {
		log.WithError(err).Fatal("scheduler init failed")
	}
	schedCtx, cancelSched := context.WithCancel(ctx)
	defer cancelSched()
	go sched.Run(schedCtx)

	root := chi.NewRouter()
	root.Use(middleware.Logger)
	root.Use(middleware.Recoverer)
	root.Get("/healthz", handlers.Liveness)
	root.Get("/ready", handlers.Readiness(store))
	resolverSrv.Register(root)
	orchSrv.Register(root)
	filtersSrv.Register(root)

	addr := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      root,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("component", "dvrguide")
	if err := shutdown.GracefulServe(srv, 15*time.Second, slogger); err != nil {
		log.WithError(err).Fatal("server exited with error")
	}
}

// newIngestRegistry returns the set of provider ingesters this deployment
// runs. Empty by default; ingesters are an external contract
// implemented and registered by whoever operates a given provider adapter.
func newIngestRegistry() *ingest.Registry {
	return ingest.NewRegistry()
}
