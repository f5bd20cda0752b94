// Package orchestrator implements the refresh orchestrator: the single
// pipeline that turns enabled provider ingesters and the current catalog
// state into rebuilt lane plans and regenerated guide artifacts, triggered
// either manually or on a daily schedule.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fieldguide/dvrguide/internal/catalog"
	"github.com/fieldguide/dvrguide/internal/dvrapi"
	"github.com/fieldguide/dvrguide/internal/ingest"
	"github.com/fieldguide/dvrguide/internal/lanes"
)

// ErrAlreadyRunning is returned by Run when a refresh of either kind is
// already in progress. At most one run is active at a time; a concurrent
// trigger is rejected, not queued.
var ErrAlreadyRunning = fmt.Errorf("orchestrator: a refresh is already running")

// Kind distinguishes a manually-triggered run from the scheduled one; their
// status is tracked separately so a manual nudge doesn't clobber the auto
// run's own last-result bookkeeping.
type Kind string

const (
	KindManual Kind = "manual"
	KindAuto   Kind = "auto"
)

// RunStatus is one kind's status surface, returned by /api/status.
type RunStatus struct {
	Running     bool      `json:"running"`
	CurrentStep string    `json:"current_step,omitempty"`
	LastRun     time.Time `json:"last_run,omitempty"`
	LastStatus  string    `json:"last_status"` // "never", "ok", "error"
	LastError   string    `json:"last_error,omitempty"`
	LastRunID   string    `json:"last_run_id,omitempty"`
}

// IngesterConfig names one ingester to run this pass along with the
// upstream key its persisted auth blob (if any) is filed under.
type IngesterConfig struct {
	Code     string
	Upstream string
}

// Config wires everything one orchestrator instance needs across its
// lifetime; built once at startup in cmd/dvrguide.
type Config struct {
	Store    *catalog.Store
	Registry *ingest.Registry
	DVR      *dvrapi.Client

	Ingesters []IngesterConfig

	OutDir          string
	ResolverBaseURL string
	DaysAhead       int

	LaneOptions lanes.Options
	AdbOptions  lanes.AdbOptions

	ServicesForAdbProvider func(string) []string
	DefaultPriority        func(string) int

	// RefreshDVRHooks, when true, re-triggers the DVR group scan at the end
	// of a successful run so freshly-rewritten M3U sources are re-read.
	RefreshDVRHooks bool

	Now   func() time.Time
	NewID func() string

	Log     *logrus.Entry
	Metrics *Metrics
}

// Orchestrator drives the refresh pipeline and tracks manual/auto run state.
type Orchestrator struct {
	cfg Config

	runMu sync.Mutex // held for the duration of any Run, manual or auto

	statusMu sync.RWMutex
	manual   RunStatus
	auto     RunStatus

	logBuffer *LogBuffer
}

// New builds an Orchestrator. cfg.Now/cfg.NewID default to time.Now and
// uuid.NewString; cfg.Metrics defaults to a fresh, unregistered Metrics.
func New(cfg Config, logBuffer *LogBuffer) *Orchestrator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics()
	}
	return &Orchestrator{
		cfg:       cfg,
		manual:    RunStatus{LastStatus: "never"},
		auto:      RunStatus{LastStatus: "never"},
		logBuffer: logBuffer,
	}
}

// Metrics exposes the Prometheus registry backing /metrics.
func (o *Orchestrator) Metrics() *Metrics { return o.cfg.Metrics }

// Status returns a snapshot of both run kinds' status.
func (o *Orchestrator) Status() (manual, auto RunStatus) {
	o.statusMu.RLock()
	defer o.statusMu.RUnlock()
	return o.manual, o.auto
}

func (o *Orchestrator) setStatus(kind Kind, mutate func(*RunStatus)) {
	o.statusMu.Lock()
	defer o.statusMu.Unlock()
	switch kind {
	case KindManual:
		mutate(&o.manual)
	case KindAuto:
		mutate(&o.auto)
	}
}

func (o *Orchestrator) setStep(kind Kind, step string) {
	o.setStatus(kind, func(s *RunStatus) { s.CurrentStep = step })
	if o.logBuffer != nil {
		o.logBuffer.Append(fmt.Sprintf("[%s] %s", kind, step))
	}
}

// Run executes one full refresh pass: ingest, ESPN graph-id enrichment,
// lane rebuild (generic then per-provider), artifact emission, and an
// optional DVR refresh hook. Only one run, manual or auto, may
// be in flight at a time.
func (o *Orchestrator) Run(ctx context.Context, kind Kind) error {
	if !o.runMu.TryLock() {
		return ErrAlreadyRunning
	}
	defer o.runMu.Unlock()

	runID := o.cfg.NewID()
	now := o.cfg.Now()
	log := o.cfg.Log.WithFields(logrus.Fields{"run_id": runID, "kind": string(kind)})

	o.setStatus(kind, func(s *RunStatus) {
		s.Running = true
		s.CurrentStep = "starting"
		s.LastRunID = runID
	})
	started := time.Now()

	err := o.runPipeline(ctx, kind, runID, now, log)

	status := "ok"
	if err != nil {
		status = "error"
		log.WithError(err).Error("refresh run failed")
		o.captureFailure(runID, kind, err)
	} else {
		log.Info("refresh run complete")
	}

	o.cfg.Metrics.refreshDuration.WithLabelValues(string(kind), status).Observe(time.Since(started).Seconds())
	o.cfg.Metrics.refreshTotal.WithLabelValues(string(kind), status).Inc()

	o.setStatus(kind, func(s *RunStatus) {
		s.Running = false
		s.CurrentStep = ""
		s.LastRun = now
		s.LastStatus = status
		if err != nil {
			s.LastError = err.Error()
		} else {
			s.LastError = ""
		}
	})
	return err
}

func (o *Orchestrator) runPipeline(ctx context.Context, kind Kind, runID string, now time.Time, log *logrus.Entry) error {
	o.setStep(kind, "schema")
	if err := o.cfg.Store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("schema ensure: %w", err)
	}

	o.setStep(kind, "ingest")
	for _, ic := range o.cfg.Ingesters {
		if err := o.runIngester(ctx, ic, now, log); err != nil {
			// One provider's failure never aborts the pipeline; it's
			// logged, counted, and the run proceeds to the remaining
			// providers and stages.
			log.WithError(err).WithField("provider", ic.Code).Warn("ingester failed, continuing")
			o.cfg.Metrics.ingesterErrors.WithLabelValues(ic.Code).Inc()
		}
	}

	o.setStep(kind, "enrich")
	if _, err := EnrichESPNGraphIDs(ctx, o.cfg.Store, now, o.cfg.DaysAhead, log); err != nil {
		return fmt.Errorf("espn graph id enrichment: %w", err)
	}

	prefs, err := o.cfg.Store.LoadPreferences(ctx)
	if err != nil {
		return fmt.Errorf("load preferences: %w", err)
	}

	o.setStep(kind, "lanes:generic")
	genericStats, err := lanes.BuildGeneric(ctx, o.cfg.Store, prefs, o.cfg.LaneOptions, now)
	if err != nil {
		return fmt.Errorf("rebuild generic lanes: %w", err)
	}
	o.cfg.Metrics.activeLanes.Set(float64(genericStats.Scheduled))

	o.setStep(kind, "lanes:adb")
	adbStats, err := lanes.BuildAdb(ctx, o.cfg.Store, prefs, o.cfg.AdbOptions, now, o.cfg.ServicesForAdbProvider, o.cfg.DefaultPriority)
	if err != nil {
		return fmt.Errorf("rebuild adb lanes: %w", err)
	}
	for _, s := range adbStats {
		o.cfg.Metrics.activeAdbLanes.WithLabelValues(s.ProviderCode).Set(float64(s.Scheduled))
	}

	o.setStep(kind, "artifacts")
	if _, err := WriteArtifacts(ctx, o.cfg.Store, prefs, o.cfg.OutDir, o.cfg.ResolverBaseURL, o.cfg.DaysAhead, now, runID, log); err != nil {
		return fmt.Errorf("write artifacts: %w", err)
	}

	if o.cfg.RefreshDVRHooks && o.cfg.DVR != nil {
		o.setStep(kind, "dvr_refresh")
		if err := o.cfg.DVR.ScanScanner(ctx); err != nil {
			log.WithError(err).Warn("dvr scan hook failed, artifacts were still written")
		}
	}

	log.WithFields(logrus.Fields{
		"lanes_scheduled": genericStats.Scheduled,
		"lanes_dropped":   genericStats.Dropped,
		"adb_providers":   len(adbStats),
	}).Info("pipeline stages complete")
	return nil
}

func (o *Orchestrator) runIngester(ctx context.Context, ic IngesterConfig, now time.Time, log *logrus.Entry) error {
	ing, err := o.cfg.Registry.Build(ic.Code)
	if err != nil {
		return err
	}

	var auth *catalog.AuthBlob
	if ic.Upstream != "" {
		auth, err = o.cfg.Store.AuthBlobByUpstream(ctx, ic.Upstream)
		if err != nil {
			return fmt.Errorf("load auth blob for %s: %w", ic.Upstream, err)
		}
	}

	src := ingest.Source{Auth: auth, Now: now, DaysAhead: o.cfg.DaysAhead}
	_, err = ingest.Run(ctx, o.cfg.Store, ing, src, log)
	return err
}

// captureFailure reports a failed run to Sentry when a DSN is configured
// (sentry.Init is a no-op target when unconfigured, so this call is safe
// even with no DSN set). Catalog-integrity violations surface here as plain
// errors bubbling out of runPipeline's stages.
func (o *Orchestrator) captureFailure(runID string, kind Kind, err error) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("run_id", runID)
		scope.SetTag("kind", string(kind))
		sentry.CaptureException(err)
	})
}
