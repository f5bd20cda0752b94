package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fieldguide/dvrguide/internal/catalog"
)

// misfireGrace is how late past the scheduled HH:MM the scheduler will
// still treat a tick as "due". Covers the process having been busy, asleep,
// or just starting up around the target minute.
const misfireGrace = 5 * time.Minute

// schedulerTick is how often the scheduler checks whether it's time to fire.
// A minute-granularity HH:MM schedule doesn't need finer polling.
const schedulerTick = time.Minute

// Scheduler polls UserPreferences for auto_refresh_enabled/auto_refresh_time
// and triggers an auto run once per day at that local time.
type Scheduler struct {
	orch *Orchestrator
	store *catalog.Store
	loc   *time.Location
	log   *logrus.Entry

	lastFiredDay string // "2006-01-02" in loc, guards against re-firing twice the same day
}

// NewScheduler builds a Scheduler for the given IANA time zone name.
func NewScheduler(orch *Orchestrator, store *catalog.Store, tz string, log *logrus.Entry) (*Scheduler, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load time zone %q: %w", tz, err)
	}
	return &Scheduler{orch: orch, store: store, loc: loc, log: log}, nil
}

// Run polls until ctx is cancelled, firing an auto refresh at most once per
// day. Intended to run in its own goroutine for the process lifetime.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(schedulerTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.maybeFire(ctx)
		}
	}
}

func (s *Scheduler) maybeFire(ctx context.Context) {
	prefs, err := s.store.LoadPreferences(ctx)
	if err != nil {
		s.log.WithError(err).Warn("scheduler: load preferences failed")
		return
	}
	if !prefs.AutoRefreshEnabled {
		return
	}

	hour, minute, err := parseHHMM(prefs.AutoRefreshTime)
	if err != nil {
		s.log.WithError(err).WithField("auto_refresh_time", prefs.AutoRefreshTime).Warn("scheduler: bad auto_refresh_time")
		return
	}

	now := time.Now().In(s.loc)
	scheduled := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, s.loc)
	today := now.Format("2006-01-02")

	if s.lastFiredDay == today {
		return
	}
	if now.Before(scheduled) || now.Sub(scheduled) > misfireGrace {
		return
	}

	s.lastFiredDay = today
	s.log.WithField("scheduled_for", scheduled.Format(time.RFC3339)).Info("scheduler: firing auto refresh")
	go func() {
		if err := s.orch.Run(ctx, KindAuto); err != nil {
			s.log.WithError(err).Warn("scheduler: auto refresh run failed to start or complete")
		}
	}()
}

func parseHHMM(v string) (hour, minute int, err error) {
	parts := strings.SplitN(v, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("orchestrator: auto_refresh_time %q is not HH:MM", v)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("orchestrator: invalid hour in %q", v)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("orchestrator: invalid minute in %q", v)
	}
	return hour, minute, nil
}
