package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"taskbook/internal/logger"
)

// Refresher reloads cached state from the backend.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// SchedulerService wraps cron-based jobs.
type SchedulerService struct {
	cron *cron.Cron
	log  *logger.Logger
}

func NewSchedulerService(loc *time.Location, log *logger.Logger) *SchedulerService {
	log = log.WithComponent("scheduler")
	cl := cron.PrintfLogger(log)
	return &SchedulerService{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log: log,
	}
}

func (s *SchedulerService) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *SchedulerService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// ScheduleInterval registers a periodic job every given duration.
func (s *SchedulerService) ScheduleInterval(interval time.Duration, job func()) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("interval must be positive")
	}
	seconds := int(interval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	spec := fmt.Sprintf("@every %ds", seconds)
	return s.cron.AddFunc(spec, job)
}

// ScheduleRefresh reloads r every interval. Each run gets a context that
// expires after one interval.
func (s *SchedulerService) ScheduleRefresh(r Refresher, interval time.Duration) (cron.EntryID, error) {
	return s.ScheduleInterval(interval, func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()

		start := time.Now()
		if err := r.Refresh(ctx); err != nil {
			s.log.Warnw("refresh failed", "error", err)
			return
		}
		s.log.Debugw("cache refreshed", "duration", time.Since(start))
	})
}
