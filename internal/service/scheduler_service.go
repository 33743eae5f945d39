package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// AgendaSender delivers the daily agenda to its audience.
type AgendaSender interface {
	SendDailyAgenda(ctx context.Context) error
}

// SchedulerService runs the daily agenda on a cron schedule.
type SchedulerService struct {
	cron *cron.Cron
	log  *slog.Logger
}

func NewSchedulerService(loc *time.Location, log *slog.Logger) *SchedulerService {
	cronLog := cron.PrintfLogger(slog.NewLogLogger(log.Handler(), slog.LevelError))
	return &SchedulerService{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		log: log,
	}
}

// ScheduleAgenda sends the agenda every day at the HH:MM time. Each run gets
// its own deadline and is abandoned once ctx is done.
func (s *SchedulerService) ScheduleAgenda(ctx context.Context, at string, sender AgendaSender, timeout time.Duration) (cron.EntryID, error) {
	spec, err := buildDailySpec(at)
	if err != nil {
		return 0, err
	}
	return s.cron.AddFunc(spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		started := time.Now()
		if err := sender.SendDailyAgenda(runCtx); err != nil {
			if !errors.Is(err, context.Canceled) {
				s.log.Error("daily agenda", "at", at, "error", err)
			}
			return
		}
		s.log.Info("daily agenda sent", "took", time.Since(started))
	})
}

// NextRun reports when the given entry fires next.
func (s *SchedulerService) NextRun(id cron.EntryID) time.Time {
	return s.cron.Entry(id).Next
}

func (s *SchedulerService) Start() {
	s.cron.Start()
}

// Stop waits for a running agenda job to finish.
func (s *SchedulerService) Stop() {
	<-s.cron.Stop().Done()
}

// buildDailySpec turns HH:MM into a seconds-first cron spec.
func buildDailySpec(at string) (string, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(at))
	if err != nil {
		return "", fmt.Errorf("invalid agenda time %q, expected HH:MM", at)
	}
	return fmt.Sprintf("0 %d %d * * *", t.Minute(), t.Hour()), nil
}
