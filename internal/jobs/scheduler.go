package jobs

import (
	"context"
	"time"

	"github.com/hackgods/clinic-booking/pkg/logging"
)

// Claimer hands out a run to exactly one caller per key, across instances.
// Release gives the key back so a failed run can be retried.
type Claimer interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Scheduler decides on each tick whether the reminder or report job is due.
// Daily reminders run once per display-zone day at ReminderHour. Monthly
// reports run once on ReportDay at ReminderHour and cover the previous month.
type Scheduler struct {
	runner       *Runner
	claims       Claimer
	reminderHour int
	reportDay    int
	logger       *logging.Logger

	lastReminder string
	lastReport   string
}

func NewScheduler(runner *Runner, claims Claimer, reminderHour, reportDay int, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	if reportDay < 1 || reportDay > 28 {
		reportDay = 1
	}
	return &Scheduler{
		runner:       runner,
		claims:       claims,
		reminderHour: reminderHour,
		reportDay:    reportDay,
		logger:       logger,
	}
}

// runClaimed runs job under key and reports whether the period is settled:
// the job succeeded or another instance holds the claim. A claim error or a
// failed run leaves the period open for the next tick.
func (s *Scheduler) runClaimed(ctx context.Context, key string, ttl time.Duration, job func() error) bool {
	if s.claims != nil {
		ok, err := s.claims.Claim(ctx, key, ttl)
		if err != nil {
			s.logger.Error("job claim failed", "key", key, "error", err)
			return false
		}
		if !ok {
			return true
		}
	}

	if err := job(); err != nil {
		s.logger.Error("scheduled job failed, will retry", "key", key, "error", err)
		if s.claims != nil {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			if err := s.claims.Release(releaseCtx, key); err != nil {
				s.logger.Error("job claim release failed", "key", key, "error", err)
			}
		}
		return false
	}
	return true
}

// Tick runs whichever jobs are due at now.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	local := now.In(s.runner.loc)
	if local.Hour() < s.reminderHour {
		return
	}

	day := local.Format("2006-01-02")
	if s.lastReminder != day {
		if s.runClaimed(ctx, "job:"+JobDailyReminder+":"+day, 36*time.Hour, func() error {
			_, err := s.runner.DailyReminders(ctx, now)
			return err
		}) {
			s.lastReminder = day
		}
	}

	month := local.Format("2006-01")
	if local.Day() >= s.reportDay && s.lastReport != month {
		firstOfMonth := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, s.runner.loc)
		if s.runClaimed(ctx, "job:"+JobMonthlyReport+":"+month, 40*24*time.Hour, func() error {
			_, err := s.runner.MonthlyReports(ctx, firstOfMonth.AddDate(0, 0, -1))
			return err
		}) {
			s.lastReport = month
		}
	}
}
