package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/example/wordquiz/pkg/models"
)

// Flusher persists pending cache entries
type Flusher interface {
	FlushCaches(ctx context.Context) error
}

// Reporter builds the dashboard series for a date range
type Reporter interface {
	Aggregate(ctx context.Context, start, end time.Time, metric models.Metric) ([]models.DailyStatPoint, error)
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler     *gocron.Scheduler
	flusher       Flusher
	reporter      Reporter
	flushInterval time.Duration
	timeout       time.Duration
	loc           *time.Location
	log           *zap.Logger
}

// New creates a new scheduler instance. reporter may be nil to skip the daily report.
func New(flusher Flusher, reporter Reporter, flushInterval time.Duration, loc *time.Location, log *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		scheduler:     gocron.NewScheduler(loc),
		flusher:       flusher,
		reporter:      reporter,
		flushInterval: flushInterval,
		timeout:       time.Minute,
		loc:           loc,
		log:           log,
	}
}

// Start begins running all scheduled tasks
func (s *Scheduler) Start() error {
	s.scheduler.TagsUnique()

	_, err := s.scheduler.Every(s.flushInterval).WaitForSchedule().SingletonMode().Tag("cache-flush").Do(s.flushCaches)
	if err != nil {
		return fmt.Errorf("failed to schedule cache flush: %w", err)
	}

	if s.reporter != nil {
		_, err = s.scheduler.Every(1).Day().At("00:05").SingletonMode().Tag("daily-report").Do(s.reportYesterday)
		if err != nil {
			return fmt.Errorf("failed to schedule daily report: %w", err)
		}
	}

	// Start the scheduler in a non-blocking manner
	s.scheduler.StartAsync()
	s.log.Info("Scheduler started", zap.Duration("flush_interval", s.flushInterval))
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) flushCaches() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.flusher.FlushCaches(ctx); err != nil {
		s.log.Error("Scheduled cache flush failed", zap.Error(err))
	}
}

// reportYesterday logs the previous day's per-user answer counts
func (s *Scheduler) reportYesterday() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	day := time.Now().In(s.loc).AddDate(0, 0, -1)
	correct, err := s.reporter.Aggregate(ctx, day, day, models.MetricCorrect)
	if err != nil {
		s.log.Error("Daily report failed", zap.Error(err))
		return
	}
	incorrect, err := s.reporter.Aggregate(ctx, day, day, models.MetricIncorrect)
	if err != nil {
		s.log.Error("Daily report failed", zap.Error(err))
		return
	}

	for i, point := range correct {
		missed := 0
		if i < len(incorrect) && incorrect[i].User == point.User {
			missed = incorrect[i].Count
		}
		s.log.Info("Daily activity",
			zap.String("date", point.Date),
			zap.String("user", point.User),
			zap.Int("correct", point.Count),
			zap.Int("incorrect", missed))
	}
}
