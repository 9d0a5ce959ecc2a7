package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/example/wordquiz/internal/apperr"
	"github.com/example/wordquiz/internal/metrics"
	"github.com/example/wordquiz/pkg/models"
)

// ExposureStore is the persistent side of the tracker, implemented by
// database.ExposureRepository
type ExposureStore interface {
	Kind() models.Kind
	Increment(ctx context.Context, itemID, userID string, isCorrect bool, activityDate string, now time.Time) (*models.ExposureRecord, error)
	CountByDate(ctx context.Context, userID, activityDate string) (int, error)
	LearntItems(ctx context.Context, userID string) ([]string, error)
	CorrectCounts(ctx context.Context, userID string) (map[string]int, error)
}

// Tracker records graded answers per (item, user) for one item kind
type Tracker struct {
	store   ExposureStore
	clock   clockwork.Clock
	loc     *time.Location
	metrics *metrics.Metrics
	log     *zap.Logger
}

// Option configures a Tracker
type Option func(*Tracker)

// WithClock overrides the clock used to stamp records
func WithClock(clock clockwork.Clock) Option {
	return func(t *Tracker) { t.clock = clock }
}

// WithLocation sets the time zone that defines "today"
func WithLocation(loc *time.Location) Option {
	return func(t *Tracker) { t.loc = loc }
}

// WithMetrics enables answer counters
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

// New creates a tracker on top of store
func New(store ExposureStore, log *zap.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		store: store,
		clock: clockwork.NewRealClock(),
		loc:   time.Local,
		log:   log,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Kind returns the item kind this tracker records
func (t *Tracker) Kind() models.Kind {
	return t.store.Kind()
}

// Today returns the current local date in models.DateLayout
func (t *Tracker) Today() string {
	return t.clock.Now().In(t.loc).Format(models.DateLayout)
}

// RecordAnswer increments the correct or incorrect counter of (itemID, userID)
func (t *Tracker) RecordAnswer(ctx context.Context, itemID, userID string, isCorrect bool) error {
	_, err := t.Record(ctx, itemID, userID, isCorrect)
	return err
}

// Record increments a counter like RecordAnswer and returns the updated record
func (t *Tracker) Record(ctx context.Context, itemID, userID string, isCorrect bool) (*models.ExposureRecord, error) {
	if itemID == "" || userID == "" {
		return nil, apperr.Validation("cannot record answer", "item and user are required")
	}

	now := t.clock.Now()
	rec, err := t.store.Increment(ctx, itemID, userID, isCorrect, now.In(t.loc).Format(models.DateLayout), now)
	if err != nil {
		t.log.Error("Failed to record answer",
			zap.String("kind", string(t.Kind())),
			zap.String("item", itemID),
			zap.String("user", userID),
			zap.Error(err))
		return nil, err
	}

	t.metrics.Answer(string(t.Kind()), isCorrect)
	t.log.Debug("Recorded answer",
		zap.String("kind", string(t.Kind())),
		zap.String("item", itemID),
		zap.String("user", userID),
		zap.Bool("correct", isCorrect),
		zap.Int("correct_count", rec.CorrectCount),
		zap.Int("incorrect_count", rec.IncorrectCount))
	return rec, nil
}

// TotalExposureToday counts the items the user answered today
func (t *Tracker) TotalExposureToday(ctx context.Context, userID string) (int, error) {
	count, err := t.store.CountByDate(ctx, userID, t.Today())
	if err != nil {
		return 0, fmt.Errorf("failed to count today's exposures: %w", err)
	}
	return count, nil
}

// DailyLimitReached reports whether the user already saw limit items today
func (t *Tracker) DailyLimitReached(ctx context.Context, userID string, limit int) (bool, error) {
	count, err := t.TotalExposureToday(ctx, userID)
	if err != nil {
		return false, err
	}
	return count >= limit, nil
}

// LearntItems returns the items the user answered correctly at least once
func (t *Tracker) LearntItems(ctx context.Context, userID string) ([]string, error) {
	return t.store.LearntItems(ctx, userID)
}

// Exposures returns correct-answer counts per item for the selector
func (t *Tracker) Exposures(ctx context.Context, userID string) (map[string]int, error) {
	return t.store.CorrectCounts(ctx, userID)
}
