package statistics

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/wordquiz/internal/apperr"
	"github.com/example/wordquiz/pkg/models"
)

// Source is a sparse per-day, per-user rollup, implemented by database.ExposureRepository
type Source interface {
	ActiveUsers(ctx context.Context, from, to string) ([]string, error)
	DailyCounts(ctx context.Context, from, to string, metric models.Metric) ([]models.DailyCount, error)
}

// Dashboard holds both dashboard series over the same date range
type Dashboard struct {
	Start     string                  `json:"start"`
	End       string                  `json:"end"`
	Users     []string                `json:"users"`
	Correct   []models.DailyStatPoint `json:"correct"`
	Incorrect []models.DailyStatPoint `json:"incorrect"`
}

// Aggregator turns sparse activity rollups into dense date × user grids
type Aggregator struct {
	sources []Source
	log     *zap.Logger
}

// NewAggregator creates an aggregator that unions the given sources
func NewAggregator(log *zap.Logger, sources ...Source) *Aggregator {
	return &Aggregator{sources: sources, log: log}
}

// Aggregate returns one point per (date, user) for every calendar date in
// [start, end] and every user active in that window. Cells without activity
// are zero. Points are sorted by date, then user.
func (a *Aggregator) Aggregate(ctx context.Context, start, end time.Time, metric models.Metric) ([]models.DailyStatPoint, error) {
	dates, err := DateRange(start, end)
	if err != nil {
		return nil, err
	}
	from, to := dates[0], dates[len(dates)-1]

	users, err := a.activeUsers(ctx, from, to)
	if err != nil {
		return nil, err
	}
	counts, err := a.dailyCounts(ctx, from, to, metric)
	if err != nil {
		return nil, err
	}

	points := densify(dates, users, counts)
	a.log.Debug("Aggregated statistics",
		zap.String("metric", string(metric)),
		zap.String("from", from),
		zap.String("to", to),
		zap.Int("users", len(users)),
		zap.Int("points", len(points)))
	return points, nil
}

// Dashboard builds the correct and incorrect series for [start, end]
func (a *Aggregator) Dashboard(ctx context.Context, start, end time.Time) (*Dashboard, error) {
	dates, err := DateRange(start, end)
	if err != nil {
		return nil, err
	}

	var dash Dashboard
	dash.Start, dash.End = dates[0], dates[len(dates)-1]

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		dash.Users, err = a.activeUsers(gctx, dash.Start, dash.End)
		return err
	})
	g.Go(func() error {
		var err error
		dash.Correct, err = a.Aggregate(gctx, start, end, models.MetricCorrect)
		return err
	})
	g.Go(func() error {
		var err error
		dash.Incorrect, err = a.Aggregate(gctx, start, end, models.MetricIncorrect)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &dash, nil
}

func (a *Aggregator) activeUsers(ctx context.Context, from, to string) ([]string, error) {
	var (
		mu    sync.Mutex
		union = make(map[string]struct{})
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range a.sources {
		g.Go(func() error {
			users, err := src.ActiveUsers(gctx, from, to)
			if err != nil {
				return fmt.Errorf("failed to get active users: %w", err)
			}
			mu.Lock()
			defer mu.Unlock()
			for _, u := range users {
				union[u] = struct{}{}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	users := make([]string, 0, len(union))
	for u := range union {
		users = append(users, u)
	}
	sort.Strings(users)
	return users, nil
}

func (a *Aggregator) dailyCounts(ctx context.Context, from, to string, metric models.Metric) (map[cell]int, error) {
	var (
		mu     sync.Mutex
		totals = make(map[cell]int)
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range a.sources {
		g.Go(func() error {
			rows, err := src.DailyCounts(gctx, from, to, metric)
			if err != nil {
				return fmt.Errorf("failed to get daily counts: %w", err)
			}
			mu.Lock()
			defer mu.Unlock()
			for _, row := range rows {
				totals[cell{date: row.Date, user: row.User}] += row.Count
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return totals, nil
}

type cell struct {
	date string
	user string
}

// densify builds the dates × users cross product, taking counts from the
// sparse map and zero for missing cells
func densify(dates, users []string, counts map[cell]int) []models.DailyStatPoint {
	points := make([]models.DailyStatPoint, 0, len(dates)*len(users))
	for _, d := range dates {
		for _, u := range users {
			points = append(points, models.DailyStatPoint{
				Date:  d,
				User:  u,
				Count: counts[cell{date: d, user: u}],
			})
		}
	}
	return points
}

// DateRange lists every calendar date from start to end inclusive. Only the
// date part of start and end in their own location is used.
func DateRange(start, end time.Time) ([]string, error) {
	first := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	if first.After(last) {
		return nil, apperr.Validation("invalid date range",
			fmt.Sprintf("start %s is after end %s", first.Format(models.DateLayout), last.Format(models.DateLayout)))
	}

	var dates []string
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(models.DateLayout))
	}
	return dates, nil
}
