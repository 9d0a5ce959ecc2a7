package statistics

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/wordquiz/internal/apperr"
	"github.com/example/wordquiz/internal/database"
	"github.com/example/wordquiz/pkg/models"
)

type fakeSource struct {
	counts []models.DailyCount
	err    error
}

func (f *fakeSource) ActiveUsers(_ context.Context, from, to string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	seen := map[string]bool{}
	var users []string
	for _, c := range f.counts {
		if c.Date >= from && c.Date <= to && !seen[c.User] {
			seen[c.User] = true
			users = append(users, c.User)
		}
	}
	return users, nil
}

func (f *fakeSource) DailyCounts(_ context.Context, from, to string, _ models.Metric) ([]models.DailyCount, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.DailyCount
	for _, c := range f.counts {
		if c.Date >= from && c.Date <= to {
			out = append(out, c)
		}
	}
	return out, nil
}

func day(s string) time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestAggregate_ZeroFillsMissingDays(t *testing.T) {
	src := &fakeSource{counts: []models.DailyCount{{Date: "2024-01-02", User: "alice", Count: 3}}}
	agg := NewAggregator(zap.NewNop(), src)

	points, err := agg.Aggregate(context.Background(), day("2024-01-01"), day("2024-01-03"), models.MetricCorrect)
	require.NoError(t, err)

	assert.Equal(t, []models.DailyStatPoint{
		{Date: "2024-01-01", User: "alice", Count: 0},
		{Date: "2024-01-02", User: "alice", Count: 3},
		{Date: "2024-01-03", User: "alice", Count: 0},
	}, points)
}

func TestAggregate_DenseGridAcrossSources(t *testing.T) {
	words := &fakeSource{counts: []models.DailyCount{
		{Date: "2024-02-01", User: "bob", Count: 2},
		{Date: "2024-02-05", User: "alice", Count: 1},
	}}
	problems := &fakeSource{counts: []models.DailyCount{
		{Date: "2024-02-01", User: "bob", Count: 4},
		{Date: "2024-02-03", User: "carol", Count: 7},
	}}
	agg := NewAggregator(zap.NewNop(), words, problems)

	start, end := day("2024-02-01"), day("2024-02-05")
	points, err := agg.Aggregate(context.Background(), start, end, models.MetricCorrect)
	require.NoError(t, err)

	users := []string{"alice", "bob", "carol"}
	days := int(end.Sub(start).Hours()/24) + 1
	require.Len(t, points, days*len(users))

	for i, p := range points {
		assert.GreaterOrEqual(t, p.Count, 0)
		assert.Equal(t, users[i%len(users)], p.User)
	}
	assert.Equal(t, models.DailyStatPoint{Date: "2024-02-01", User: "bob", Count: 6}, points[1])
	assert.Equal(t, models.DailyStatPoint{Date: "2024-02-03", User: "carol", Count: 7}, points[8])
	assert.Equal(t, "2024-02-05", points[len(points)-1].Date)
}

func TestAggregate_NoActivity(t *testing.T) {
	agg := NewAggregator(zap.NewNop(), &fakeSource{})

	points, err := agg.Aggregate(context.Background(), day("2024-01-01"), day("2024-01-31"), models.MetricIncorrect)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestAggregate_InvalidRange(t *testing.T) {
	agg := NewAggregator(zap.NewNop(), &fakeSource{})

	_, err := agg.Aggregate(context.Background(), day("2024-01-05"), day("2024-01-01"), models.MetricCorrect)
	assert.ErrorIs(t, err, &apperr.AppError{Code: apperr.CodeValidation})
}

func TestAggregate_SourceError(t *testing.T) {
	boom := errors.New("connection reset")
	agg := NewAggregator(zap.NewNop(), &fakeSource{}, &fakeSource{err: boom})

	_, err := agg.Aggregate(context.Background(), day("2024-01-01"), day("2024-01-02"), models.MetricCorrect)
	assert.ErrorIs(t, err, boom)
}

func TestDashboard_FromExposureTables(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(database.TypeSQLite, filepath.Join(t.TempDir(), "quiz.db"))
	require.NoError(t, err)
	defer db.Close()

	words, err := database.NewExposureRepository(db, models.KindVocabulary)
	require.NoError(t, err)
	problems, err := database.NewExposureRepository(db, models.KindMath)
	require.NoError(t, err)

	now := time.Now()
	_, err = words.Increment(ctx, "abate", "alice", true, "2024-01-02", now)
	require.NoError(t, err)
	_, err = words.Increment(ctx, "abase", "alice", false, "2024-01-02", now)
	require.NoError(t, err)
	_, err = problems.Increment(ctx, "p-1", "alice", true, "2024-01-02", now)
	require.NoError(t, err)
	_, err = problems.Increment(ctx, "p-2", "bob", true, "2024-01-03", now)
	require.NoError(t, err)

	dash, err := NewAggregator(zap.NewNop(), words, problems).Dashboard(ctx, day("2024-01-01"), day("2024-01-03"))
	require.NoError(t, err)

	assert.Equal(t, "2024-01-01", dash.Start)
	assert.Equal(t, "2024-01-03", dash.End)
	assert.Equal(t, []string{"alice", "bob"}, dash.Users)
	require.Len(t, dash.Correct, 6)
	require.Len(t, dash.Incorrect, 6)

	assert.Equal(t, models.DailyStatPoint{Date: "2024-01-02", User: "alice", Count: 2}, dash.Correct[2])
	assert.Equal(t, models.DailyStatPoint{Date: "2024-01-03", User: "bob", Count: 1}, dash.Correct[5])
	assert.Equal(t, models.DailyStatPoint{Date: "2024-01-02", User: "alice", Count: 1}, dash.Incorrect[2])
	assert.Equal(t, 0, dash.Incorrect[5].Count)
}

func TestDateRange(t *testing.T) {
	dates, err := DateRange(day("2024-02-27"), day("2024-03-01"))
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-02-27", "2024-02-28", "2024-02-29", "2024-03-01"}, dates)

	single, err := DateRange(day("2024-01-01").Add(20*time.Hour), day("2024-01-01"))
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-01"}, single)
}
