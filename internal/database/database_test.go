package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/wordquiz/internal/apperr"
	"github.com/example/wordquiz/pkg/models"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Open(TypeSQLite, filepath.Join(t.TempDir(), "quiz.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newExposureRepo(t *testing.T, db *sqlx.DB, kind models.Kind) *ExposureRepository {
	t.Helper()
	repo, err := NewExposureRepository(db, kind)
	require.NoError(t, err)
	return repo
}

func TestOpen_UnsupportedType(t *testing.T) {
	_, err := Open("oracle", "whatever")
	assert.Error(t, err)
}

func TestExposureTable(t *testing.T) {
	table, err := ExposureTable(models.KindVocabulary)
	require.NoError(t, err)
	assert.Equal(t, "word_exposures", table)

	table, err = ExposureTable(models.KindMath)
	require.NoError(t, err)
	assert.Equal(t, "problem_exposures", table)

	_, err = ExposureTable("history")
	assert.Error(t, err)
}

func TestExposureRepository_Increment(t *testing.T) {
	ctx := context.Background()
	repo := newExposureRepo(t, newTestDB(t), models.KindVocabulary)
	now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

	rec, err := repo.Increment(ctx, "abate", "alice", true, "2024-01-02", now)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.CorrectCount)
	assert.Equal(t, 0, rec.IncorrectCount)
	assert.Equal(t, "2024-01-02", rec.ActivityDate)

	rec, err = repo.Increment(ctx, "abate", "alice", false, "2024-01-03", now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, rec.CorrectCount)
	assert.Equal(t, 1, rec.IncorrectCount)
	assert.Equal(t, "2024-01-03", rec.ActivityDate)
	assert.WithinDuration(t, now, rec.CreatedAt, time.Second)
	assert.WithinDuration(t, now.Add(24*time.Hour), rec.UpdatedAt, time.Second)

	missing, err := repo.Get(ctx, "abate", "bob")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestExposureRepository_ConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	repo := newExposureRepo(t, newTestDB(t), models.KindMath)
	now := time.Now()

	const n = 25
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Increment(ctx, "p-1", "alice", true, "2024-01-02", now)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	rec, err := repo.Get(ctx, "p-1", "alice")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, n, rec.CorrectCount)
}

func TestExposureRepository_Queries(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	words := newExposureRepo(t, db, models.KindVocabulary)
	problems := newExposureRepo(t, db, models.KindMath)
	now := time.Now()

	answers := []struct {
		item, user, date string
		correct          bool
	}{
		{"abase", "alice", "2024-01-01", true},
		{"abate", "alice", "2024-01-02", false},
		{"abbey", "alice", "2024-01-02", true},
		{"abbey", "alice", "2024-01-02", true},
		{"abase", "bob", "2024-01-03", false},
	}
	for _, a := range answers {
		_, err := words.Increment(ctx, a.item, a.user, a.correct, a.date, now)
		require.NoError(t, err)
	}

	count, err := words.CountByDate(ctx, "alice", "2024-01-02")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	learnt, err := words.LearntItems(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"abase", "abbey"}, learnt)

	counts, err := words.CorrectCounts(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"abase": 1, "abate": 0, "abbey": 2}, counts)

	users, err := words.ActiveUsers(ctx, "2024-01-02", "2024-01-03")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, users)

	correct, err := words.DailyCounts(ctx, "2024-01-01", "2024-01-03", models.MetricCorrect)
	require.NoError(t, err)
	assert.Equal(t, []models.DailyCount{
		{Date: "2024-01-01", User: "alice", Count: 1},
		{Date: "2024-01-02", User: "alice", Count: 1},
	}, correct)

	incorrect, err := words.DailyCounts(ctx, "2024-01-01", "2024-01-03", models.MetricIncorrect)
	require.NoError(t, err)
	assert.Equal(t, []models.DailyCount{
		{Date: "2024-01-02", User: "alice", Count: 1},
		{Date: "2024-01-03", User: "bob", Count: 1},
	}, incorrect)

	_, err = words.DailyCounts(ctx, "2024-01-01", "2024-01-03", "partial")
	assert.Error(t, err)

	// tables are independent per kind
	none, err := problems.LearntItems(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCacheRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewCacheRepository(newTestDB(t))
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.SaveAll(ctx, nil))
	require.NoError(t, repo.SaveAll(ctx, []models.CacheRecord{
		{Namespace: "words", Key: "abate", Payload: `{"word":"abate"}`, CachedAt: at},
		{Namespace: "words", Key: "abase", Payload: `{"word":"abase"}`, CachedAt: at},
		{Namespace: "math", Key: "math_algebra_linear_easy", Payload: `{}`, CachedAt: at},
	}))

	// upsert replaces payload
	require.NoError(t, repo.SaveAll(ctx, []models.CacheRecord{
		{Namespace: "words", Key: "abate", Payload: `{"word":"abate","definition":"lessen"}`, CachedAt: at.Add(time.Hour)},
	}))

	records, err := repo.LoadAll(ctx, "words")
	require.NoError(t, err)
	require.Len(t, records, 2)

	byKey := map[string]models.CacheRecord{}
	for _, r := range records {
		byKey[r.Key] = r
	}
	assert.Equal(t, `{"word":"abate","definition":"lessen"}`, byKey["abate"].Payload)
	assert.WithinDuration(t, at.Add(time.Hour), byKey["abate"].CachedAt, time.Second)

	require.NoError(t, repo.Delete(ctx, "words", "abate"))
	records, err = repo.LoadAll(ctx, "words")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "abase", records[0].Key)

	math, err := repo.LoadAll(ctx, "math")
	require.NoError(t, err)
	assert.Len(t, math, 1)
}

func TestIsContention(t *testing.T) {
	assert.True(t, isContention(sqlite3.Error{Code: sqlite3.ErrBusy}))
	assert.True(t, isContention(sqlite3.Error{Code: sqlite3.ErrLocked}))
	assert.False(t, isContention(sqlite3.Error{Code: sqlite3.ErrConstraint}))
	assert.True(t, isContention(&pq.Error{Code: "40001"}))
	assert.True(t, isContention(&pq.Error{Code: "40P01"}))
	assert.False(t, isContention(&pq.Error{Code: "23505"}))
	assert.False(t, isContention(errors.New("boom")))
}

func TestWithRetry(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := withRetry(ctx, func() error {
		calls++
		if calls < 3 {
			return sqlite3.Error{Code: sqlite3.ErrBusy}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = withRetry(ctx, func() error {
		calls++
		return sqlite3.Error{Code: sqlite3.ErrLocked}
	})
	assert.ErrorIs(t, err, &apperr.AppError{Code: apperr.CodeConflict})
	assert.Equal(t, maxWriteAttempts, calls)

	calls = 0
	plain := errors.New("syntax error")
	err = withRetry(ctx, func() error {
		calls++
		return plain
	})
	assert.ErrorIs(t, err, plain)
	assert.Equal(t, 1, calls)
}
