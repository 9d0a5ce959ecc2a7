package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/wordquiz/pkg/models"
)

const (
	wordExposureTable    = "word_exposures"
	problemExposureTable = "problem_exposures"
)

// ExposureTable returns the table that holds exposure records for kind
func ExposureTable(kind models.Kind) (string, error) {
	switch kind {
	case models.KindVocabulary:
		return wordExposureTable, nil
	case models.KindMath:
		return problemExposureTable, nil
	default:
		return "", fmt.Errorf("unknown item kind %q", kind)
	}
}

// ExposureRepository handles database operations for per user, per item answer counters
type ExposureRepository struct {
	db    *sqlx.DB
	kind  models.Kind
	table string
}

// NewExposureRepository creates a new repository instance for one item kind
func NewExposureRepository(db *sqlx.DB, kind models.Kind) (*ExposureRepository, error) {
	table, err := ExposureTable(kind)
	if err != nil {
		return nil, err
	}
	return &ExposureRepository{db: db, kind: kind, table: table}, nil
}

// Kind returns the item kind stored by this repository
func (r *ExposureRepository) Kind() models.Kind {
	return r.kind
}

// Increment adds one to the correct or incorrect counter of (itemID, userID),
// creating the record on first use, and returns the updated record.
// activityDate is the caller's local date. The increment itself is a single statement.
func (r *ExposureRepository) Increment(ctx context.Context, itemID, userID string, isCorrect bool, activityDate string, now time.Time) (*models.ExposureRecord, error) {
	correct, incorrect := 0, 0
	if isCorrect {
		correct = 1
	} else {
		incorrect = 1
	}

	query := fmt.Sprintf(`
		INSERT INTO %[1]s (item_id, user_id, correct_count, incorrect_count, activity_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (item_id, user_id) DO UPDATE SET
			correct_count = %[1]s.correct_count + excluded.correct_count,
			incorrect_count = %[1]s.incorrect_count + excluded.incorrect_count,
			activity_date = excluded.activity_date,
			updated_at = excluded.updated_at
	`, r.table)

	err := withRetry(ctx, func() error {
		_, err := r.db.ExecContext(ctx, query, itemID, userID, correct, incorrect, activityDate, now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record answer in %s: %w", r.table, err)
	}
	return r.Get(ctx, itemID, userID)
}

// Get returns the record for (itemID, userID) or nil when the user never answered it
func (r *ExposureRepository) Get(ctx context.Context, itemID, userID string) (*models.ExposureRecord, error) {
	var records []models.ExposureRecord
	query := fmt.Sprintf(`
		SELECT item_id, user_id, correct_count, incorrect_count, activity_date, created_at, updated_at
		FROM %s WHERE item_id = $1 AND user_id = $2
	`, r.table)
	if err := r.db.SelectContext(ctx, &records, query, itemID, userID); err != nil {
		return nil, fmt.Errorf("failed to get exposure: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// CountByDate returns how many items the user answered on the given date
func (r *ExposureRepository) CountByDate(ctx context.Context, userID, activityDate string) (int, error) {
	var count int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE user_id = $1 AND activity_date = $2`, r.table)
	if err := r.db.GetContext(ctx, &count, query, userID, activityDate); err != nil {
		return 0, fmt.Errorf("failed to count exposures: %w", err)
	}
	return count, nil
}

// LearntItems returns the items the user answered correctly at least once
func (r *ExposureRepository) LearntItems(ctx context.Context, userID string) ([]string, error) {
	var items []string
	query := fmt.Sprintf(`SELECT item_id FROM %s WHERE user_id = $1 AND correct_count > 0 ORDER BY item_id`, r.table)
	if err := r.db.SelectContext(ctx, &items, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get learnt items: %w", err)
	}
	return items, nil
}

// CorrectCounts maps item IDs to the user's correct-answer count
func (r *ExposureRepository) CorrectCounts(ctx context.Context, userID string) (map[string]int, error) {
	var rows []struct {
		ItemID string `db:"item_id"`
		Count  int    `db:"correct_count"`
	}
	query := fmt.Sprintf(`SELECT item_id, correct_count FROM %s WHERE user_id = $1`, r.table)
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get exposures: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.ItemID] = row.Count
	}
	return counts, nil
}

// ActiveUsers returns the distinct users with any record updated within [from, to]
func (r *ExposureRepository) ActiveUsers(ctx context.Context, from, to string) ([]string, error) {
	var users []string
	query := fmt.Sprintf(`
		SELECT DISTINCT user_id FROM %s
		WHERE activity_date >= $1 AND activity_date <= $2
		ORDER BY user_id
	`, r.table)
	if err := r.db.SelectContext(ctx, &users, query, from, to); err != nil {
		return nil, fmt.Errorf("failed to get active users: %w", err)
	}
	return users, nil
}

// DailyCounts returns, per date and user within [from, to], the number of
// records whose metric counter is positive
func (r *ExposureRepository) DailyCounts(ctx context.Context, from, to string, metric models.Metric) ([]models.DailyCount, error) {
	var column string
	switch metric {
	case models.MetricCorrect:
		column = "correct_count"
	case models.MetricIncorrect:
		column = "incorrect_count"
	default:
		return nil, fmt.Errorf("unknown metric %q", metric)
	}

	query := fmt.Sprintf(`
		SELECT activity_date, user_id, COUNT(*) AS total
		FROM %s
		WHERE activity_date >= $1 AND activity_date <= $2 AND %s > 0
		GROUP BY activity_date, user_id
		ORDER BY activity_date, user_id
	`, r.table, column)

	var counts []models.DailyCount
	if err := r.db.SelectContext(ctx, &counts, query, from, to); err != nil {
		return nil, fmt.Errorf("failed to get daily counts: %w", err)
	}
	return counts, nil
}
