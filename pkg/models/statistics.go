package models

// DateLayout is the calendar date format shared by storage and dashboards
const DateLayout = "2006-01-02"

// Metric selects which counter a dashboard series is built from
type Metric string

const (
	MetricCorrect   Metric = "correct"
	MetricIncorrect Metric = "incorrect"
)

// DailyStatPoint is one (date, user) cell of a dashboard time series
type DailyStatPoint struct {
	Date  string `json:"date"`
	User  string `json:"user"`
	Count int    `json:"count"`
}

// DailyCount is a sparse per-day, per-user rollup row
type DailyCount struct {
	Date  string `db:"activity_date"`
	User  string `db:"user_id"`
	Count int    `db:"total"`
}
