package models

import "time"

// Kind distinguishes vocabulary items from math problems
type Kind string

const (
	KindVocabulary Kind = "vocabulary"
	KindMath       Kind = "math"
)

// ExposureRecord tracks how often a user answered an item correctly and incorrectly.
// There is at most one record per (item, user) pair.
type ExposureRecord struct {
	ItemID         string    `json:"item_id" db:"item_id"`
	UserID         string    `json:"user_id" db:"user_id"`
	CorrectCount   int       `json:"correct_count" db:"correct_count"`
	IncorrectCount int       `json:"incorrect_count" db:"incorrect_count"`
	ActivityDate   string    `json:"activity_date" db:"activity_date"` // local YYYY-MM-DD of the last update
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// CacheRecord is a persisted content cache entry; Payload holds the JSON encoded value
type CacheRecord struct {
	Namespace string    `db:"namespace"`
	Key       string    `db:"cache_key"`
	Payload   string    `db:"payload"`
	CachedAt  time.Time `db:"cached_at"`
}
