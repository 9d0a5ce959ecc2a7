package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/wordquiz/pkg/models"
)

// CacheRepository persists content cache entries so they survive restarts
type CacheRepository struct {
	db *sqlx.DB
}

// NewCacheRepository creates a new repository instance
func NewCacheRepository(db *sqlx.DB) *CacheRepository {
	return &CacheRepository{db: db}
}

// LoadAll returns every stored entry of a namespace
func (r *CacheRepository) LoadAll(ctx context.Context, namespace string) ([]models.CacheRecord, error) {
	var records []models.CacheRecord
	err := r.db.SelectContext(ctx, &records, `
		SELECT namespace, cache_key, payload, cached_at
		FROM content_cache WHERE namespace = $1
	`, namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to load cache %s: %w", namespace, err)
	}
	return records, nil
}

// SaveAll upserts records in a single transaction
func (r *CacheRepository) SaveAll(ctx context.Context, records []models.CacheRecord) error {
	if len(records) == 0 {
		return nil
	}

	return withRetry(ctx, func() error {
		tx, err := r.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		for _, rec := range records {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO content_cache (namespace, cache_key, payload, cached_at)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (namespace, cache_key) DO UPDATE SET
					payload = excluded.payload,
					cached_at = excluded.cached_at
			`, rec.Namespace, rec.Key, rec.Payload, rec.CachedAt)
			if err != nil {
				return fmt.Errorf("failed to save cache entry %s/%s: %w", rec.Namespace, rec.Key, err)
			}
		}
		return tx.Commit()
	})
}

// Delete removes the given keys from a namespace
func (r *CacheRepository) Delete(ctx context.Context, namespace string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM content_cache WHERE namespace = ? AND cache_key IN (?)`, namespace, keys)
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}
	return withRetry(ctx, func() error {
		if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
			return fmt.Errorf("failed to delete cache entries: %w", err)
		}
		return nil
	})
}
