package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/core"
)

// SQLiteCache is a SQLite implementation of the CacheRepository interface
type SQLiteCache struct {
	db          *sql.DB
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
}

// NewSQLiteCache creates a new SQLite cache
func NewSQLiteCache(dbPath string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS classification_cache (
			text_hash TEXT PRIMARY KEY,
			label TEXT,
			confidence REAL,
			last_seen TIMESTAMP,
			expires_at TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	// Index on expires_at for faster cleanup
	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_expires_at ON classification_cache(expires_at)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	cache := &SQLiteCache{
		db:          db,
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	go cache.startCleanupTask()

	return cache, nil
}

// Get retrieves a cached result for a text hash
func (c *SQLiteCache) Get(textHash string) (*core.ClassificationResult, bool) {
	var label string
	var confidence float64
	var lastSeen string

	err := c.db.QueryRow(`
		SELECT label, confidence, last_seen
		FROM classification_cache
		WHERE text_hash = ? AND expires_at > datetime('now')
	`, textHash).Scan(&label, &confidence, &lastSeen)

	if err != nil {
		if err != sql.ErrNoRows {
			c.logger.Error("Failed to query cache", zap.Error(err), zap.String("text_hash", textHash))
		}
		return nil, false
	}

	analyzedAt, err := time.Parse(time.RFC3339, lastSeen)
	if err != nil {
		c.logger.Error("Failed to parse last_seen timestamp", zap.Error(err))
		return nil, false
	}

	return &core.ClassificationResult{
		Label:      label,
		Confidence: confidence,
		AnalyzedAt: analyzedAt,
		ModelUsed:  "cache",
	}, true
}

// Set stores a result under a text hash
func (c *SQLiteCache) Set(textHash string, result *core.ClassificationResult, ttl time.Duration) {
	expiresAt := time.Now().Add(ttl)

	_, err := c.db.Exec(`
		INSERT OR REPLACE INTO classification_cache (text_hash, label, confidence, last_seen, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`, textHash, result.Label, result.Confidence, result.AnalyzedAt.Format(time.RFC3339), expiresAt.Format(time.RFC3339))

	if err != nil {
		c.logger.Error("Failed to insert cache entry", zap.Error(err), zap.String("text_hash", textHash))
	}
}

// Delete removes a cache entry
func (c *SQLiteCache) Delete(ctx context.Context, textHash string) error {
	_, err := c.db.ExecContext(ctx, `
		DELETE FROM classification_cache
		WHERE text_hash = ?
	`, textHash)

	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}

	return nil
}

// Cleanup removes expired entries
func (c *SQLiteCache) Cleanup(ctx context.Context) error {
	result, err := c.db.ExecContext(ctx, `
		DELETE FROM classification_cache
		WHERE expires_at <= datetime('now')
	`)

	if err != nil {
		return fmt.Errorf("failed to clean up expired entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		c.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		c.logger.Debug("Cleaned up expired cache entries", zap.Int64("expired_count", rowsAffected))
	}

	return nil
}

// startCleanupTask starts a background task to clean up expired entries
func (c *SQLiteCache) startCleanupTask() {
	ticker := time.NewTicker(c.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.Cleanup(context.Background()); err != nil {
				c.logger.Error("Failed to clean up cache", zap.Error(err))
			}
		case <-c.stopCh:
			return
		}
	}
}

// Stop stops the background cleanup task and closes the database connection
func (c *SQLiteCache) Stop() {
	close(c.stopCh)
	if err := c.db.Close(); err != nil {
		c.logger.Error("Failed to close SQLite database", zap.Error(err))
	}
}
