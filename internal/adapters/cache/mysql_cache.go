package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/core"
)

// MySQLCache is a MySQL implementation of the CacheRepository interface
type MySQLCache struct {
	db          *sql.DB
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
}

// NewMySQLCache creates a new MySQL cache
func NewMySQLCache(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*MySQLCache, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS classification_cache (
			text_hash VARCHAR(64) PRIMARY KEY,
			label VARCHAR(32),
			confidence DOUBLE,
			last_seen TIMESTAMP,
			expires_at TIMESTAMP,
			INDEX idx_expires_at (expires_at)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	cache := &MySQLCache{
		db:          db,
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	go cache.startCleanupTask()

	return cache, nil
}

// Get retrieves a cached result for a text hash
func (c *MySQLCache) Get(textHash string) (*core.ClassificationResult, bool) {
	var label string
	var confidence float64
	var lastSeen time.Time

	err := c.db.QueryRow(`
		SELECT label, confidence, last_seen
		FROM classification_cache
		WHERE text_hash = ? AND expires_at > NOW()
	`, textHash).Scan(&label, &confidence, &lastSeen)

	if err != nil {
		if err != sql.ErrNoRows {
			c.logger.Error("Failed to query cache", zap.Error(err), zap.String("text_hash", textHash))
		}
		return nil, false
	}

	return &core.ClassificationResult{
		Label:      label,
		Confidence: confidence,
		AnalyzedAt: lastSeen,
		ModelUsed:  "cache",
	}, true
}

// Set stores a result under a text hash
func (c *MySQLCache) Set(textHash string, result *core.ClassificationResult, ttl time.Duration) {
	expiresAt := time.Now().Add(ttl)

	_, err := c.db.Exec(`
		REPLACE INTO classification_cache (text_hash, label, confidence, last_seen, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`, textHash, result.Label, result.Confidence, result.AnalyzedAt, expiresAt)

	if err != nil {
		c.logger.Error("Failed to insert cache entry", zap.Error(err), zap.String("text_hash", textHash))
	}
}

// Delete removes a cache entry
func (c *MySQLCache) Delete(ctx context.Context, textHash string) error {
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
func (c *MySQLCache) Cleanup(ctx context.Context) error {
	result, err := c.db.ExecContext(ctx, `
		DELETE FROM classification_cache
		WHERE expires_at <= NOW()
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
func (c *MySQLCache) startCleanupTask() {
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
func (c *MySQLCache) Stop() {
	close(c.stopCh)
	if err := c.db.Close(); err != nil {
		c.logger.Error("Failed to close MySQL database", zap.Error(err))
	}
}
