package core

import (
	"context"
	"time"
)

// Classifier defines the interface for phishing classification backends
type Classifier interface {
	// Classify labels the given text as phishing or legitimate
	Classify(ctx context.Context, text string) (*ClassificationResult, error)
}

// MailClient defines the interface for the remote mail API
type MailClient interface {
	// ListUnread returns up to maxResults ids of messages labeled unread
	ListUnread(ctx context.Context, maxResults int64) ([]string, error)

	// GetMessage fetches a full message by id
	GetMessage(ctx context.Context, id string) (*Message, error)

	// MarkRead removes the unread label; safe on already-read messages
	MarkRead(ctx context.Context, id string) error
}

// SenderAnalyzer defines the interface for rule-based sender analysis
type SenderAnalyzer interface {
	// Analyze inspects message headers and flags suspicious sender patterns
	Analyze(headers []Header) *SenderAnalysis
}

// CacheRepository defines the interface for caching classification results
type CacheRepository interface {
	// Get retrieves a cached result for a text hash
	Get(textHash string) (*ClassificationResult, bool)

	// Set stores a result under a text hash
	Set(textHash string, result *ClassificationResult, ttl time.Duration)

	// Delete removes a cache entry
	Delete(ctx context.Context, textHash string) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}
