package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"
)

// DetectorService is the core service for phishing detection
type DetectorService struct {
	classifier   Classifier
	mail         MailClient
	analyzer     SenderAnalyzer
	cache        CacheRepository
	logger       *zap.Logger
	cacheEnabled bool
	cacheTTL     time.Duration
	markAsRead   bool
}

// NewDetectorService creates a new phishing detector service
func NewDetectorService(
	classifier Classifier,
	mail MailClient,
	analyzer SenderAnalyzer,
	cache CacheRepository,
	logger *zap.Logger,
	cacheEnabled bool,
	cacheTTL time.Duration,
	markAsRead bool,
) *DetectorService {
	return &DetectorService{
		classifier:   classifier,
		mail:         mail,
		analyzer:     analyzer,
		cache:        cache,
		logger:       logger,
		cacheEnabled: cacheEnabled,
		cacheTTL:     cacheTTL,
		markAsRead:   markAsRead,
	}
}

// ClassifyText classifies a piece of email text. Results are cached by text
// hash when caching is enabled. Empty text is not rejected here; it still
// yields some prediction from the backend.
func (s *DetectorService) ClassifyText(ctx context.Context, text string) (*ClassificationResult, error) {
	key := textHash(text)

	if s.cacheEnabled {
		if result, ok := s.cache.Get(key); ok {
			s.logger.Debug("Cache hit for text", zap.String("text_hash", key))
			return result, nil
		}
	}

	result, err := s.classifier.Classify(ctx, text)
	if err != nil {
		return nil, err
	}

	if s.cacheEnabled {
		s.cache.Set(key, result, s.cacheTTL)
	}

	return result, nil
}

// FetchLatestUnread pulls the single most recent unread message, analyzes its
// sender and classifies its body (falling back to the snippet when no
// plain-text body exists).
func (s *DetectorService) FetchLatestUnread(ctx context.Context) (*FetchResult, error) {
	ids, err := s.mail.ListUnread(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, NewNotFoundError("No unread emails found")
	}

	msg, err := s.mail.GetMessage(ctx, ids[0])
	if err != nil {
		return nil, err
	}

	text := msg.Body
	if text == "" {
		text = msg.Snippet
	}

	sender := s.analyzer.Analyze(msg.Headers)

	prediction, err := s.ClassifyText(ctx, text)
	if err != nil {
		return nil, err
	}

	if s.markAsRead {
		if err := s.mail.MarkRead(ctx, msg.ID); err != nil {
			s.logger.Warn("Failed to mark message as read",
				zap.String("message_id", msg.ID),
				zap.Error(err))
		}
	}

	return &FetchResult{
		Snippet:    msg.Snippet,
		Prediction: prediction,
		Sender:     sender,
	}, nil
}

// AnalyzeEmail classifies a parsed email message and runs sender analysis on
// its headers. Used by the SMTP filter and CLI surfaces.
func (s *DetectorService) AnalyzeEmail(ctx context.Context, email *Email) (*ClassificationResult, *SenderAnalysis, error) {
	headers := make([]Header, 0, len(email.Headers))
	for name, values := range email.Headers {
		for _, value := range values {
			headers = append(headers, Header{Name: name, Value: value})
		}
	}
	if email.From != "" && len(headers) == 0 {
		headers = append(headers, Header{Name: "From", Value: email.From})
	}

	sender := s.analyzer.Analyze(headers)

	result, err := s.ClassifyText(ctx, email.Body)
	if err != nil {
		return nil, nil, err
	}

	return result, sender, nil
}

func textHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
