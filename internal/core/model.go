package core

import (
	"math"
	"time"
)

// Labels emitted by the classifier.
const (
	LabelLegitimate = "Legitimate"
	LabelPhishing   = "Phishing"
)

// Email represents an email message
type Email struct {
	From    string
	To      []string
	Subject string
	Body    string
	Headers map[string][]string
}

// Header is a single message header as returned by the mail API.
type Header struct {
	Name  string
	Value string
}

// Message is a fetched mail message with its extracted plain-text body.
// Body is empty when the message carries no text/plain part.
type Message struct {
	ID      string
	Snippet string
	Headers []Header
	Body    string
}

// ClassificationResult represents the outcome of a single classification.
// Confidence is the probability of the chosen label, as a percentage.
type ClassificationResult struct {
	Label      string    `json:"prediction"`
	Confidence float64   `json:"confidence"`
	AnalyzedAt time.Time `json:"-"`
	ModelUsed  string    `json:"-"`
}

// SenderAnalysis is the result of rule-based sender/domain analysis.
// Flags is never empty; it holds the single sentinel "None" when no rule fired.
type SenderAnalysis struct {
	Sender string   `json:"sender"`
	Domain string   `json:"domain"`
	Flags  []string `json:"flags"`
}

// FetchResult bundles everything derived from one fetched message.
type FetchResult struct {
	Snippet    string
	Prediction *ClassificationResult
	Sender     *SenderAnalysis
}

// CacheEntry is a persisted classification keyed by the hash of the
// classified text.
type CacheEntry struct {
	TextHash   string
	Label      string
	Confidence float64
	LastSeen   time.Time
	ExpiresAt  time.Time
}

// ResultFromScores builds a ClassificationResult from the two raw class
// scores reported by a model backend. A softmax over the pair yields the
// probability of each class; the label is the argmax and the confidence is
// that class's probability expressed as a percentage rounded to two decimals.
func ResultFromScores(legitimate, phishing float64) *ClassificationResult {
	// Numerically stable softmax over the score pair.
	m := math.Max(legitimate, phishing)
	el := math.Exp(legitimate - m)
	ep := math.Exp(phishing - m)
	sum := el + ep

	label := LabelLegitimate
	p := el / sum
	if ep > el {
		label = LabelPhishing
		p = ep / sum
	}

	return &ClassificationResult{
		Label:      label,
		Confidence: math.Round(p*10000) / 100,
		AnalyzedAt: time.Now(),
	}
}
