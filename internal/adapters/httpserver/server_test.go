package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/core"
)

type stubClassifier struct {
	result *core.ClassificationResult
	err    error
}

func (c *stubClassifier) Classify(ctx context.Context, text string) (*core.ClassificationResult, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.result, nil
}

type stubMailClient struct {
	ids     []string
	listErr error
	message *core.Message
	getErr  error
}

func (m *stubMailClient) ListUnread(ctx context.Context, maxResults int64) ([]string, error) {
	return m.ids, m.listErr
}

func (m *stubMailClient) GetMessage(ctx context.Context, id string) (*core.Message, error) {
	return m.message, m.getErr
}

func (m *stubMailClient) MarkRead(ctx context.Context, id string) error {
	return nil
}

type stubAnalyzer struct {
	analysis *core.SenderAnalysis
}

func (a *stubAnalyzer) Analyze(headers []core.Header) *core.SenderAnalysis {
	return a.analysis
}

func newTestServer(classifier core.Classifier, mail core.MailClient, analyzer core.SenderAnalyzer) *Server {
	service := core.NewDetectorService(classifier, mail, analyzer, nil, zap.NewNop(), false, 0, false)
	return NewServer(service, zap.NewNop(), "127.0.0.1:0", 80)
}

func TestIndex(t *testing.T) {
	srv := newTestServer(&stubClassifier{}, &stubMailClient{}, &stubAnalyzer{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Running")
}

func TestPredict(t *testing.T) {
	classifier := &stubClassifier{
		result: &core.ClassificationResult{Label: core.LabelPhishing, Confidence: 97.12},
	}
	srv := newTestServer(classifier, &stubMailClient{}, &stubAnalyzer{})

	body := strings.NewReader(`{"text": "Urgent: verify your account now"}`)
	req := httptest.NewRequest(http.MethodPost, "/predict", body)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Phishing", resp["prediction"])
	assert.Equal(t, 97.12, resp["confidence"])
}

func TestPredictMissingText(t *testing.T) {
	srv := newTestServer(&stubClassifier{}, &stubMailClient{}, &stubAnalyzer{})

	tests := []struct {
		name string
		body string
	}{
		{"empty object", `{}`},
		{"wrong field", `{"message": "hello"}`},
		{"invalid json", `not json`},
		{"empty body", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			require.Equal(t, http.StatusBadRequest, rec.Code)

			var resp map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "No text provided", resp["error"])
		})
	}
}

func TestPredictEmptyTextStillClassified(t *testing.T) {
	classifier := &stubClassifier{
		result: &core.ClassificationResult{Label: core.LabelLegitimate, Confidence: 50.0},
	}
	srv := newTestServer(classifier, &stubMailClient{}, &stubAnalyzer{})

	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(`{"text": ""}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPredictClassifierFailure(t *testing.T) {
	classifier := &stubClassifier{
		err: core.NewRemoteError("Failed to classify email", assert.AnError),
	}
	srv := newTestServer(classifier, &stubMailClient{}, &stubAnalyzer{})

	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(`{"text": "hello"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Failed to classify email", resp["error"])
	assert.Equal(t, "remote", resp["kind"])
}

func TestFetchGmailNoUnread(t *testing.T) {
	srv := newTestServer(&stubClassifier{}, &stubMailClient{ids: nil}, &stubAnalyzer{})

	req := httptest.NewRequest(http.MethodGet, "/fetch_gmail", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "No unread emails found", resp["error"])
}

func TestFetchGmail(t *testing.T) {
	classifier := &stubClassifier{
		result: &core.ClassificationResult{Label: core.LabelPhishing, Confidence: 88.5},
	}
	mail := &stubMailClient{
		ids: []string{"msg-1"},
		message: &core.Message{
			ID:      "msg-1",
			Snippet: "You&#39;ve won a prize",
			Headers: []core.Header{{Name: "From", Value: "Prize Desk <win@paypa1.ru>"}},
			Body:    "Claim your prize by confirming your password.",
		},
	}
	analyzer := &stubAnalyzer{
		analysis: &core.SenderAnalysis{
			Sender: "Prize Desk <win@paypa1.ru>",
			Domain: "paypa1.ru",
			Flags:  []string{"Possible typosquatting", "Suspicious TLD"},
		},
	}
	srv := newTestServer(classifier, mail, analyzer)

	req := httptest.NewRequest(http.MethodGet, "/fetch_gmail", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		EmailSnippet   string `json:"email_snippet"`
		BodyPrediction struct {
			Prediction string  `json:"prediction"`
			Confidence float64 `json:"confidence"`
		} `json:"body_prediction"`
		SenderInfo struct {
			Sender string   `json:"sender"`
			Domain string   `json:"domain"`
			Flags  []string `json:"flags"`
		} `json:"sender_info"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	// HTML entities in the snippet are unescaped before the preview cut
	assert.Equal(t, "You've won a prize...", resp.EmailSnippet)
	assert.Equal(t, "Phishing", resp.BodyPrediction.Prediction)
	assert.Equal(t, 88.5, resp.BodyPrediction.Confidence)
	assert.Equal(t, "paypa1.ru", resp.SenderInfo.Domain)
	assert.Equal(t, []string{"Possible typosquatting", "Suspicious TLD"}, resp.SenderInfo.Flags)
}

func TestFetchGmailAuthFailure(t *testing.T) {
	mail := &stubMailClient{
		listErr: core.NewAuthError("Unable to load Gmail credentials", assert.AnError),
	}
	srv := newTestServer(&stubClassifier{}, mail, &stubAnalyzer{})

	req := httptest.NewRequest(http.MethodGet, "/fetch_gmail", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "auth", resp["kind"])
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(&stubClassifier{}, &stubMailClient{}, &stubAnalyzer{})

	req := httptest.NewRequest(http.MethodGet, "/predict", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
