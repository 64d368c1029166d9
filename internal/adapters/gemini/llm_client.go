package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/utils"
)

// GeminiClient is an implementation of the Classifier interface using Google Gemini
type GeminiClient struct {
	client        *genai.Client
	model         *genai.GenerativeModel
	modelName     string
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
	promptFormat  string
}

// classScores is the structured response requested from the model
type classScores struct {
	LegitimateScore float64 `json:"legitimate_score"`
	PhishingScore   float64 `json:"phishing_score"`
}

// NewGeminiClient creates a new Gemini classifier client
func NewGeminiClient(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) (*GeminiClient, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))

	return &GeminiClient{
		client:        client,
		model:         model,
		modelName:     modelName,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
		promptFormat: `You are a phishing detection system. Analyze the following email text and decide whether it is a phishing attempt or a legitimate message.
Respond with a JSON object containing:
- legitimate_score: number (higher means more likely legitimate)
- phishing_score: number (higher means more likely phishing)
The scores are logits for the two classes and need not sum to one.

Email text:
%s

Respond only with the JSON object and nothing else.`,
	}, nil
}

// Close closes the Gemini client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Classify labels the given text as phishing or legitimate
func (c *GeminiClient) Classify(ctx context.Context, text string) (*core.ClassificationResult, error) {
	processed := c.textProcessor.ProcessText(text, c.maxBodySize)
	prompt := fmt.Sprintf(c.promptFormat, processed)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	responseText := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])

	scores, err := parseScores(responseText)
	if err != nil {
		return nil, err
	}

	result := core.ResultFromScores(scores.LegitimateScore, scores.PhishingScore)
	result.ModelUsed = c.modelName

	c.logger.Debug("Classified text",
		zap.String("model", c.modelName),
		zap.String("label", result.Label),
		zap.Float64("confidence", result.Confidence))

	return result, nil
}

// parseScores parses the model's JSON response, salvaging the first JSON
// object when the model wraps it in prose.
func parseScores(responseText string) (classScores, error) {
	var scores classScores
	if err := json.Unmarshal([]byte(responseText), &scores); err == nil {
		return scores, nil
	}

	jsonStart := -1
	jsonEnd := -1
	for i := 0; i < len(responseText); i++ {
		if responseText[i] == '{' {
			jsonStart = i
			break
		}
	}
	for i := len(responseText) - 1; i >= 0; i-- {
		if responseText[i] == '}' {
			jsonEnd = i + 1
			break
		}
	}

	if jsonStart < 0 || jsonStart >= jsonEnd {
		return scores, fmt.Errorf("failed to extract JSON from model response")
	}
	if err := json.Unmarshal([]byte(responseText[jsonStart:jsonEnd]), &scores); err != nil {
		return scores, fmt.Errorf("failed to parse model response as JSON: %w", err)
	}
	return scores, nil
}
