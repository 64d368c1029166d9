package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/utils"
)

// OpenAIClient is an implementation of the Classifier interface using OpenAI
type OpenAIClient struct {
	client        *openai.Client
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
	promptFormat  string
}

// classScores is the structured response requested from the model. The two
// scores are treated as logits for the legitimate and phishing classes.
type classScores struct {
	LegitimateScore float64 `json:"legitimate_score"`
	PhishingScore   float64 `json:"phishing_score"`
}

// NewOpenAIClient creates a new OpenAI classifier client
func NewOpenAIClient(
	client *openai.Client,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *OpenAIClient {
	return &OpenAIClient{
		client:        client,
		modelName:     modelName,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
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
	}
}

// Classify labels the given text as phishing or legitimate
func (c *OpenAIClient) Classify(ctx context.Context, text string) (*core.ClassificationResult, error) {
	processed := c.textProcessor.ProcessText(text, c.maxBodySize)
	prompt := fmt.Sprintf(c.promptFormat, processed)

	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a phishing detection system. Respond only with JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
	}
	req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: "json"}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from OpenAI")
	}

	scores, err := parseScores(resp.Choices[0].Message.Content)
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
