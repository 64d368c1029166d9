package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/utils"
)

// BedrockClient is an implementation of the Classifier interface using Amazon Bedrock
type BedrockClient struct {
	client        *bedrockruntime.Client
	modelID       string
	maxTokens     int
	temperature   float32
	topP          float32
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

// NewBedrockClient creates a new Bedrock classifier client
func NewBedrockClient(
	client *bedrockruntime.Client,
	modelID string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *BedrockClient {
	return &BedrockClient{
		client:        client,
		modelID:       modelID,
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
func (c *BedrockClient) Classify(ctx context.Context, text string) (*core.ClassificationResult, error) {
	processed := c.textProcessor.ProcessText(text, c.maxBodySize)
	prompt := fmt.Sprintf(c.promptFormat, processed)

	var payload []byte
	var err error

	if c.isAnthropicModel() {
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":               prompt,
			"max_tokens_to_sample": c.maxTokens,
			"temperature":          c.temperature,
			"top_p":                c.topP,
		})
	} else if c.isAmazonTitanModel() {
		payload, err = json.Marshal(map[string]interface{}{
			"inputText": prompt,
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": c.maxTokens,
				"temperature":   c.temperature,
				"topP":          c.topP,
			},
		})
	} else {
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":      prompt,
			"max_tokens":  c.maxTokens,
			"temperature": c.temperature,
			"top_p":       c.topP,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	resp, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &c.modelID,
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke Bedrock model: %w", err)
	}

	responseText, err := c.responseText(resp.Body)
	if err != nil {
		return nil, err
	}

	scores, err := parseScores(responseText)
	if err != nil {
		return nil, err
	}

	result := core.ResultFromScores(scores.LegitimateScore, scores.PhishingScore)
	result.ModelUsed = c.modelID

	c.logger.Debug("Classified text",
		zap.String("model", c.modelID),
		zap.String("label", result.Label),
		zap.Float64("confidence", result.Confidence))

	return result, nil
}

// responseText extracts the generated text from the model-specific response body
func (c *BedrockClient) responseText(body []byte) (string, error) {
	if c.isAnthropicModel() {
		var claudeResp struct {
			Completion string `json:"completion"`
		}
		if err := json.Unmarshal(body, &claudeResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Claude response: %w", err)
		}
		return claudeResp.Completion, nil
	}

	if c.isAmazonTitanModel() {
		var titanResp struct {
			Results []struct {
				OutputText string `json:"outputText"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &titanResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Titan response: %w", err)
		}
		if len(titanResp.Results) == 0 {
			return "", fmt.Errorf("empty response from Titan model")
		}
		return titanResp.Results[0].OutputText, nil
	}

	var genericResp struct {
		Output   string `json:"output"`
		Text     string `json:"text"`
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &genericResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal generic response: %w", err)
	}
	switch {
	case genericResp.Output != "":
		return genericResp.Output, nil
	case genericResp.Text != "":
		return genericResp.Text, nil
	case genericResp.Response != "":
		return genericResp.Response, nil
	}
	return string(body), nil
}

// isAnthropicModel checks if the model is an Anthropic Claude model
func (c *BedrockClient) isAnthropicModel() bool {
	return strings.HasPrefix(c.modelID, "anthropic.claude")
}

// isAmazonTitanModel checks if the model is an Amazon Titan model
func (c *BedrockClient) isAmazonTitanModel() bool {
	return strings.HasPrefix(c.modelID, "amazon.titan")
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
