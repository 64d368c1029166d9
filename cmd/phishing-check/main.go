package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net/mail"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/config"
	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/factory"
	"github.com/mikey/phishing-detector/internal/heuristics"
	"github.com/mikey/phishing-detector/internal/logging"
)

var (
	// LLM provider flags
	provider    = flag.String("provider", "openai", "LLM provider (bedrock, gemini, openai)")
	maxTokens   = flag.Int("max-tokens", 256, "Maximum tokens for LLM response")
	temperature = flag.Float64("temperature", 0.0, "Temperature for LLM generation")
	topP        = flag.Float64("top-p", 0.9, "Top-p for LLM generation")
	maxBodySize = flag.Int("max-body-size", 4096, "Maximum email body size to send to LLM")

	// Bedrock flags
	bedrockRegion  = flag.String("bedrock-region", "us-east-1", "AWS region for Bedrock")
	bedrockModelID = flag.String("bedrock-model", "anthropic.claude-v2", "Bedrock model ID")

	// Gemini flags
	geminiAPIKey    = flag.String("gemini-api-key", "", "API key for Google Gemini")
	geminiModelName = flag.String("gemini-model", "gemini-pro", "Gemini model name")

	// OpenAI flags
	openaiAPIKey    = flag.String("openai-api-key", "", "API key for OpenAI")
	openaiModelName = flag.String("openai-model", "gpt-4", "OpenAI model name")

	// Sender analysis flags
	whitelistDomains = flag.String("whitelist", "", "Comma-separated list of whitelisted sender domains")

	// Input flags
	inputFile  = flag.String("file", "", "Input email file (use stdin if not specified)")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog    = flag.Bool("json-log", false, "Output logs in JSON format")
	configFile = flag.String("config", "", "Path to config file (overrides command line flags)")
)

func main() {
	flag.Parse()

	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	var cfg *config.Config
	if *configFile != "" {
		cfg, err = config.New()
		if err != nil {
			logger.Fatal("Failed to load configuration", zap.Error(err))
		}
		logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
	} else {
		cfg = createConfigFromFlags()
	}

	textProcessor := factory.NewTextProcessorFactory(logger).CreateTextProcessor()
	classifier, err := factory.NewLLMFactory(cfg, logger, textProcessor).CreateClassifier()
	if err != nil {
		logger.Fatal("Failed to create classifier", zap.Error(err))
	}

	h := cfg.GetHeuristics()
	analyzer := heuristics.NewAnalyzer(
		h.TyposquatPatterns,
		h.SuspiciousTLDs,
		h.MaxSubdomainDots,
		h.WhitelistedDomains,
		logger,
	)

	// No mail client and no cache for a one-shot run
	service := core.NewDetectorService(classifier, nil, analyzer, nil, logger, false, 0, false)

	var emailReader io.Reader
	if *inputFile != "" {
		file, err := os.Open(*inputFile)
		if err != nil {
			logger.Fatal("Failed to open input file", zap.Error(err), zap.String("file", *inputFile))
		}
		defer file.Close()
		emailReader = file
	} else {
		emailReader = os.Stdin
	}

	msg, err := mail.ReadMessage(bufio.NewReader(emailReader))
	if err != nil {
		logger.Fatal("Failed to parse email", zap.Error(err))
	}

	from := msg.Header.Get("From")
	to := msg.Header.Get("To")
	subject := msg.Header.Get("Subject")

	bodyBytes, err := io.ReadAll(msg.Body)
	if err != nil {
		logger.Fatal("Failed to read email body", zap.Error(err))
	}

	email := &core.Email{
		From:    from,
		To:      strings.Split(to, ","),
		Subject: subject,
		Body:    string(bodyBytes),
		Headers: make(map[string][]string),
	}
	for k, v := range msg.Header {
		email.Headers[k] = v
	}

	fmt.Printf("\n=== Email Summary ===\n")
	fmt.Printf("From: %s\n", from)
	fmt.Printf("To: %s\n", to)
	fmt.Printf("Subject: %s\n", subject)
	fmt.Printf("Body length: %d bytes\n", len(email.Body))
	fmt.Printf("\n=== Analysis ===\n")
	fmt.Printf("Provider: %s\n", cfg.GetString("llm.provider"))

	startTime := time.Now()
	result, senderInfo, err := service.AnalyzeEmail(context.Background(), email)
	if err != nil {
		logger.Fatal("Failed to analyze email", zap.Error(err))
	}
	duration := time.Since(startTime)

	fmt.Printf("\n=== Results ===\n")
	fmt.Printf("Prediction: %s\n", result.Label)
	fmt.Printf("Confidence: %.2f%%\n", result.Confidence)
	fmt.Printf("Sender domain: %s\n", senderInfo.Domain)
	fmt.Printf("Sender flags: %s\n", strings.Join(senderInfo.Flags, ", "))
	fmt.Printf("Model used: %s\n", result.ModelUsed)
	fmt.Printf("Processing time: %v\n", duration)

	if closer, ok := classifier.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close classifier", zap.Error(err))
		}
	}
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags() *config.Config {
	v := config.NewEmptyViper()

	v.Set("llm.provider", *provider)

	switch *provider {
	case "bedrock":
		v.Set("bedrock.region", *bedrockRegion)
		v.Set("bedrock.model_id", *bedrockModelID)
		v.Set("bedrock.max_tokens", *maxTokens)
		v.Set("bedrock.temperature", *temperature)
		v.Set("bedrock.top_p", *topP)
		v.Set("bedrock.max_body_size", *maxBodySize)
	case "gemini":
		v.Set("gemini.api_key", *geminiAPIKey)
		v.Set("gemini.model_name", *geminiModelName)
		v.Set("gemini.max_tokens", *maxTokens)
		v.Set("gemini.temperature", *temperature)
		v.Set("gemini.top_p", *topP)
		v.Set("gemini.max_body_size", *maxBodySize)
	case "openai":
		v.Set("openai.api_key", *openaiAPIKey)
		v.Set("openai.model_name", *openaiModelName)
		v.Set("openai.max_tokens", *maxTokens)
		v.Set("openai.temperature", *temperature)
		v.Set("openai.top_p", *topP)
		v.Set("openai.max_body_size", *maxBodySize)
	}

	if *whitelistDomains != "" {
		domains := strings.Split(*whitelistDomains, ",")
		for i, domain := range domains {
			domains[i] = strings.TrimSpace(domain)
		}
		v.Set("heuristics.whitelisted_domains", domains)
	}

	return config.NewFromViper(v)
}
