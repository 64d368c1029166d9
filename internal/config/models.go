package config

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GmailConfig represents the configuration for the Gmail client
type GmailConfig struct {
	CredentialsPath string
	TokenPath       string
	RedirectPort    int
	MarkAsRead      bool
}

// HeuristicsConfig represents the sender analysis rule sets
type HeuristicsConfig struct {
	TyposquatPatterns  []string
	SuspiciousTLDs     []string
	MaxSubdomainDots   int
	WhitelistedDomains []string
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// GetGmail returns the Gmail client configuration
func (c *Config) GetGmail() GmailConfig {
	return GmailConfig{
		CredentialsPath: c.GetString("gmail.credentials_path"),
		TokenPath:       c.GetString("gmail.token_path"),
		RedirectPort:    c.GetInt("gmail.redirect_port"),
		MarkAsRead:      c.GetBool("gmail.mark_as_read"),
	}
}

// GetHeuristics returns the sender heuristics configuration
func (c *Config) GetHeuristics() HeuristicsConfig {
	return HeuristicsConfig{
		TyposquatPatterns:  c.GetStringSlice("heuristics.typosquat_patterns"),
		SuspiciousTLDs:     c.GetStringSlice("heuristics.suspicious_tlds"),
		MaxSubdomainDots:   c.GetInt("heuristics.max_subdomain_dots"),
		WhitelistedDomains: c.GetStringSlice("heuristics.whitelisted_domains"),
	}
}
