package llm

import (
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	defaultModel          = "gemini-2.0-flash"
	defaultTemperature    = 0.7
	defaultTopP           = 0.8
	defaultTopK           = 40
	defaultMaxTokens      = 3000
	defaultTimeoutSeconds = 60
)

// stopSequences keep the model from writing the next speaker's turn
var stopSequences = []string{"Human:", "User:"}

var safetySettings = []*genai.SafetySetting{
	{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
}

// GeminiConfig holds the generation settings. Zero values fall back to defaults.
type GeminiConfig struct {
	APIKey          string
	Model           string
	Temperature     float32
	TopP            float32
	TopK            float32
	MaxOutputTokens int
	TimeoutSeconds  int
}

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("Gemini API key is required")
	}

	if config.Temperature < 0 || config.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", config.Temperature)
	}

	if config.TopP < 0 || config.TopP > 1 {
		return fmt.Errorf("topP must be between 0 and 1, got %f", config.TopP)
	}

	if config.TopK < 0 {
		return fmt.Errorf("topK must be positive, got %f", config.TopK)
	}

	if config.MaxOutputTokens < 0 {
		return fmt.Errorf("maxOutputTokens must be positive, got %d", config.MaxOutputTokens)
	}

	if config.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout must be positive, got %d", config.TimeoutSeconds)
	}

	return nil
}

// withDefaults fills unset fields and logs each default applied
func (c GeminiConfig) withDefaults(logger *zap.Logger) GeminiConfig {
	if c.Model == "" {
		c.Model = defaultModel
		logger.Info("Using default model", zap.String("model", c.Model))
	}
	if c.Temperature == 0 {
		c.Temperature = defaultTemperature
		logger.Info("Using default temperature", zap.Float32("temperature", c.Temperature))
	}
	if c.TopP == 0 {
		c.TopP = defaultTopP
		logger.Info("Using default topP", zap.Float32("topP", c.TopP))
	}
	if c.TopK == 0 {
		c.TopK = defaultTopK
		logger.Info("Using default topK", zap.Float32("topK", c.TopK))
	}
	if c.MaxOutputTokens == 0 {
		c.MaxOutputTokens = defaultMaxTokens
		logger.Info("Using default maxOutputTokens", zap.Int("maxOutputTokens", c.MaxOutputTokens))
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = defaultTimeoutSeconds
		logger.Info("Using default timeoutSeconds", zap.Int("timeoutSeconds", c.TimeoutSeconds))
	}
	return c
}
