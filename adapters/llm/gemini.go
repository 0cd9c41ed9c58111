package llm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/businessboom/server/domain/repositories"
)

// ErrEmptyResponse is returned when the model produced no text
var ErrEmptyResponse = errors.New("empty response from model")

var assistantPrefix = regexp.MustCompile(`^Assistant:\s*`)

// GeminiLLM implements the chat completion and text generator ports using
// Google's Gemini API
type GeminiLLM struct {
	client *genai.Client
	config GeminiConfig
	logger *zap.Logger
}

var (
	_ repositories.ChatCompletion = (*GeminiLLM)(nil)
	_ repositories.TextGenerator  = (*GeminiLLM)(nil)
)

// NewGeminiLLM creates a new Gemini LLM instance
func NewGeminiLLM(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiLLM, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiLLM{
		client: client,
		config: config.withDefaults(logger),
		logger: logger,
	}, nil
}

// Complete sends the system prompt and the whole history in one request and
// returns the model's reply. Failures are returned as is, without retries.
func (g *GeminiLLM) Complete(ctx context.Context, systemPrompt string, history []repositories.ChatMessage) (string, error) {
	if len(history) == 0 {
		return "", fmt.Errorf("history must contain at least one message")
	}

	config := g.generateConfig()
	if systemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	text, err := g.generate(ctx, toGeminiContents(history), config)
	if err != nil {
		return "", err
	}

	reply := cleanReply(text)
	if reply == "" {
		return "", ErrEmptyResponse
	}

	last := history[len(history)-1].Content
	g.logger.Info("Chat completion processed",
		zap.String("user_message", preview(last)),
		zap.String("response_preview", preview(reply)),
		zap.Int("history_length", len(history)))

	return reply, nil
}

// Generate answers a standalone prompt
func (g *GeminiLLM) Generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	text, err := g.generate(ctx, contents, g.generateConfig())
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (g *GeminiLLM) generateConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SafetySettings:  safetySettings,
		StopSequences:   stopSequences,
		Temperature:     genai.Ptr(g.config.Temperature),
		TopP:            genai.Ptr(g.config.TopP),
		TopK:            genai.Ptr(g.config.TopK),
		MaxOutputTokens: int32(g.config.MaxOutputTokens),
	}
}

func (g *GeminiLLM) generate(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(g.config.TimeoutSeconds)*time.Second)
	defer cancel()

	response, err := g.client.Models.GenerateContent(ctx, g.config.Model, contents, config)
	if err != nil {
		g.logger.Error("Failed to generate content", zap.Error(err))
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		g.logger.Warn("No content generated")
		return "", ErrEmptyResponse
	}

	var b strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	return b.String(), nil
}

// toGeminiContents converts repository messages to Gemini format
func toGeminiContents(messages []repositories.ChatMessage) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		role := genai.Role(genai.RoleUser)
		if msg.Role == repositories.AssistantRole {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	return contents
}

func cleanReply(text string) string {
	return strings.TrimSpace(assistantPrefix.ReplaceAllString(strings.TrimSpace(text), ""))
}

func preview(s string) string {
	r := []rune(s)
	if len(r) > 50 {
		return string(r[:50])
	}
	return s
}
