// Package video talks to the avatar video providers a consultation can run on
package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/businessboom/server/domain/repositories"
)

const (
	defaultTavusBaseURL = "https://tavusapi.com/v2"
	defaultTimeout      = 30 * time.Second
	maxErrorBody        = 4 << 10
)

// TavusConfig holds configuration for the Tavus adapter.
// APIKey and ReplicaID are required, BaseURL defaults to the public v2 API.
type TavusConfig struct {
	APIKey    string
	ReplicaID string
	BaseURL   string
	Timeout   time.Duration
}

// TavusProvider implements VideoProvider using the Tavus conversations API
type TavusProvider struct {
	apiKey    string
	replicaID string
	baseURL   string
	client    *http.Client
	logger    *zap.Logger
}

var _ repositories.VideoProvider = (*TavusProvider)(nil)

type createConversationRequest struct {
	ReplicaID             string `json:"replica_id"`
	ConversationName      string `json:"conversation_name,omitempty"`
	ConversationalContext string `json:"conversational_context,omitempty"`
	CustomGreeting        string `json:"custom_greeting,omitempty"`
}

type createConversationResponse struct {
	ConversationID  string `json:"conversation_id"`
	ConversationURL string `json:"conversation_url"`
	Status          string `json:"status"`
}

// APIError is a non-2xx answer from the provider
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tavus returned status %d: %s", e.StatusCode, e.Body)
}

// ValidateTavusConfig validates the TavusConfig
func ValidateTavusConfig(config TavusConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("tavus API key is required")
	}
	if config.ReplicaID == "" {
		return fmt.Errorf("tavus replica ID is required")
	}
	if config.Timeout < 0 {
		return fmt.Errorf("timeout must be positive, got %s", config.Timeout)
	}
	return nil
}

// NewTavusProvider creates a new Tavus provider
func NewTavusProvider(config TavusConfig, logger *zap.Logger) (*TavusProvider, error) {
	if err := ValidateTavusConfig(config); err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultTavusBaseURL
		logger.Info("Using default API base URL", zap.String("baseURL", baseURL))
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &TavusProvider{
		apiKey:    config.APIKey,
		replicaID: config.ReplicaID,
		baseURL:   baseURL,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}, nil
}

// CreateSession starts a Tavus conversation and returns its embed URL
func (t *TavusProvider) CreateSession(ctx context.Context, config repositories.VideoSessionConfig) (repositories.VideoSession, error) {
	body, err := json.Marshal(createConversationRequest{
		ReplicaID:             t.replicaID,
		ConversationName:      config.Name,
		ConversationalContext: config.Context,
		CustomGreeting:        config.Greeting,
	})
	if err != nil {
		return repositories.VideoSession{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := t.do(ctx, http.MethodPost, "/conversations", body)
	if err != nil {
		return repositories.VideoSession{}, fmt.Errorf("failed to create conversation: %w", err)
	}
	defer resp.Body.Close()

	var out createConversationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return repositories.VideoSession{}, fmt.Errorf("failed to decode conversation: %w", err)
	}
	if out.ConversationID == "" || out.ConversationURL == "" {
		return repositories.VideoSession{}, fmt.Errorf("conversation response is missing id or url")
	}

	t.logger.Info("Video conversation created",
		zap.String("conversationID", out.ConversationID),
		zap.String("status", out.Status))

	return repositories.VideoSession{ID: out.ConversationID, EmbedURL: out.ConversationURL}, nil
}

// DeleteSession ends the conversation on the provider side. Deleting an
// unknown conversation is not an error.
func (t *TavusProvider) DeleteSession(ctx context.Context, sessionID string) error {
	resp, err := t.do(ctx, http.MethodDelete, "/conversations/"+sessionID, nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			t.logger.Warn("Video conversation already gone", zap.String("conversationID", sessionID))
			return nil
		}
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	resp.Body.Close()

	t.logger.Info("Video conversation deleted", zap.String("conversationID", sessionID))
	return nil
}

func (t *TavusProvider) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("x-api-key", t.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	t.logger.Debug("Sending request to Tavus API", zap.String("method", method), zap.String("path", path))

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		t.logger.Error("Tavus API returned error",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(errorBody)))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(errorBody))}
	}
	return resp, nil
}
