// Package openai extracts candidate data with OpenAI chat completions.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/spigell/sourcing-agent/internal/ai"
	"github.com/spigell/sourcing-agent/internal/logger"
)

const (
	Name         = "openai"
	DefaultModel = "gpt-4-turbo"
)

// Policy is the attempt budget of the OpenAI backend.
var Policy = ai.Policy{
	Primary: ai.Budget{Tokens: 8000, Timeout: 120 * time.Second},
	Retry:   ai.Budget{Tokens: 4000, Timeout: 180 * time.Second},
}

// Config configures the OpenAI backend. BaseURL allows OpenAI compatible servers.
type Config struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	BaseURL    string `mapstructure:"base-url"`
}

// Client sends extraction prompts as JSON mode chat completions.
type Client struct {
	*ai.Engine

	client *openai.Client
	model  string
	logger *zap.Logger
}

// New creates a client for the given key.
func New(apiKey string, cfg Config, log *zap.Logger, maxLogLen int) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.BaseURL = base
	}

	log = logger.WithCommonFields(log, Name, model)
	c := &Client{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		logger: log,
	}
	c.Engine = ai.NewEngine(Name, c, Policy, log, maxLogLen)

	return c, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Complete requests one JSON object completion.
func (c *Client) Complete(ctx context.Context, attempt ai.Attempt) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if attempt.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: attempt.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: attempt.Prompt,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: float32(ai.Temperature),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", statusError(err)
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// Probe lists models, which costs nothing.
func (c *Client) Probe(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", statusError(err))
	}
	return nil
}

func statusError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &ai.StatusError{
			StatusCode: apiErr.HTTPStatusCode,
			Status:     apiErr.HTTPStatus,
			Body:       apiErr.Message,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &ai.StatusError{
			StatusCode: reqErr.HTTPStatusCode,
			Status:     reqErr.HTTPStatus,
			Body:       string(reqErr.Body),
		}
	}

	return err
}
