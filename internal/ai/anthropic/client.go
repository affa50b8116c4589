// Package anthropic extracts candidate data with the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/spigell/sourcing-agent/internal/ai"
	"github.com/spigell/sourcing-agent/internal/logger"
)

const (
	Name         = "anthropic"
	DefaultModel = "claude-3-opus-20240229"

	maxTokens = 1024
	keyPrefix = "sk-ant-"
)

// Policy is the attempt budget of the Anthropic backend.
var Policy = ai.Policy{
	Primary: ai.Budget{Tokens: 10000, Timeout: 120 * time.Second},
	Retry:   ai.Budget{Tokens: 5000, Timeout: 180 * time.Second},
}

// Config configures the Anthropic backend.
type Config struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	BaseURL    string `mapstructure:"base-url"`
}

// Client sends extraction prompts to Claude.
type Client struct {
	*ai.Engine

	messages sdk.MessageService
	models   sdk.ModelService
	model    string
	logger   *zap.Logger
}

// New creates a client. Keys starting with sk-ant- are sent as API keys,
// anything else as a bearer token.
func New(apiKey string, cfg Config, log *zap.Logger, maxLogLen int) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("anthropic api key is required")
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if strings.HasPrefix(apiKey, keyPrefix) {
		opts = append(opts, option.WithAPIKey(apiKey))
	} else {
		opts = append(opts, option.WithAuthToken(apiKey))
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}

	client := sdk.NewClient(opts...)

	log = logger.WithCommonFields(log, Name, model)
	c := &Client{
		messages: client.Messages,
		models:   client.Models,
		model:    model,
		logger:   log,
	}
	c.Engine = ai.NewEngine(Name, c, Policy, log, maxLogLen)

	return c, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Complete sends one message and joins the text blocks of the answer.
func (c *Client) Complete(ctx context.Context, attempt ai.Attempt) (string, error) {
	params := sdk.MessageNewParams{
		Model:       sdk.Model(c.model),
		MaxTokens:   maxTokens,
		Temperature: sdk.Float(ai.Temperature),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(attempt.Prompt)),
		},
	}
	if attempt.System != "" {
		params.System = []sdk.TextBlockParam{{Text: attempt.System}}
	}

	msg, err := c.messages.New(ctx, params)
	if err != nil {
		return "", statusError(err)
	}

	var builder strings.Builder
	for _, block := range msg.Content {
		if block.Type != "text" || block.Text == "" {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(block.Text)
	}

	return builder.String(), nil
}

// Probe lists a single model to check the key and the endpoint.
func (c *Client) Probe(ctx context.Context) error {
	if _, err := c.models.List(ctx, sdk.ModelListParams{Limit: sdk.Int(1)}); err != nil {
		return fmt.Errorf("list models: %w", statusError(err))
	}
	return nil
}

func statusError(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return &ai.StatusError{
			StatusCode: apiErr.StatusCode,
			Status:     fmt.Sprintf("%d", apiErr.StatusCode),
			Body:       apiErr.Error(),
		}
	}
	return err
}
