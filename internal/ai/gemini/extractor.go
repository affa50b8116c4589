// Package gemini extracts candidate data with Google Gemini models.
package gemini

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/sourcing-agent/internal/ai"
	"github.com/spigell/sourcing-agent/internal/logger"
)

const Name = "gemini"

// Policy is the attempt budget of the Gemini backend.
var Policy = ai.Policy{
	Primary: ai.Budget{Tokens: 8000, Timeout: 120 * time.Second},
	Retry:   ai.Budget{Tokens: 4000, Timeout: 180 * time.Second},
}

// Config configures the Gemini backend.
type Config struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max-retries"`
}

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	Probe(ctx context.Context) error
}

// Client adapts a Generator to the extraction engine.
type Client struct {
	*ai.Engine

	generator contentGenerator
	model     string
}

// New builds the genai client and the extraction engine around it.
func New(ctx context.Context, apiKey string, cfg Config, log *zap.Logger, maxLogLen int) (*Client, error) {
	generator, err := NewGenerator(ctx, apiKey, cfg.Model, cfg.MaxRetries, log)
	if err != nil {
		return nil, err
	}
	return newClient(generator, generator.Model(), log, maxLogLen), nil
}

func newClient(generator contentGenerator, model string, log *zap.Logger, maxLogLen int) *Client {
	log = logger.WithCommonFields(log, Name, model)
	if g, ok := generator.(*Generator); ok {
		g.logger = log
	}

	c := &Client{generator: generator, model: model}
	c.Engine = ai.NewEngine(Name, c, Policy, log, maxLogLen)
	return c
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Complete forwards one attempt to Gemini, mapping API errors to status errors.
func (c *Client) Complete(ctx context.Context, attempt ai.Attempt) (string, error) {
	out, err := c.generator.GenerateContent(ctx, attempt.System, attempt.Prompt)
	if err != nil {
		return "", statusError(err)
	}
	return out, nil
}

// Probe checks that the model answers metadata requests with the configured key.
func (c *Client) Probe(ctx context.Context) error {
	return statusError(c.generator.Probe(ctx))
}

func statusError(err error) error {
	if apiErr, ok := asAPIError(err); ok && apiErr.Code != 0 {
		return &ai.StatusError{StatusCode: apiErr.Code, Status: apiErr.Status, Body: apiErr.Message}
	}
	return err
}
