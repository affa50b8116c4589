// Package ollama extracts candidate data through a local Ollama server.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"github.com/spigell/sourcing-agent/internal/ai"
	"github.com/spigell/sourcing-agent/internal/logger"
)

const (
	Name         = "ollama"
	DefaultURL   = "http://localhost:11434"
	DefaultModel = "llama3"

	primaryContext = 4096
	retryContext   = 2048
	probeTimeout   = 5 * time.Second
)

// Policy is the attempt budget of the Ollama backend.
var Policy = ai.Policy{
	Primary: ai.Budget{Tokens: 3000, Timeout: 60 * time.Second},
	Retry:   ai.Budget{Tokens: 1500, Timeout: 180 * time.Second},
}

// Config configures the Ollama backend.
type Config struct {
	APIURL string `mapstructure:"api-url"`
	Model  string `mapstructure:"model"`
}

// Client talks to the Ollama HTTP API.
type Client struct {
	*ai.Engine

	api    *api.Client
	apiURL string
	model  string
	logger *zap.Logger
}

// New creates an Ollama client. Empty config values fall back to a local llama3.
func New(cfg Config, log *zap.Logger, maxLogLen int) (*Client, error) {
	apiURL := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if apiURL == "" {
		apiURL = DefaultURL
	}
	base, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("parse ollama api url: %w", err)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	log = logger.WithCommonFields(log, Name, model)
	c := &Client{
		api:    api.NewClient(base, &http.Client{}),
		apiURL: apiURL,
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

// Complete runs one non-streaming generate request.
func (c *Client) Complete(ctx context.Context, attempt ai.Attempt) (string, error) {
	numCtx := primaryContext
	if attempt.Retry {
		numCtx = retryContext
	}

	stream := false
	req := &api.GenerateRequest{
		Model:  c.model,
		Prompt: attempt.Prompt,
		System: attempt.System,
		Stream: &stream,
		Options: map[string]any{
			"temperature": ai.Temperature,
			"num_ctx":     numCtx,
		},
	}

	var out strings.Builder
	err := c.api.Generate(ctx, req, func(resp api.GenerateResponse) error {
		out.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", statusError(err)
	}

	return out.String(), nil
}

// Probe checks that the server answers and warns when the model is not pulled.
func (c *Client) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	version, err := c.api.Version(ctx)
	if err != nil {
		return fmt.Errorf("ollama server at %s is not available: %w", c.apiURL, statusError(err))
	}

	list, err := c.api.List(ctx)
	if err != nil {
		c.logger.Warn("could not check model availability", zap.Error(err))
		return nil
	}

	wanted := strings.ToLower(c.model)
	available := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		name := m.Name
		if name == "" {
			name = m.Model
		}
		if strings.Contains(strings.ToLower(name), wanted) {
			c.logger.Debug("ollama model found", zap.String("server_version", version), zap.String("tag", name))
			return nil
		}
		available = append(available, name)
	}

	c.logger.Warn("model is not available on the ollama server, pull it first",
		zap.String("server_version", version),
		zap.Strings("available_models", available),
	)
	return nil
}

// statusError maps the api error answers to ai.StatusError so the engine
// classifies them as HTTP failures.
func statusError(err error) error {
	var serr api.StatusError
	if errors.As(err, &serr) {
		return &ai.StatusError{StatusCode: serr.StatusCode, Status: serr.Status, Body: serr.ErrorMessage}
	}
	var aerr api.AuthorizationError
	if errors.As(err, &aerr) {
		return &ai.StatusError{StatusCode: aerr.StatusCode, Status: aerr.Status, Body: aerr.SigninURL}
	}
	return err
}
