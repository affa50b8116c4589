// Package provider builds extraction backends by name and picks one for a run.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/sourcing-agent/internal/ai"
	"github.com/spigell/sourcing-agent/internal/ai/anthropic"
	"github.com/spigell/sourcing-agent/internal/ai/gemini"
	"github.com/spigell/sourcing-agent/internal/ai/ollama"
	"github.com/spigell/sourcing-agent/internal/ai/openai"
	"github.com/spigell/sourcing-agent/internal/secrets"
)

const (
	llamaAlias      = "llama"
	DefaultPrimary  = ollama.Name
	DefaultFallback = openai.Name
)

// ErrNoProvider means neither the primary nor the fallback backend is usable.
var ErrNoProvider = errors.New("no extraction provider available")

// ErrUnknown is returned for provider names with no backend.
var ErrUnknown = errors.New("unknown provider")

// Config holds the settings of every backend.
type Config struct {
	Provider     string           `mapstructure:"provider"`
	Fallback     string           `mapstructure:"fallback"`
	MaxLogLength int              `mapstructure:"max-log-length"`
	Ollama       ollama.Config    `mapstructure:"ollama"`
	OpenAI       openai.Config    `mapstructure:"openai"`
	Anthropic    anthropic.Config `mapstructure:"anthropic"`
	Gemini       gemini.Config    `mapstructure:"gemini"`
}

// Selection is the backend chosen for a pipeline run.
type Selection struct {
	Extractor ai.Extractor
	Name      string
	Fallback  bool
}

// Builder constructs a backend by its normalized name.
type Builder func(ctx context.Context, name string, cfg Config, logger *zap.Logger) (ai.Extractor, error)

// Normalize lowercases name and resolves aliases.
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == llamaAlias {
		return ollama.Name
	}
	return name
}

// New builds the backend named name. API keys are resolved from the key file
// first, then from the inline value.
func New(ctx context.Context, name string, cfg Config, logger *zap.Logger) (ai.Extractor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("ai")

	switch Normalize(name) {
	case ollama.Name:
		c, err := ollama.New(cfg.Ollama, logger, cfg.MaxLogLength)
		if err != nil {
			return nil, err
		}
		return c, nil

	case openai.Name:
		key, err := secrets.Load(secrets.Source{
			Name:  "openai api key",
			Value: cfg.OpenAI.APIKey,
			File:  cfg.OpenAI.APIKeyFile,
			Env:   "OPENAI_API_KEY",
		})
		if err != nil {
			return nil, err
		}
		return openai.New(key, cfg.OpenAI, logger, cfg.MaxLogLength)

	case anthropic.Name:
		key, err := secrets.Load(secrets.Source{
			Name:  "anthropic api key",
			Value: cfg.Anthropic.APIKey,
			File:  cfg.Anthropic.APIKeyFile,
			Env:   "ANTHROPIC_API_KEY",
		})
		if err != nil {
			return nil, err
		}
		return anthropic.New(key, cfg.Anthropic, logger, cfg.MaxLogLength)

	case gemini.Name:
		key, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: cfg.Gemini.APIKey,
			File:  cfg.Gemini.APIKeyFile,
			Env:   "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, err
		}
		return gemini.New(ctx, key, cfg.Gemini, logger, cfg.MaxLogLength)

	default:
		return nil, fmt.Errorf("%w %q (supported: llama, ollama, anthropic, openai, gemini)", ErrUnknown, name)
	}
}

// Selector picks a backend once per run.
type Selector struct {
	build  Builder
	logger *zap.Logger
}

// NewSelector returns a Selector using build, or New when build is nil.
func NewSelector(build Builder, logger *zap.Logger) *Selector {
	if build == nil {
		build = func(ctx context.Context, name string, cfg Config, logger *zap.Logger) (ai.Extractor, error) {
			return New(ctx, name, cfg, logger)
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{build: build, logger: logger}
}

// Select builds cfg.Provider and probes it. A build failure is a configuration
// error. When the probe fails, cfg.Fallback is built and probed instead.
func (s *Selector) Select(ctx context.Context, cfg Config) (*Selection, error) {
	primary := Normalize(cfg.Provider)
	if primary == "" {
		primary = DefaultPrimary
	}
	fallback := Normalize(cfg.Fallback)

	extractor, err := s.build(ctx, primary, cfg, s.logger)
	if err != nil {
		return nil, fmt.Errorf("configure %s provider: %w", primary, err)
	}

	err = probe(ctx, extractor)
	if err == nil {
		return &Selection{Extractor: extractor, Name: primary}, nil
	}

	if fallback == "" || fallback == primary {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoProvider, primary, err)
	}

	s.logger.Warn("primary extraction provider unavailable, switching to fallback",
		zap.String("primary", primary),
		zap.String("fallback", fallback),
		zap.Error(err),
	)

	extractor, ferr := s.build(ctx, fallback, cfg, s.logger)
	if ferr == nil {
		ferr = probe(ctx, extractor)
	}
	if ferr != nil {
		return nil, fmt.Errorf("%w: %s: %v; %s: %v", ErrNoProvider, primary, err, fallback, ferr)
	}

	return &Selection{Extractor: extractor, Name: fallback, Fallback: true}, nil
}

func probe(ctx context.Context, extractor ai.Extractor) error {
	if prober, ok := extractor.(ai.Prober); ok {
		return prober.Probe(ctx)
	}
	return nil
}

// Select is a shortcut for NewSelector(nil, logger).Select.
func Select(ctx context.Context, cfg Config, logger *zap.Logger) (*Selection, error) {
	return NewSelector(nil, logger).Select(ctx, cfg)
}
