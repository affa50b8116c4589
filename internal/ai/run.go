package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/sourcing-agent/internal/keywords"
	"github.com/spigell/sourcing-agent/internal/metrics"
	"github.com/spigell/sourcing-agent/internal/utils"
)

// DefaultMaxLogLength bounds prompt and response previews in debug logs.
const DefaultMaxLogLength = 200

// Extractor turns free text into structured candidate fields. Implementations
// never return an error; failures are reported in ExtractedFields.Error.
type Extractor interface {
	ParseCandidateData(ctx context.Context, content string, set keywords.Set) *ExtractedFields
	Provider() string
}

// Prober is implemented by providers that can check their availability.
type Prober interface {
	Probe(ctx context.Context) error
}

// Completer sends one prompt to a model backend and returns the raw text.
type Completer interface {
	Complete(ctx context.Context, attempt Attempt) (string, error)
}

// Attempt is a single model call.
type Attempt struct {
	Prompt  string
	System  string
	Budget  int
	Timeout time.Duration
	Retry   bool
}

// Budget limits content size and wall time of one attempt.
type Budget struct {
	Tokens  int
	Timeout time.Duration
}

// Policy holds the first attempt budget and the budget of the single retry
// made after a timeout.
type Policy struct {
	Primary Budget
	Retry   Budget
}

// StatusError is a non-success HTTP answer from a model backend.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("unexpected status %s", e.Status)
	}
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

type errorClass string

const (
	classOK         errorClass = "ok"
	classParse      errorClass = "parse_error"
	classTimeout    errorClass = "timeout"
	classConnection errorClass = "connection"
	classHTTP       errorClass = "http"
	classCancelled  errorClass = "cancelled"
)

// Engine runs the shared extraction flow on top of a provider Completer.
type Engine struct {
	provider  string
	completer Completer
	policy    Policy
	logger    *zap.Logger
	maxLogLen int
}

// NewEngine wires a provider completer into the extraction flow.
func NewEngine(provider string, completer Completer, policy Policy, logger *zap.Logger, maxLogLen int) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxLogLen <= 0 {
		maxLogLen = DefaultMaxLogLength
	}
	return &Engine{
		provider:  provider,
		completer: completer,
		policy:    policy,
		logger:    logger,
		maxLogLen: maxLogLen,
	}
}

// Provider returns the backend name.
func (e *Engine) Provider() string {
	return e.provider
}

// ParseCandidateData extracts candidate fields from content. A first attempt
// that times out while ctx is still alive is retried once with the retry budget.
func (e *Engine) ParseCandidateData(ctx context.Context, content string, set keywords.Set) *ExtractedFields {
	started := time.Now()
	fields, class := e.run(ctx, content, set)

	metrics.ExtractionsTotal.WithLabelValues(e.provider, string(class)).Inc()
	metrics.ExtractionDuration.WithLabelValues(e.provider).Observe(time.Since(started).Seconds())

	fields.Provider = e.provider
	return fields
}

func (e *Engine) run(ctx context.Context, content string, set keywords.Set) (*ExtractedFields, errorClass) {
	response, err := e.attempt(ctx, content, set, e.policy.Primary, false)
	if err != nil && classify(ctx, err) == classTimeout {
		e.logger.Warn("model request timed out, retrying with reduced content",
			zap.Duration("timeout", e.policy.Primary.Timeout),
			zap.Int("retry_tokens", e.policy.Retry.Tokens),
		)
		response, err = e.attempt(ctx, content, set, e.policy.Retry, true)
	}
	if err != nil {
		return e.failure(ctx, err)
	}

	e.logger.Debug("model response received",
		zap.String("response_preview", utils.TruncateForLog(response, e.maxLogLen)),
	)

	fields, err := ParseResponse(response)
	if err != nil {
		var perr *ParseError
		raw := ""
		if errors.As(err, &perr) {
			raw = perr.Excerpt
		}
		e.logger.Warn("failed to parse model response",
			zap.Error(err),
			zap.String("response_preview", utils.TruncateForLog(response, e.maxLogLen)),
		)
		return Failure(e.provider, err.Error(), raw), classParse
	}

	return fields, classOK
}

func (e *Engine) attempt(ctx context.Context, content string, set keywords.Set, budget Budget, retry bool) (string, error) {
	prompt := BuildPrompt(Truncate(content, budget.Tokens), set)

	e.logger.Debug("sending extraction prompt",
		zap.Bool("retry", retry),
		zap.Int("prompt_length", len(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, e.maxLogLen)),
	)

	attemptCtx := ctx
	if budget.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, budget.Timeout)
		defer cancel()
	}

	return e.completer.Complete(attemptCtx, Attempt{
		Prompt:  prompt,
		System:  SystemInstruction,
		Budget:  budget.Tokens,
		Timeout: budget.Timeout,
		Retry:   retry,
	})
}

func (e *Engine) failure(ctx context.Context, err error) (*ExtractedFields, errorClass) {
	class := classify(ctx, err)

	var message, raw string
	switch class {
	case classCancelled:
		message = fmt.Sprintf("%s request cancelled: %v", e.provider, err)
	case classTimeout:
		message = fmt.Sprintf("%s request timed out after retry with reduced content", e.provider)
	case classHTTP:
		var serr *StatusError
		errors.As(err, &serr)
		message = fmt.Sprintf("%s HTTP error %d: %v", e.provider, serr.StatusCode, err)
		raw = utils.TruncateForLog(serr.Body, e.maxLogLen)
	default:
		message = fmt.Sprintf("%s connection error: %v", e.provider, err)
	}

	e.logger.Error("model extraction failed",
		zap.String("class", string(class)),
		zap.Error(err),
	)
	return Failure(e.provider, message, raw), class
}

func classify(ctx context.Context, err error) errorClass {
	if ctx.Err() != nil {
		return classCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return classTimeout
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return classTimeout
	}
	var serr *StatusError
	if errors.As(err, &serr) {
		return classHTTP
	}
	if errors.Is(err, context.Canceled) {
		return classCancelled
	}
	return classConnection
}
