// Package fetch retrieves search hit pages and turns them into plain text.
// Profile network pages get a browser-like request and a synthesized
// placeholder when the network refuses to serve them.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/spigell/sourcing-agent/internal/linkedin"
	"github.com/spigell/sourcing-agent/internal/metrics"
)

const (
	defaultTimeout        = 10 * time.Second
	defaultProfileTimeout = 15 * time.Second
	defaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	maxBodyBytes          = 5 << 20
)

// Result is the outcome of fetching one URL. A nil Text means total failure.
type Result struct {
	URL           string
	Text          *string
	Degraded      bool
	FailureReason string
}

// OK reports whether the result carries any text.
func (r Result) OK() bool {
	return r.Text != nil && *r.Text != ""
}

type Options struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	ProfileTimeout time.Duration `mapstructure:"profile-timeout"`
	UserAgent      string        `mapstructure:"user-agent"`
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.ProfileTimeout <= 0 {
		o.ProfileTimeout = defaultProfileTimeout
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUserAgent
	}
	return o
}

// Fetcher is safe for concurrent use.
type Fetcher struct {
	HTTPClient *http.Client

	opts    Options
	sink    AccessFailureSink
	limiter *HostLimiter
	logger  *zap.Logger
	now     func() time.Time
}

// New builds a fetcher. A nil sink discards access failures and a nil limiter disables politeness delays.
func New(opts Options, sink AccessFailureSink, limiter *HostLimiter, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = NopSink{}
	}

	return &Fetcher{
		HTTPClient: &http.Client{},
		opts:       opts.withDefaults(),
		sink:       sink,
		limiter:    limiter,
		logger:     logger,
		now:        time.Now,
	}
}

// Fetch never returns an error: failures are described by the Result.
func (f *Fetcher) Fetch(ctx context.Context, url string) Result {
	if f.limiter != nil {
		if err := f.limiter.WaitURL(ctx, url); err != nil {
			return f.failed(url, fmt.Errorf("waiting for host limiter: %w", err))
		}
	}

	if linkedin.IsNetworkURL(url) {
		return f.fetchProfile(ctx, url)
	}

	text, err := f.fetchPage(ctx, url)
	if err != nil {
		return f.failed(url, err)
	}

	metrics.FetchResultsTotal.WithLabelValues("ok").Inc()
	f.logger.Info("fetched page content", zap.String("url", url), zap.Int("chars", len(text)))
	return Result{URL: url, Text: &text}
}

func (f *Fetcher) fetchPage(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, body, err := f.do(req)
	if err != nil {
		return "", err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("bad status: %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}

	text := DocumentText(doc)
	if text == "" {
		text = readableText(body, url)
	}
	if text == "" {
		return "", errEmptyPage
	}

	return text, nil
}

func (f *Fetcher) do(req *http.Request) (*http.Response, []byte, error) {
	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp, nil, fmt.Errorf("reading body: %w", err)
	}

	return resp, body, nil
}

func (f *Fetcher) failed(url string, err error) Result {
	metrics.FetchResultsTotal.WithLabelValues("failed").Inc()
	f.logger.Warn("fetching url failed", zap.String("url", url), zap.Error(err))
	return Result{URL: url, FailureReason: err.Error()}
}
