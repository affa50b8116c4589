package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/sourcing-agent/internal/ai/provider"
	"github.com/spigell/sourcing-agent/internal/fetch"
	"github.com/spigell/sourcing-agent/internal/keywords"
	"github.com/spigell/sourcing-agent/internal/logger"
	"github.com/spigell/sourcing-agent/internal/metrics"
	"github.com/spigell/sourcing-agent/internal/prescreen"
	"github.com/spigell/sourcing-agent/internal/search"
	"github.com/spigell/sourcing-agent/internal/secrets"
	"github.com/spigell/sourcing-agent/internal/sourcing"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Search, extract and rank candidates for a keyword set",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("auto-approve", "y", false, "run a single round without asking for confirmation")
	runCmd.Flags().StringP("required", "r", "", "comma separated must-have keywords")
	runCmd.Flags().StringP("optional", "o", "", "comma separated nice-to-have keywords")
	runCmd.Flags().StringP("excluded", "x", "", "comma separated keywords to exclude from search")
	runCmd.Flags().StringP("keywords-file", "k", "", "yaml file with required, optional and excluded keywords")
	runCmd.Flags().StringP("location", "l", "", "location added to the search query")
	runCmd.Flags().Int("min-results", 0, "minimal number of search results before the query is expanded")
	runCmd.Flags().Int("rounds", 0, "maximal number of rounds")
	runCmd.Flags().Int("workers", 0, "number of hits processed concurrently")
	runCmd.Flags().String("output-dir", "", "directory for round output files")
	runCmd.Flags().StringP("exclude-file", "e", "", "special file with already reviewed urls to exclude. Default is unset.")
	runCmd.Flags().String("metrics-addr", "", "serve prometheus metrics on this address, e.g. :9090")
	runCmd.Flags().StringSlice("disable-filter", nil, "filtering steps to skip: dedupe, exclude_file, prescreen")

	bindings := map[string]string{
		"location":                  "location",
		"search.min-results":        "min-results",
		"sourcing.max-rounds":       "rounds",
		"sourcing.workers":          "workers",
		"sourcing.output-dir":       "output-dir",
		"exclude-file":              "exclude-file",
		"metrics-addr":              "metrics-addr",
		"sourcing.disabled-filters": "disable-filter",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, runCmd.Flags().Lookup(flag)); err != nil {
			log.Fatalf("binding %s flag: %v", flag, err)
		}
	}
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer func() { _ = logger.Sync() }()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the sourcing-agent", zap.String("version", version))

	set, err := resolveKeywords(cmd, config)
	if err != nil {
		logger.Fatal("resolving keywords", zap.Error(err))
	}
	if err := set.Validate(); err != nil {
		logger.Fatal("invalid keywords",
			zap.Error(err),
			zap.String("hint", "pass --required, a keywords file with a 'required' list or the 'keywords.required' config key"),
		)
	}

	if config.MetricsAddr != "" {
		serveMetrics(config.MetricsAddr, logger)
	}

	searcher, err := newSearcher(config.Search, logger)
	if err != nil {
		logger.Fatal("configuring search",
			zap.Error(err),
			zap.String("hint", "set GOOGLE_API_KEY and GOOGLE_CSE_ID environment variables or the 'search' section in the configuration file"),
		)
	}

	fetcher, err := newFetcher(config.Fetch, logger)
	if err != nil {
		logger.Fatal("configuring fetcher", zap.Error(err))
	}

	selection, err := provider.Select(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal("selecting extraction provider", zap.Error(err))
	}
	logger.Info("extraction provider selected",
		zap.String("provider", selection.Name),
		zap.Bool("fallback", selection.Fallback),
	)

	ctrl := sourcing.New(sourcing.Deps{
		Searcher:    searcher,
		Screener:    prescreen.New(config.Prescreen),
		Fetcher:     fetcher,
		Extractor:   selection.Extractor,
		Sink:        sourcing.NewJSONFileSink(config.Sourcing.OutputDir),
		ExcludeFile: config.ExcludeFile,
		Logger:      logger.Named("sourcing"),
	}, config.Sourcing.Options)

	var decide sourcing.DecisionFunc
	if cmd.Flag("auto-approve").Value.String() == "false" {
		decide = promptDecision(logger)
	}

	history, results, err := ctrl.Iterate(ctx, sourcing.Request{
		Keywords:   set,
		Location:   config.Location,
		MinResults: config.Search.MinResults,
		Expand:     config.Search.Expand,
	}, decide)

	for _, res := range results {
		logger.Info("round summary",
			zap.Int("round", res.Round),
			zap.Int("hits", res.Hits),
			zap.Int("candidates", len(res.Candidates)),
			zap.Int("failures", len(res.Failures)),
			zap.String("output", res.Output),
		)
	}

	switch {
	case err == nil:
	case errors.Is(err, promptui.ErrInterrupt), errors.Is(err, promptui.ErrEOF), errors.Is(err, context.Canceled):
		logger.Info("exiting", zap.String("reason", err.Error()))
	default:
		logger.Fatal("sourcing failed", zap.Error(err), zap.Int("completed_rounds", len(history)))
	}
}

func resolveKeywords(cmd *cobra.Command, config *Config) (keywords.Set, error) {
	set := config.Keywords

	if path := strings.TrimSpace(cmd.Flag("keywords-file").Value.String()); path != "" {
		fromFile, err := keywords.FromFile(path)
		if err != nil {
			return keywords.Set{}, err
		}
		set = fromFile
	}

	if raw := cmd.Flag("required").Value.String(); raw != "" {
		set.Required = keywords.Split(raw)
	}
	if raw := cmd.Flag("optional").Value.String(); raw != "" {
		set.Optional = keywords.Split(raw)
	}
	if raw := cmd.Flag("excluded").Value.String(); raw != "" {
		set.Excluded = keywords.Split(raw)
	}

	return set, nil
}

func newSearcher(cfg *SearchConfig, logger *zap.Logger) (*search.Executor, error) {
	apiKey, err := secrets.Load(secrets.Source{
		Name:  "google api key",
		Value: cfg.APIKey,
		File:  cfg.APIKeyFile,
	})
	if err != nil {
		return nil, err
	}

	engineID := strings.TrimSpace(cfg.EngineID)
	if engineID == "" {
		return nil, errors.New("custom search engine id is required")
	}

	client := search.NewClient(logger.Named("search"), apiKey, engineID)
	return search.NewExecutor(client, cfg.QueryOptions, logger.Named("search")), nil
}

func newFetcher(cfg *FetchConfig, logger *zap.Logger) (*fetch.Fetcher, error) {
	var sink fetch.AccessFailureSink = fetch.NopSink{}
	if cfg.AccessLog != "" {
		fileSink, err := fetch.NewFileSink(cfg.AccessLog, logger)
		if err != nil {
			return nil, fmt.Errorf("opening access failure log: %w", err)
		}
		sink = fileSink
	}

	var limiter *fetch.HostLimiter
	if cfg.Delay > 0 {
		limiter = fetch.NewHostLimiter(cfg.Delay)
	}

	return fetch.New(cfg.Options, sink, limiter, logger.Named("fetch")), nil
}

func serveMetrics(addr string, logger *zap.Logger) {
	metrics.Register()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
}
