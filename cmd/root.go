package cmd

import (
	"errors"
	"io/fs"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/sourcing-agent/internal/ai/provider"
	"github.com/spigell/sourcing-agent/internal/fetch"
	"github.com/spigell/sourcing-agent/internal/keywords"
	"github.com/spigell/sourcing-agent/internal/prescreen"
	"github.com/spigell/sourcing-agent/internal/search"
	"github.com/spigell/sourcing-agent/internal/sourcing"
)

const (
	app = "sourcing-agent"
)

type Config struct {
	Search      *SearchConfig        `mapstructure:"search"`
	AI          provider.Config      `mapstructure:"ai"`
	Fetch       *FetchConfig         `mapstructure:"fetch"`
	Sourcing    *SourcingConfig      `mapstructure:"sourcing"`
	Prescreen   prescreen.Vocabulary `mapstructure:"prescreen"`
	Keywords    keywords.Set         `mapstructure:"keywords"`
	Location    string               `mapstructure:"location"`
	ExcludeFile string               `mapstructure:"exclude-file"`
	MetricsAddr string               `mapstructure:"metrics-addr"`
}

type SearchConfig struct {
	APIKey              string `mapstructure:"api-key"`
	APIKeyFile          string `mapstructure:"api-key-file"`
	EngineID            string `mapstructure:"engine-id"`
	MinResults          int    `mapstructure:"min-results"`
	Expand              bool   `mapstructure:"expand"`
	search.QueryOptions `mapstructure:",squash"`
}

type FetchConfig struct {
	fetch.Options `mapstructure:",squash"`
	Delay         time.Duration `mapstructure:"delay"`
	AccessLog     string        `mapstructure:"access-log"`
}

type SourcingConfig struct {
	sourcing.Options `mapstructure:",squash"`
	OutputDir        string `mapstructure:"output-dir"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "sourcing-agent finds candidate profiles on the web and ranks them against keyword sets",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is sourcing-agent.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults()
}

func setDefaults() {
	viper.SetDefault("search.min-results", 20)
	viper.SetDefault("search.expand", true)

	viper.SetDefault("ai.provider", provider.DefaultPrimary)
	viper.SetDefault("ai.fallback", provider.DefaultFallback)
	viper.SetDefault("ai.max-log-length", 200)

	viper.SetDefault("fetch.delay", "1s")
	viper.SetDefault("fetch.access-log", "data/linkedin_access_failures.log")

	defaults := sourcing.DefaultOptions()
	viper.SetDefault("sourcing.workers", defaults.Workers)
	viper.SetDefault("sourcing.max-rounds", defaults.MaxRounds)
	viper.SetDefault("sourcing.top-n", defaults.TopN)
	viper.SetDefault("sourcing.admit-all-profiles", defaults.AdmitAllProfiles)
	viper.SetDefault("sourcing.output-dir", "data")
}

func bindEnv() {
	envs := map[string]string{
		"search.api-key":    "GOOGLE_API_KEY",
		"search.engine-id":  "GOOGLE_CSE_ID",
		"ai.provider":       "LLM_TYPE",
		"ai.ollama.api-url": "OLLAMA_API_URL",
	}
	for key, env := range envs {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}
}

func initConfig() {
	// Config needed only for run command now. If there is no config, we can skip initialization
	if runCmd.CalledAs() == "" {
		return
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env file: %v", err)
	}
	bindEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Everything can come from flags and the environment, so only a broken
	// or explicitly requested file is fatal.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config.Search == nil {
		config.Search = &SearchConfig{}
	}
	if config.Fetch == nil {
		config.Fetch = &FetchConfig{}
	}
	if config.Sourcing == nil {
		config.Sourcing = &SourcingConfig{Options: sourcing.DefaultOptions()}
	}

	return config, nil
}
