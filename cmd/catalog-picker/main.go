// catalog-picker is the interactive terminal UI for building an ordered
// product list from the remote catalog.
//
// Configuration is read from an optional TOML file, a .env file and the
// environment (see pkg/config); flags override all of them. Logs go to a
// file because the terminal belongs to the UI.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Sternrassler/catalog-picker/internal/tui"
	"github.com/Sternrassler/catalog-picker/pkg/client"
	"github.com/Sternrassler/catalog-picker/pkg/config"
	"github.com/Sternrassler/catalog-picker/pkg/logging"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

const defaultLogFile = "catalog-picker.log"

type options struct {
	configPath string
	apiKey     string
	baseURL    string
	logFile    string
	logLevel   string
	redisURL   string
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var opts options
	flagSet := newFlagSet(&opts)
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if err := applyFlags(cfg, flagSet, opts); err != nil {
		return err
	}

	logger, closer, err := logging.SetupFile(cfg.LoggingConfig())
	if err != nil {
		return err
	}
	defer closer.Close()

	redisClient, err := connectRedis(cfg)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	catalogClient, err := client.New(cfg.ClientConfig(redisClient))
	if err != nil {
		return fmt.Errorf("create catalog client: %w", err)
	}
	defer catalogClient.Close()

	if cfg.Catalog.APIKey == "" {
		logger.Warn().Msg("No API key configured, searches will fail as unauthorized")
	}

	logger.Info().
		Str("base_url", cfg.Catalog.BaseURL).
		Int("page_size", cfg.Catalog.PageSize).
		Bool("redis", redisClient != nil).
		Msg("Starting catalog picker")

	model := tui.New(tui.Config{
		Fetcher: catalogClient,
		Search:  cfg.SearchConfig(),
	})
	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}

	logger.Info().Msg("Catalog picker stopped")
	return nil
}

func newFlagSet(opts *options) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("catalog-picker", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "path to a TOML config file")
	flagSet.StringVar(&opts.apiKey, "api-key", "", "catalog API key (overrides CATALOG_API_KEY)")
	flagSet.StringVar(&opts.baseURL, "base-url", "", "catalog base URL")
	flagSet.StringVar(&opts.logFile, "log-file", defaultLogFile, "log file")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flagSet.StringVar(&opts.redisURL, "redis-url", "", "Redis address or URL for response caching")
	return flagSet
}

// applyFlags overrides cfg with the flags that were set on the command line.
// The log file flag also applies its default when no file is configured.
func applyFlags(cfg *config.Config, flagSet *pflag.FlagSet, opts options) error {
	if flagSet.Changed("api-key") {
		cfg.Catalog.APIKey = opts.apiKey
	}
	if flagSet.Changed("base-url") {
		cfg.Catalog.BaseURL = opts.baseURL
	}
	if flagSet.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if flagSet.Changed("redis-url") {
		cfg.Redis.URL = opts.redisURL
	}
	if flagSet.Changed("log-file") || cfg.Log.File == "" {
		cfg.Log.File = opts.logFile
	}
	return cfg.Validate()
}

// connectRedis returns nil when Redis is not configured. A configured but
// unreachable Redis is an error.
func connectRedis(cfg *config.Config) (*redis.Client, error) {
	redisOpts, err := cfg.RedisOptions()
	if err != nil || redisOpts == nil {
		return nil, err
	}

	redisClient := redis.NewClient(redisOpts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", redisOpts.Addr, err)
	}

	log.Info().Str("addr", redisOpts.Addr).Msg("Connected to Redis")
	return redisClient, nil
}
