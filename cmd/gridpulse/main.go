package main

import (
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/gridpulse/gridpulse/internal/cache"
	"github.com/gridpulse/gridpulse/internal/config"
	"github.com/gridpulse/gridpulse/internal/pipeline"
)

const (
	appName = "GridPulse"
	version = "v1.2.0"
)

var configPath string

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	rootCmd := &cobra.Command{
		Use:     "gridpulse",
		Short:   "Electricity interconnection monitoring pipeline",
		Version: version,
		Long: `GridPulse monitors European cross-border electricity flows,
detects surge/drop anomalies against rolling baselines, and generates
interconnection reports in markdown and PDF.`,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to YAML config file")

	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newAlertsCmd())
	rootCmd.AddCommand(newCacheCmd())
	rootCmd.AddCommand(newServeCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

// buildPipeline loads config and wires the cache backend chain and pipeline.
func buildPipeline() (*pipeline.Pipeline, *config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	backend, err := buildBackend(cfg)
	if err != nil {
		return nil, nil, err
	}

	manager := cache.NewManager(backend,
		cache.WithTTL(cfg.Cache.TTL()),
		cache.WithNamespace(cfg.Cache.Namespace),
	)
	return pipeline.New(cfg, manager), cfg, nil
}

func buildBackend(cfg *config.Config) (cache.Backend, error) {
	switch cfg.Cache.Backend {
	case "memory":
		return cache.NewMemory(), nil
	case "file", "":
		return cache.NewDisk(cfg.Cache.Dir)
	case "redis":
		local, err := cache.NewDisk(cfg.Cache.Dir)
		if err != nil {
			return nil, err
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			DB:       cfg.Cache.Redis.DB,
			Password: cfg.Cache.Redis.Password,
		})
		return cache.NewTiered(client, local, cfg.Cache.TTL()), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}
