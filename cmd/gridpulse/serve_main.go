package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gridpulse/gridpulse/internal/httpapi"
	"github.com/gridpulse/gridpulse/internal/pipeline"
)

func newServeCmd() *cobra.Command {
	var (
		listen       string
		warmInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with background cache warming",
		RunE: func(cmd *cobra.Command, args []string) error {
			pipe, cfg, err := buildPipeline()
			if err != nil {
				return err
			}
			if listen == "" {
				listen = cfg.HTTP.Listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			go runWarmLoop(ctx, pipe, warmInterval)

			server := httpapi.NewServer(pipe, listen)
			return server.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (default from config)")
	cmd.Flags().DurationVar(&warmInterval, "warm-interval", 5*time.Minute, "How often to check for stale cache entries")
	return cmd
}

func runWarmLoop(ctx context.Context, pipe *pipeline.Pipeline, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if warmed := pipe.Warmer().WarmCache(ctx); warmed > 0 {
				log.Info().Int("warmed", warmed).Msg("Background warm pass refreshed entries")
			}
		}
	}
}
