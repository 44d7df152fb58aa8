package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/blackmichael/music-feeds/internal/domain"
	"github.com/blackmichael/music-feeds/internal/firehose"
	"github.com/blackmichael/music-feeds/internal/httpserver"
	"github.com/blackmichael/music-feeds/internal/linkfinder"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	commitQueueSize = 256
	cleanupInterval = time.Minute
	shutdownTimeout = 10 * time.Second
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Ingest the firehose and serve the feed (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), v, cmd.OutOrStdout())
		},
	}
}

func runServe(parent context.Context, v *viper.Viper, out io.Writer) error {
	cfg, err := loadConfig(v, true)
	if err != nil {
		return err
	}
	logger := newLogger(out, cfg)

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	repo, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close()
	logger.Info("connected to database")

	feedService, err := domain.NewFeedService(
		domain.FeedConfigs(cfg.PublisherDID),
		repo, repo, repo,
		linkfinder.Default(),
		logger,
	)
	if err != nil {
		return fmt.Errorf("create feed service: %w", err)
	}

	processor := firehose.NewProcessor(feedService, logger)
	dispatcher := firehose.NewDispatcher(processor, cfg.Workers, commitQueueSize, logger)
	dispatcher.Start(ctx)

	subscriber := firehose.NewSubscriber(cfg.FirehoseURL, feedService, dispatcher, logger)
	subscriberDone := make(chan struct{})
	go func() {
		defer close(subscriberDone)
		if err := subscriber.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("firehose subscriber exited with error", "error", err)
		}
	}()

	go feedService.StartCleanupJob(ctx, cleanupInterval, cfg.PostMaxAge, cfg.PostMaxRows)

	server := httpserver.NewServer(cfg, feedService, logger)
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	logger.Info("server started",
		"port", cfg.Port,
		"hostname", cfg.Hostname,
		"feeds", feedService.FeedURIs(),
	)

	select {
	case <-ctx.Done():
		logger.Info("received signal, shutting down")
	case err = <-serverErr:
		logger.Error("http server exited with error", "error", err)
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	<-subscriberDone
	dispatcher.Close()
	logger.Info("shutdown complete", "matched_posts", processor.Matched())

	if err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
