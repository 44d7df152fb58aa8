package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/blackmichael/music-feeds/internal/config"
	"github.com/blackmichael/music-feeds/internal/sqlstore"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// newRootCmd builds the musicfeed command tree. Running it with no
// subcommand serves the feed.
func newRootCmd() *cobra.Command {
	v := config.New()

	root := &cobra.Command{
		Use:           "musicfeed",
		Short:         "Bluesky feed generator for posts sharing music links",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), v, cmd.OutOrStdout())
		},
	}

	root.PersistentFlags().String("db", "", "SQLite path or postgres:// URL (overrides DATABASE_URL)")
	_ = v.BindPFlag("database_url", root.PersistentFlags().Lookup("db"))

	root.AddCommand(
		newServeCmd(v),
		newMigrateCmd(v),
		newLinksCmd(v),
		newPublishCmd(v),
	)
	return root
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
}

// openStore opens the configured database and applies the schema.
func openStore(ctx context.Context, cfg *config.Config) (*sqlstore.Repository, error) {
	repo, err := sqlstore.Open(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := repo.Migrate(ctx); err != nil {
		repo.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return repo, nil
}

func loadConfig(v *viper.Viper, requirePublisher bool) (*config.Config, error) {
	cfg, err := config.Load(v, requirePublisher)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
