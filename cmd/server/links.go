package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/blackmichael/music-feeds/internal/domain"
	"github.com/blackmichael/music-feeds/internal/linkfinder"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newLinksCmd(v *viper.Viper) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "links",
		Short: "Print the most frequently shared music links",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 1 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}

			cfg, err := loadConfig(v, false)
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg)

			repo, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			svc, err := domain.NewFeedService(nil, repo, repo, repo, linkfinder.Default(), logger)
			if err != nil {
				return err
			}

			links, err := svc.TopLinks(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list links: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "COUNT\tSITE\tKIND\tFIRST SEEN\tURL")
			for _, l := range links {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
					l.MatchCount, l.Site, l.Kind, l.CreatedAt.Format(time.DateOnly), l.URL)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of links to print")
	return cmd
}
