package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/blackmichael/music-feeds/internal/bluesky"
	"github.com/blackmichael/music-feeds/internal/domain"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newPublishCmd(v *viper.Viper) *cobra.Command {
	var (
		displayName string
		description string
		unpublish   bool
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish or remove the music feed generator record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v, false)
			if err != nil {
				return err
			}

			handle, password := v.GetString("bluesky_handle"), v.GetString("bluesky_app_password")
			if handle == "" || password == "" {
				return errors.New("--handle and --password are required (or set BLUESKY_HANDLE and BLUESKY_APP_PASSWORD)")
			}

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			client := bluesky.NewClient(v.GetString("bluesky_pds"))

			if err := client.Login(ctx, handle, password); err != nil {
				return err
			}
			fmt.Fprintf(out, "authenticated as %s\n", client.DID())

			if unpublish {
				if err := client.UnpublishFeed(ctx, domain.AlgorithmMusic); err != nil {
					return err
				}
				fmt.Fprintf(out, "feed unpublished: %s\n", domain.NewFeedConfig(client.DID(), domain.AlgorithmMusic).URI)
				return nil
			}

			uri, err := client.PublishFeed(ctx, domain.AlgorithmMusic, bluesky.GeneratorRecord{
				DID:         cfg.ServiceDID(),
				DisplayName: displayName,
				Description: description,
				CreatedAt:   time.Now().UTC().Format(time.RFC3339),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "feed published: %s\n", uri)
			if cfg.PublisherDID != "" && cfg.PublisherDID != client.DID() {
				fmt.Fprintf(out, "warning: FEEDGEN_PUBLISHER_DID is %s, serve will not answer for this feed\n", cfg.PublisherDID)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.String("handle", "", "account handle (BLUESKY_HANDLE)")
	flags.String("password", "", "app password (BLUESKY_APP_PASSWORD)")
	flags.String("pds", bluesky.DefaultPDS, "PDS URL (BLUESKY_PDS)")
	flags.StringVar(&displayName, "name", "Music", "feed display name")
	flags.StringVar(&description, "description", "Posts sharing Spotify and Bandcamp links", "feed description")
	flags.BoolVar(&unpublish, "unpublish", false, "delete the feed generator record instead")

	_ = v.BindPFlag("bluesky_handle", flags.Lookup("handle"))
	_ = v.BindPFlag("bluesky_app_password", flags.Lookup("password"))
	_ = v.BindPFlag("bluesky_pds", flags.Lookup("pds"))
	_ = v.BindEnv("bluesky_handle", "BLUESKY_HANDLE")
	_ = v.BindEnv("bluesky_app_password", "BLUESKY_APP_PASSWORD")
	_ = v.BindEnv("bluesky_pds", "BLUESKY_PDS")
	return cmd
}
