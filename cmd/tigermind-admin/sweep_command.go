package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tech-Dev-Skill/tiger-mind/pkg/storage"
)

func newSweepStagingCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "sweep-staging",
		Short: "Remove abandoned partial uploads from the staging area",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			ttl := olderThan
			if ttl <= 0 {
				ttl = cfg.Videos.StagingTTL
			}
			store, err := storage.NewVideoStore(cfg.Videos.StorageDir, cfg.Videos.PublicPrefix)
			if err != nil {
				return err
			}
			removed, err := store.SweepStaging(ttl)
			for _, name := range removed {
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", name)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d staged files removed\n", len(removed))
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Minimum age of staged files to remove (defaults to VIDEO_STAGING_TTL)")
	return cmd
}
