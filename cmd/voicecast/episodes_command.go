package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"voicecast/internal/episodes"
)

func newEpisodesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "episodes",
		Short: "Manage authored episodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newEpisodesImportCommand(ctx))
	cmd.AddCommand(newEpisodesListCommand(ctx))
	return cmd
}

func newEpisodesImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <script.json>",
		Short: "Import a JSON script as a new episode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open script: %w", err)
			}
			defer file.Close()

			store, err := episodes.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			episode, err := store.Import(cmd.Context(), file)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported episode %d: %s\n", episode.ID, episode.Title)
			return nil
		},
	}
}

func newEpisodesListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List episodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := episodes.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			list, err := store.ListEpisodes(cmd.Context())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no episodes")
				return nil
			}

			rows := make([][]string, 0, len(list))
			for _, episode := range list {
				rows = append(rows, []string{
					strconv.FormatInt(episode.ID, 10),
					episode.Title,
					string(episode.Status),
					episode.AudioURL,
					episode.CreatedAt.Local().Format(time.DateTime),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Title", "Status", "Audio", "Created"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}
