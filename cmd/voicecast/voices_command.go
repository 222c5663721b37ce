package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"voicecast/internal/providers"
)

func newVoicesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "voices",
		Short: "List available synthesis voices",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Voices []providers.Voice `json:"voices"`
			}
			if err := ctx.doJSON(http.MethodGet, "/api/voices", nil, &resp); err != nil {
				// Fall back to local configuration when no daemon is up.
				cfg, cfgErr := ctx.ensureConfig()
				if cfgErr != nil {
					return err
				}
				resp.Voices = providers.NewResolver(cfg).AvailableVoices()
			}

			if len(resp.Voices) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no voices available; configure a provider API key")
				return nil
			}

			rows := make([][]string, 0, len(resp.Voices))
			for _, voice := range resp.Voices {
				rows = append(rows, []string{voice.ID, voice.Label, voice.Gender, voice.Provider})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Label", "Gender", "Provider"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}
