package main

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"voicecast/internal/daemon"
	"voicecast/internal/jobs"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "generate <episode-id>",
		Short: "Schedule audio generation for an episode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			episodeID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || episodeID <= 0 {
				return fmt.Errorf("invalid episode id %q", args[0])
			}

			var resp daemon.ScheduleResponse
			if err := ctx.doJSON(http.MethodPost, "/api/jobs",
				map[string]int64{"episodeId": episodeID}, &resp); err != nil {
				return err
			}

			if resp.Message != "" {
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "job %d %s (episode %d, %d segments)\n",
				resp.Job.ID, resp.Job.Status, resp.Job.EpisodeID, resp.Job.TotalSegments)

			if !wait {
				return nil
			}
			return waitForJob(cmd, ctx, resp.Job.ID)
		},
	}

	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Stream progress until the job finishes")
	return cmd
}

// waitForJob follows the daemon's websocket progress stream and renders a
// progress bar until the job reaches a terminal state.
func waitForJob(cmd *cobra.Command, ctx *commandContext, jobID int64) error {
	base, err := ctx.apiBaseURL()
	if err != nil {
		return err
	}
	wsURL := "ws" + strings.TrimPrefix(base, "http") + fmt.Sprintf("/api/jobs/%d/stream", jobID)

	conn, resp, err := websocket.DefaultDialer.DialContext(cmd.Context(), wsURL, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return fmt.Errorf("connect progress stream: %w", err)
	}
	defer conn.Close()

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription(fmt.Sprintf("job %d", jobID)),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	var view daemon.JobView
	for {
		if err := conn.ReadJSON(&view); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				break
			}
			return fmt.Errorf("progress stream: %w", err)
		}
		_ = bar.Set(view.Progress)
		if jobs.Status(view.Status).IsTerminal() {
			break
		}
	}
	_ = bar.Finish()

	switch jobs.Status(view.Status) {
	case jobs.StatusSucceeded:
		fmt.Fprintf(cmd.OutOrStdout(), "job %d succeeded\n", jobID)
		return nil
	case jobs.StatusCanceled:
		fmt.Fprintf(cmd.OutOrStdout(), "job %d was canceled\n", jobID)
		return nil
	default:
		return fmt.Errorf("job %d %s: %s", jobID, view.Status, view.ErrorMessage)
	}
}
