package main

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"voicecast/internal/daemon"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage generation jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newJobsListCommand(ctx))
	cmd.AddCommand(newJobsShowCommand(ctx))
	cmd.AddCommand(newJobsCancelCommand(ctx))
	cmd.AddCommand(newJobsRetryCommand(ctx))
	return cmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List generation jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/jobs"
			if statusFilter != "" {
				path += "?status=" + statusFilter
			}

			var resp daemon.JobListResponse
			if err := ctx.doJSON(http.MethodGet, path, nil, &resp); err != nil {
				return err
			}
			if len(resp.Jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no jobs")
				return nil
			}

			rows := make([][]string, 0, len(resp.Jobs))
			for _, job := range resp.Jobs {
				rows = append(rows, []string{
					strconv.FormatInt(job.ID, 10),
					strconv.FormatInt(job.EpisodeID, 10),
					job.Status,
					fmt.Sprintf("%d%%", job.Progress),
					fmt.Sprintf("%d/%d", job.CompletedSegments, job.TotalSegments),
					job.CreatedAt.Local().Format(time.DateTime),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Episode", "Status", "Progress", "Segments", "Created"},
				rows,
				[]columnAlignment{alignRight, alignRight, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Filter by status (queued, running, succeeded, failed, canceled)")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job with its audio assets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}

			var resp daemon.JobResponse
			if err := ctx.doJSON(http.MethodGet, fmt.Sprintf("/api/jobs/%d", id), nil, &resp); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			job := resp.Job
			fmt.Fprintf(out, "Job %d (episode %d)\n", job.ID, job.EpisodeID)
			fmt.Fprintf(out, "  Status:   %s\n", job.Status)
			fmt.Fprintf(out, "  Progress: %d%% (%d/%d segments)\n", job.Progress, job.CompletedSegments, job.TotalSegments)
			if job.ErrorMessage != "" {
				fmt.Fprintf(out, "  Error:    %s\n", job.ErrorMessage)
			}
			if job.StartedAt != nil {
				fmt.Fprintf(out, "  Started:  %s\n", job.StartedAt.Local().Format(time.DateTime))
			}
			if job.CompletedAt != nil {
				fmt.Fprintf(out, "  Finished: %s\n", job.CompletedAt.Local().Format(time.DateTime))
			}

			if len(resp.Assets) > 0 {
				rows := make([][]string, 0, len(resp.Assets))
				for _, asset := range resp.Assets {
					segment := ""
					if asset.SegmentIndex >= 0 {
						segment = strconv.Itoa(asset.SegmentIndex)
					}
					rows = append(rows, []string{
						asset.Type,
						segment,
						fmt.Sprintf("%.1f KiB", float64(asset.SizeBytes)/1024),
						fmt.Sprintf("%.1fs", float64(asset.DurationMS)/1000),
						asset.URL,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Type", "Segment", "Size", "Duration", "URL"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
				))
			}
			return nil
		},
	}
}

func newJobsCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a queued or running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}

			var resp daemon.JobResponse
			if err := ctx.doJSON(http.MethodPost, fmt.Sprintf("/api/jobs/%d/cancel", id), nil, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "job %d canceled\n", resp.Job.ID)
			return nil
		},
	}
}

func newJobsRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Schedule a new run for a failed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}

			var resp daemon.ScheduleResponse
			if err := ctx.doJSON(http.MethodPost, fmt.Sprintf("/api/jobs/%d/retry", id), nil, &resp); err != nil {
				return err
			}
			if resp.Message != "" {
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "job %d %s\n", resp.Job.ID, resp.Job.Status)
			return nil
		},
	}
}
