package cli

import (
	"io"

	"github.com/spf13/cobra"

	"tfl-lake/internal/domain"
)

func newRunsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect bronze pipeline run history",
	}
	cmd.AddCommand(newRunsListCmd(opts))
	cmd.AddCommand(newRunsGetCmd(opts))
	return cmd
}

func newRunsListCmd(opts *rootOptions) *cobra.Command {
	var (
		status     string
		maxResults int
		pageToken  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pipelineName := domain.PipelineBronze
			filter := domain.PipelineRunFilter{
				Pipeline: &pipelineName,
				Page:     domain.PageRequest{MaxResults: maxResults, PageToken: pageToken},
			}
			if err := filter.Page.Validate(); err != nil {
				return err
			}

			a, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck
			if status != "" {
				filter.Status = &status
			}
			runs, total, err := a.Orchestrator.ListRuns(cmd.Context(), filter)
			if err != nil {
				return err
			}

			out := make([]runOutput, 0, len(runs))
			for _, r := range runs {
				out = append(out, runToOutput(r))
			}
			next := domain.NextPageToken(filter.Page.Offset(), filter.Page.Limit(), total)
			return render(cmd, map[string]any{
				"runs":            out,
				"total":           total,
				"next_page_token": next,
			}, func(w io.Writer) {
				rows := make([][]string, 0, len(runs))
				for _, r := range runs {
					rows = append(rows, []string{
						r.ID, r.Status, r.TriggerType,
						formatValue(r.StartedAt), formatValue(r.FinishedAt), formatValue(r.ErrorMessage),
					})
				}
				PrintTable(w, []string{"id", "status", "trigger", "started_at", "finished_at", "error"}, rows)
				if next != "" {
					_, _ = io.WriteString(w, "\nnext page: --page-token "+next+"\n")
				}
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (PENDING, RUNNING, SUCCESS, FAILED)")
	cmd.Flags().IntVar(&maxResults, "max-results", 20, "Page size")
	cmd.Flags().StringVar(&pageToken, "page-token", "", "Token from a previous page")
	return cmd
}

func newRunsGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <run-id>",
		Short: "Show one run with its job runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			run, err := a.Orchestrator.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return render(cmd, runToOutput(*run), func(w io.Writer) { printRun(w, run) })
		},
	}
}
