package cli

import (
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"tfl-lake/internal/domain"
	"tfl-lake/internal/service/pipeline"
)

func newBronzeCmd(opts *rootOptions) *cobra.Command {
	var schedule string

	cmd := &cobra.Command{
		Use:   "bronze",
		Short: "Run every bronze job in order and validate the tables",
		Long: "Run the bronze pipeline once: each job processes the files available\n" +
			"now under the job timeout, the first failure aborts the run, and every\n" +
			"table must be non-empty afterwards. With --schedule the command stays\n" +
			"in the foreground and triggers a run on the cron schedule.",
		Example: "  tfl bronze\n  tfl bronze --schedule '*/15 * * * *'",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.connectedApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			if schedule != "" {
				sched := pipeline.NewScheduler(a.Orchestrator, a.Logger)
				if err := sched.Add(schedule); err != nil {
					return err
				}
				sched.Start(ctx)
				<-ctx.Done()
				sched.Stop()
				return nil
			}

			run, runErr := a.Orchestrator.RunBronze(ctx, domain.TriggerTypeManual)
			if run != nil {
				if err := render(cmd, runToOutput(*run), func(w io.Writer) { printRun(w, run) }); err != nil {
					return err
				}
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&schedule, "schedule", "", "Cron expression (5 fields or @every/@hourly descriptors)")
	return cmd
}

type runOutput struct {
	ID           string         `json:"id"`
	Pipeline     string         `json:"pipeline"`
	Environment  string         `json:"environment"`
	Status       string         `json:"status"`
	TriggerType  string         `json:"trigger_type"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	FinishedAt   *time.Time     `json:"finished_at,omitempty"`
	ErrorMessage *string        `json:"error_message,omitempty"`
	Jobs         []jobRunOutput `json:"jobs,omitempty"`
}

type jobRunOutput struct {
	Job            string  `json:"job"`
	Table          string  `json:"table"`
	Status         string  `json:"status"`
	FilesProcessed int     `json:"files_processed"`
	RowsAppended   int64   `json:"rows_appended"`
	RowCount       *int64  `json:"row_count,omitempty"`
	ErrorMessage   *string `json:"error_message,omitempty"`
}

func runToOutput(r domain.PipelineRun) runOutput {
	out := runOutput{
		ID:           r.ID,
		Pipeline:     r.Pipeline,
		Environment:  r.Environment,
		Status:       r.Status,
		TriggerType:  r.TriggerType,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
		ErrorMessage: r.ErrorMessage,
	}
	for _, jr := range r.Jobs {
		out.Jobs = append(out.Jobs, jobRunOutput{
			Job:            jr.JobName,
			Table:          jr.TargetTable,
			Status:         jr.Status,
			FilesProcessed: jr.FilesProcessed,
			RowsAppended:   jr.RowsAppended,
			RowCount:       jr.RowCount,
			ErrorMessage:   jr.ErrorMessage,
		})
	}
	return out
}

func printRun(w io.Writer, r *domain.PipelineRun) {
	PrintDetail(w, map[string]any{
		"id":           r.ID,
		"environment":  r.Environment,
		"status":       r.Status,
		"trigger_type": r.TriggerType,
		"started_at":   r.StartedAt,
		"finished_at":  r.FinishedAt,
		"error":        r.ErrorMessage,
	})
	if len(r.Jobs) == 0 {
		return
	}
	_, _ = io.WriteString(w, "\n")
	rows := make([][]string, 0, len(r.Jobs))
	for _, jr := range r.Jobs {
		rows = append(rows, []string{
			jr.JobName,
			jr.TargetTable,
			jr.Status,
			strconv.Itoa(jr.FilesProcessed),
			strconv.FormatInt(jr.RowsAppended, 10),
			formatValue(jr.RowCount),
			formatValue(jr.ErrorMessage),
		})
	}
	PrintTable(w, []string{"job", "table", "status", "files", "rows_appended", "row_count", "error"}, rows)
}
