package cli

import (
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"tfl-lake/internal/domain"
)

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var (
		all        bool
		continuous bool
		interval   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ingest [feed]",
		Short: "Ingest raw files of one feed, or all feeds, into bronze tables",
		Long: "Ingest new landing files into bronze tables. By default every file\n" +
			"present at start is processed and the command exits. With --continuous\n" +
			"one micro-batch runs per interval until interrupted.",
		Example: "  tfl ingest arrivals\n  tfl ingest --all\n  tfl ingest --all --continuous --interval 10s",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return errors.New("specify exactly one feed or --all")
			}

			a, err := opts.connectedApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			if interval == 0 {
				interval = a.Settings.ProcessingTime
			}
			trigger := domain.TriggerFor(!continuous, interval)

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			var results []*domain.StreamResult
			if all {
				results, err = a.Ingestion.RunAll(ctx, trigger)
			} else {
				job, jerr := a.Ingestion.Job(args[0])
				if jerr != nil {
					return jerr
				}
				var res *domain.StreamResult
				res, err = a.Ingestion.Run(ctx, job, trigger)
				if res != nil {
					results = append(results, res)
				}
			}
			if err != nil {
				return err
			}
			out := make([]streamOutput, 0, len(results))
			for _, r := range results {
				if r != nil {
					out = append(out, toStreamOutput(r))
				}
			}
			return render(cmd, out, func(w io.Writer) { printStreamResults(w, out) })
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Ingest every feed concurrently")
	cmd.Flags().BoolVar(&continuous, "continuous", false, "Keep running one micro-batch per interval")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Micro-batch interval with --continuous (default PROCESSING_INTERVAL)")
	return cmd
}

type streamOutput struct {
	Job            string `json:"job"`
	Table          string `json:"table"`
	Batches        int    `json:"batches"`
	FilesProcessed int    `json:"files_processed"`
	RowsAppended   int64  `json:"rows_appended"`
	Recovered      bool   `json:"recovered"`

	Commits []batchOutput `json:"commits,omitempty"`
}

type batchOutput struct {
	BatchID        int64    `json:"batch_id"`
	Files          []string `json:"files"`
	RowsAppended   int64    `json:"rows_appended"`
	AddedColumns   []string `json:"added_columns,omitempty"`
	RescuedColumns []string `json:"rescued_columns,omitempty"`
}

func toStreamOutput(r *domain.StreamResult) streamOutput {
	out := streamOutput{
		Job:            r.Job,
		Table:          r.Table,
		Batches:        r.Batches,
		FilesProcessed: r.FilesProcessed,
		RowsAppended:   r.RowsAppended,
		Recovered:      r.Recovered,
	}
	for _, b := range r.Commits {
		out.Commits = append(out.Commits, batchOutput(b))
	}
	return out
}

func printStreamResults(w io.Writer, results []streamOutput) {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.Job,
			r.Table,
			strconv.Itoa(r.Batches),
			strconv.Itoa(r.FilesProcessed),
			strconv.FormatInt(r.RowsAppended, 10),
			strconv.FormatBool(r.Recovered),
		})
	}
	PrintTable(w, []string{"job", "table", "batches", "files", "rows", "recovered"}, rows)
}
