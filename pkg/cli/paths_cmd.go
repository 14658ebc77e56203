package cli

import (
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"tfl-lake/internal/config"
	"tfl-lake/internal/domain"
	"tfl-lake/internal/lakepath"
	"tfl-lake/internal/service/ingestion"
)

type jobPaths struct {
	Job                string `json:"job"`
	Source             string `json:"source"`
	Target             string `json:"target"`
	Format             string `json:"format"`
	CheckpointPath     string `json:"checkpoint_path"`
	SchemaPath         string `json:"schema_path"`
	MaxFilesPerTrigger int    `json:"max_files_per_trigger"`
}

func newPathsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Show derived identifiers and storage locations for every bronze job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, cfg, err := opts.lakeConfig()
			if err != nil {
				return err
			}
			paths := lakepath.New(cfg)

			var out []jobPaths
			for _, job := range ingestion.BronzeJobs(paths) {
				out = append(out, jobPaths{
					Job:                job.Name,
					Source:             paths.StoragePath(config.LayerLanding, job.SourceSubdir),
					Target:             paths.TableIdentifier(job.TargetSchema, job.TargetTable),
					Format:             string(job.Format),
					CheckpointPath:     job.CheckpointPath,
					SchemaPath:         job.SchemaPath,
					MaxFilesPerTrigger: job.MaxFilesPerTrigger,
				})
			}

			return render(cmd, map[string]any{
				"landing_volume": paths.VolumeIdentifier(domain.LandingVolumeSchema, domain.LandingVolumeName),
				"jobs":           out,
			}, func(w io.Writer) {
				rows := make([][]string, 0, len(out))
				for _, p := range out {
					rows = append(rows, []string{p.Job, p.Target, p.Source, p.CheckpointPath, p.SchemaPath, strconv.Itoa(p.MaxFilesPerTrigger)})
				}
				PrintTable(w, []string{"job", "target", "source", "checkpoint", "schema", "max_files"}, rows)
			})
		},
	}
}
