package ingestion

import (
	"sort"

	"tfl-lake/internal/config"
	"tfl-lake/internal/domain"
	"tfl-lake/internal/lakepath"
)

// DefaultMaxFilesPerTrigger bounds the files read by one micro-batch.
const DefaultMaxFilesPerTrigger = 1

// feeds lists the raw TfL feeds in orchestration order.
var feeds = []struct {
	name   string
	format domain.FileFormat
}{
	{"arrivals", domain.FileFormatJSON},
	{"lines", domain.FileFormatJSON},
	{"stops", domain.FileFormatJSON},
	{"boroughs", domain.FileFormatJSON},
}

// Feeds returns the feed names in orchestration order.
func Feeds() []string {
	names := make([]string, len(feeds))
	for i, f := range feeds {
		names[i] = f.name
	}
	return names
}

// TableName returns the bronze table a feed lands in.
func TableName(feed string) string { return feed + "_bz" }

// BronzeJobs derives the job descriptor of every feed from the environment's
// paths.
func BronzeJobs(paths *lakepath.Builder) []domain.IngestionJob {
	jobs := make([]domain.IngestionJob, 0, len(feeds))
	for _, f := range feeds {
		table := TableName(f.name)
		jobs = append(jobs, domain.IngestionJob{
			Name:               f.name,
			SourceSubdir:       f.name,
			TargetSchema:       paths.Schema(config.LayerBronze),
			TargetTable:        table,
			Format:             f.format,
			CheckpointPath:     paths.CheckpointPath(table),
			SchemaPath:         paths.SchemaTrackingPath(table),
			MaxFilesPerTrigger: DefaultMaxFilesPerTrigger,
			SchemaEvolution:    domain.SchemaEvolutionAddNewColumns,
		})
	}
	return jobs
}

// JobByName returns the job for feed, or a *domain.NotFoundError listing
// the known feeds.
func JobByName(jobs []domain.IngestionJob, feed string) (domain.IngestionJob, error) {
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		if j.Name == feed {
			return j, nil
		}
		names = append(names, j.Name)
	}
	sort.Strings(names)
	return domain.IngestionJob{}, domain.ErrNotFound("unknown feed %q; known feeds: %v", feed, names)
}
