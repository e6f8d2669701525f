package jobs

import (
	"context"
	"fmt"

	"github.com/minqi/freedom/internal/segstore"
	"github.com/minqi/freedom/pkg/logger"
)

// CompactionJob merges multi-segment partitions in the bar store back
// into single segments. Append-heavy weeks leave one segment per pull
// behind, which slows reads until compaction folds them together.
type CompactionJob struct {
	store  *segstore.Store
	logger *logger.Logger
}

// NewCompactionJob creates the weekly compaction job.
func NewCompactionJob(store *segstore.Store, log *logger.Logger) *CompactionJob {
	return &CompactionJob{
		store:  store,
		logger: log,
	}
}

// Name returns the job name.
func (j *CompactionJob) Name() string {
	return "compaction"
}

// Schedule runs early Saturday morning, outside trading hours.
func (j *CompactionJob) Schedule() string {
	return "0 0 3 * * SAT"
}

// Run compacts every bar partition.
func (j *CompactionJob) Run(ctx context.Context) error {
	result, err := j.store.CompactBars(ctx, "", "")
	if err != nil {
		return fmt.Errorf("compact bars: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"partitions": result.Partitions,
		"compacted":  result.Compacted,
		"removed":    result.SegmentsRemoved,
		"written":    result.SegmentsWritten,
	}).Info("Compaction finished")

	return nil
}
