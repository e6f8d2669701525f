package jobs

import (
	"context"
	"fmt"

	"github.com/minqi/freedom/internal/catalog"
	"github.com/minqi/freedom/internal/ingest"
	"github.com/minqi/freedom/pkg/logger"
)

// IndicatorJob recomputes stored indicators for the main-board
// universe from the bars pulled by the daily sync.
type IndicatorJob struct {
	ingest  *ingest.Service
	catalog *catalog.Repository
	logger  *logger.Logger
}

// NewIndicatorJob creates the indicator recomputation job.
func NewIndicatorJob(svc *ingest.Service, cat *catalog.Repository, log *logger.Logger) *IndicatorJob {
	return &IndicatorJob{
		ingest:  svc,
		catalog: cat,
		logger:  log,
	}
}

// Name returns the job name.
func (j *IndicatorJob) Name() string {
	return "indicators"
}

// Schedule runs an hour after the daily sync.
func (j *IndicatorJob) Schedule() string {
	return "0 0 19 * * MON-FRI"
}

// Run executes the recomputation.
func (j *IndicatorJob) Run(ctx context.Context) error {
	codes, err := j.catalog.ListTsCodes(ctx, catalog.MainBoardPrefixes)
	if err != nil {
		return fmt.Errorf("list universe: %w", err)
	}
	if len(codes) == 0 {
		j.logger.Warn("Indicator job found an empty universe")
		return nil
	}

	n, err := j.ingest.ComputeIndicators(ctx, codes, ingest.Config{})
	if err != nil {
		return fmt.Errorf("compute indicators: %w", err)
	}

	j.logger.WithField("computed", n).Info("Indicator job finished")
	return nil
}
