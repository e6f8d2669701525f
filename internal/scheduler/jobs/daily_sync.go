// Package jobs holds the concrete scheduled jobs: the nightly data
// sync, indicator recomputation and segment compaction.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/minqi/freedom/internal/catalog"
	"github.com/minqi/freedom/internal/ingest"
	"github.com/minqi/freedom/pkg/logger"
)

// DailySyncJob refreshes the symbol catalog and pulls the day's bars,
// adjustment factors and price limits for the main-board universe.
type DailySyncJob struct {
	ingest  *ingest.Service
	catalog *catalog.Repository
	logger  *logger.Logger
}

// NewDailySyncJob creates the nightly sync job.
func NewDailySyncJob(svc *ingest.Service, cat *catalog.Repository, log *logger.Logger) *DailySyncJob {
	return &DailySyncJob{
		ingest:  svc,
		catalog: cat,
		logger:  log,
	}
}

// Name returns the job name.
func (j *DailySyncJob) Name() string {
	return "daily_sync"
}

// Schedule runs after the exchange close, weekday evenings.
func (j *DailySyncJob) Schedule() string {
	return "0 0 18 * * MON-FRI"
}

// Run executes the sync.
func (j *DailySyncJob) Run(ctx context.Context) error {
	if _, err := j.ingest.SyncBasic(ctx); err != nil {
		return fmt.Errorf("sync basic: %w", err)
	}

	codes, err := j.catalog.ListTsCodes(ctx, catalog.MainBoardPrefixes)
	if err != nil {
		return fmt.Errorf("list universe: %w", err)
	}
	if len(codes) == 0 {
		j.logger.Warn("Daily sync found an empty universe")
		return nil
	}

	today := time.Now().Format("20060102")
	results, err := j.ingest.PullDaily(ctx, codes, today, today, ingest.Config{})
	if err != nil {
		return fmt.Errorf("pull daily: %w", err)
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("daily pull failed for %d of %d symbols", failed, len(results))
	}

	return nil
}
