package segstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"golang.org/x/sync/errgroup"

	"github.com/minqi/freedom/internal/contracts"
)

// CompactResult summarizes one compaction run across partitions.
type CompactResult struct {
	Partitions      int // matching partitions inspected
	Compacted       int // partitions actually rewritten
	SegmentsRemoved int
	SegmentsWritten int
}

// compactWorkers bounds the per-partition parallelism. Partitions are
// independent, so the only shared state is the result tally.
const compactWorkers = 4

// Compact merges every multi-segment partition matching the optional symbol
// and year filters into a single deduplicated segment ordered by trade date.
// Single-segment partitions are no-ops reporting zero removed.
//
// Per partition, the merged segment is written to a temp file, read back and
// checked against the expected distinct-key count, then renamed into place;
// the rename is the sole commit point and the original segments are deleted
// only after it. Any failure before the rename leaves the partition's
// original segments intact.
func (d *Dataset[T]) Compact(ctx context.Context, tsCode, year string) (CompactResult, error) {
	dirs, err := d.partitionDirs(tsCode, year)
	if err != nil {
		return CompactResult{}, err
	}

	var (
		mu     sync.Mutex
		result = CompactResult{Partitions: len(dirs)}
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(compactWorkers)

	for _, dir := range dirs {
		dir := dir
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			removed, err := d.compactPartition(dir)
			if err != nil {
				return fmt.Errorf("compact %s: %w", dir, err)
			}
			if removed == 0 {
				return nil
			}

			mu.Lock()
			result.Compacted++
			result.SegmentsRemoved += removed
			result.SegmentsWritten++
			mu.Unlock()

			d.log.WithFields(map[string]interface{}{
				"dataset":   d.name,
				"partition": dir,
				"removed":   removed,
				"written":   1,
			}).Info("Compacted partition")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}

	d.log.WithFields(map[string]interface{}{
		"dataset":    d.name,
		"partitions": result.Partitions,
		"compacted":  result.Compacted,
		"removed":    result.SegmentsRemoved,
		"written":    result.SegmentsWritten,
	}).Info("Compaction done")

	return result, nil
}

// compactPartition merges one partition. Returns the number of segments
// removed (zero when the partition already holds at most one segment).
func (d *Dataset[T]) compactPartition(dir string) (int, error) {
	segments, err := segmentPaths(dir)
	if err != nil {
		return 0, err
	}
	if len(segments) <= 1 {
		return 0, nil
	}

	// Merge all segments, newest segment winning on duplicate keys.
	total := 0
	survivors := make(map[string]T)
	for _, seg := range segments {
		rows, err := readSegment[T](seg)
		if err != nil {
			return 0, fmt.Errorf("read segment %s: %w", seg, err)
		}
		total += len(rows)
		for _, row := range rows {
			code, date := row.Key()
			survivors[code+"\x00"+date] = row
		}
	}

	if total > 0 && len(survivors) == 0 {
		return 0, fmt.Errorf("%w: dedupe of %d rows produced no survivors in %s",
			contracts.ErrIntegrity, total, dir)
	}

	merged := make([]T, 0, len(survivors))
	for _, row := range survivors {
		merged = append(merged, row)
	}
	sortRows(merged)

	token := uuid.New()
	tmp := filepath.Join(dir, fmt.Sprintf("compact-%x.parquet", token[:]))
	if err := parquet.WriteFile(tmp, merged); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("write merged segment: %w", err)
	}

	// Verify the merged segment before committing: the row count on disk
	// must equal the distinct-key count of the inputs.
	written, err := readSegment[T](tmp)
	if err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("verify merged segment: %w", err)
	}
	if len(written) != len(survivors) {
		os.Remove(tmp)
		return 0, fmt.Errorf("%w: merged segment holds %d rows, expected %d distinct keys in %s",
			contracts.ErrIntegrity, len(written), len(survivors), dir)
	}
	if total > 0 && len(written) == 0 {
		os.Remove(tmp)
		return 0, fmt.Errorf("%w: refusing to replace non-empty partition %s with empty segment",
			contracts.ErrIntegrity, dir)
	}

	// Commit point.
	final := filepath.Join(dir, "part-0000.parquet")
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("publish merged segment: %w", err)
	}

	removed := 0
	for _, seg := range segments {
		if seg == final {
			continue
		}
		if err := os.Remove(seg); err != nil {
			return removed, fmt.Errorf("remove old segment %s: %w", seg, err)
		}
		removed++
	}

	return removed, nil
}
