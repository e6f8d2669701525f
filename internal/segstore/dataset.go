package segstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"

	"github.com/minqi/freedom/internal/contracts"
	"github.com/minqi/freedom/pkg/logger"
)

// Row is the contract every stored row kind satisfies: a (symbol, trade
// date) primary key.
type Row interface {
	Key() (tsCode, tradeDate string)
}

// Dataset manages the partitioned segment files for one row kind.
//
// Layout mirrors the hive convention:
//
//	<root>/ts_code=<code>/year=<year>/part-<hex>.parquet
//
// A partition (one symbol, one calendar year) holds one or more immutable
// segments. Appends only ever add segments; compaction replaces a
// partition's segments with a single merged one. Partitions are fully
// independent, so work across symbols or years needs no coordination.
// Within one partition callers must serialize writes.
type Dataset[T Row] struct {
	root string
	name string
	log  *logger.Logger
}

// OpenDataset binds a dataset to <dataDir>/<name>. No I/O happens until the
// first read or append, so a missing directory is fine on first run.
func OpenDataset[T Row](dataDir, name string, log *logger.Logger) *Dataset[T] {
	return &Dataset[T]{
		root: filepath.Join(dataDir, filepath.FromSlash(name)),
		name: name,
		log:  log,
	}
}

// Name returns the dataset name (e.g. "raw/daily").
func (d *Dataset[T]) Name() string {
	return d.name
}

// Append writes rows for one symbol, skipping every (symbol, trade date)
// key that already exists in the target partitions. Returns the number of
// net-new rows written; zero is success, not an error.
//
// The whole batch is rejected when it contains a duplicate key or a row for
// a different symbol. Existing keys are detected by reading the touched
// partitions filtered to the incoming date set, so the check scales with the
// batch, not with partition history.
func (d *Dataset[T]) Append(ctx context.Context, tsCode string, rows []T) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	byYear := make(map[string][]T)
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		code, date := row.Key()
		if code != tsCode {
			return 0, fmt.Errorf("%w: row for %s in batch for %s", contracts.ErrValidation, code, tsCode)
		}
		if _, dup := seen[date]; dup {
			return 0, fmt.Errorf("%w: duplicate key (%s, %s) in batch", contracts.ErrValidation, tsCode, date)
		}
		seen[date] = struct{}{}
		year := contracts.TradeDateYear(date)
		byYear[year] = append(byYear[year], row)
	}

	years := make([]string, 0, len(byYear))
	for year := range byYear {
		years = append(years, year)
	}
	sort.Strings(years)

	written := 0
	for _, year := range years {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		group := byYear[year]
		dir := d.partitionDir(tsCode, year)

		incoming := make(map[string]struct{}, len(group))
		for _, row := range group {
			_, date := row.Key()
			incoming[date] = struct{}{}
		}

		existing, err := d.existingDates(dir, incoming)
		if err != nil {
			return written, fmt.Errorf("read existing keys %s: %w", dir, err)
		}

		newRows := group[:0:0]
		for _, row := range group {
			_, date := row.Key()
			if _, ok := existing[date]; !ok {
				newRows = append(newRows, row)
			}
		}
		if len(newRows) == 0 {
			continue
		}

		sortRows(newRows)
		if err := d.writeSegment(dir, newRows); err != nil {
			return written, err
		}
		written += len(newRows)

		d.log.WithFields(map[string]interface{}{
			"dataset": d.name,
			"ts_code": tsCode,
			"year":    year,
			"rows":    len(newRows),
			"skipped": len(group) - len(newRows),
		}).Debug("Appended segment")
	}

	return written, nil
}

// Read returns every row stored for a symbol, ordered by trade date
// ascending. A symbol with no partitions yields an empty result.
func (d *Dataset[T]) Read(ctx context.Context, tsCode string) ([]T, error) {
	return d.ReadRange(ctx, tsCode, "", "")
}

// ReadRange returns the rows for a symbol within [start, end] (8-digit trade
// dates, both optional), ordered by trade date ascending.
func (d *Dataset[T]) ReadRange(ctx context.Context, tsCode, start, end string) ([]T, error) {
	dirs, err := d.partitionDirs(tsCode, "")
	if err != nil {
		return nil, err
	}

	var out []T
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		segments, err := segmentPaths(dir)
		if err != nil {
			return nil, err
		}
		for _, seg := range segments {
			rows, err := readSegment[T](seg)
			if err != nil {
				return nil, fmt.Errorf("read segment %s: %w", seg, err)
			}
			for _, row := range rows {
				code, date := row.Key()
				if code != tsCode {
					continue
				}
				if start != "" && date < start {
					continue
				}
				if end != "" && date > end {
					continue
				}
				out = append(out, row)
			}
		}
	}

	sortRows(out)
	return out, nil
}

// DropSymbol removes every partition of a symbol. Used by the indicator
// batch, which recalculates a symbol's full history from scratch.
func (d *Dataset[T]) DropSymbol(tsCode string) error {
	dir := filepath.Join(d.root, "ts_code="+tsCode)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	return os.RemoveAll(dir)
}

// existingDates reads a partition's segments and returns the subset of
// incoming dates already present.
func (d *Dataset[T]) existingDates(dir string, incoming map[string]struct{}) (map[string]struct{}, error) {
	existing := make(map[string]struct{})

	segments, err := segmentPaths(dir)
	if err != nil {
		return nil, err
	}
	for _, seg := range segments {
		rows, err := readSegment[T](seg)
		if err != nil {
			return nil, fmt.Errorf("read segment %s: %w", seg, err)
		}
		for _, row := range rows {
			_, date := row.Key()
			if _, ok := incoming[date]; ok {
				existing[date] = struct{}{}
			}
		}
	}

	return existing, nil
}

// writeSegment writes rows as one new immutable segment. The file appears
// under its final part-*.parquet name only after a completed write and
// rename, so readers never observe a partial segment.
func (d *Dataset[T]) writeSegment(dir string, rows []T) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create partition dir: %w", err)
	}

	token := uuid.New()
	tmp := filepath.Join(dir, fmt.Sprintf("incoming-%x.parquet", token[:]))
	final := filepath.Join(dir, fmt.Sprintf("part-%x.parquet", token[:]))

	if err := parquet.WriteFile(tmp, rows); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write segment: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publish segment: %w", err)
	}
	return nil
}

func (d *Dataset[T]) partitionDir(tsCode, year string) string {
	return filepath.Join(d.root, "ts_code="+tsCode, "year="+year)
}

// partitionDirs lists partition directories, optionally filtered to one
// symbol and/or one year, sorted for deterministic iteration.
func (d *Dataset[T]) partitionDirs(tsCode, year string) ([]string, error) {
	codeGlob := "ts_code=*"
	if tsCode != "" {
		codeGlob = "ts_code=" + tsCode
	}
	yearGlob := "year=*"
	if year != "" {
		yearGlob = "year=" + year
	}

	dirs, err := filepath.Glob(filepath.Join(d.root, codeGlob, yearGlob))
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}
	sort.Strings(dirs)

	out := dirs[:0]
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		out = append(out, dir)
	}
	return out, nil
}

// segmentPaths lists a partition's segments ordered oldest first, so that a
// later segment wins when compaction picks a duplicate key's survivor.
func segmentPaths(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "part-*.parquet"))
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}

	type segment struct {
		path  string
		mtime int64
	}
	segments := make([]segment, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat segment: %w", err)
		}
		segments = append(segments, segment{path: path, mtime: info.ModTime().UnixNano()})
	}
	sort.Slice(segments, func(i, j int) bool {
		if segments[i].mtime != segments[j].mtime {
			return segments[i].mtime < segments[j].mtime
		}
		return segments[i].path < segments[j].path
	})

	out := make([]string, len(segments))
	for i, seg := range segments {
		out[i] = seg.path
	}
	return out, nil
}

func readSegment[T Row](path string) ([]T, error) {
	return parquet.ReadFile[T](path)
}

func sortRows[T Row](rows []T) {
	sort.SliceStable(rows, func(i, j int) bool {
		_, di := rows[i].Key()
		_, dj := rows[j].Key()
		return di < dj
	})
}
