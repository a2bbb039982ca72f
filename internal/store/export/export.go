// Package export implements bulk part-key export and import as Parquet
// files.
//
// An export snapshots a shard's partition identities via ScanPartKeys; an
// import replays a file back through WritePartKeys. Together they support
// shard rebuilds and dataset migrations without touching chunk data.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/parquet-go/parquet-go"

	"github.com/yu-shipit/FiloDB-sub000/internal/logging"
	"github.com/yu-shipit/FiloDB-sub000/internal/store"
	"github.com/yu-shipit/FiloDB-sub000/internal/store/stream"
	"github.com/yu-shipit/FiloDB-sub000/internal/store/types"
)

// PartKeyRow is one part-key record in Parquet form.
type PartKeyRow struct {
	PartKey   []byte `parquet:"part_key,zstd"`
	StartTime int64  `parquet:"start_time"`
	EndTime   int64  `parquet:"end_time"`
	Shard     int32  `parquet:"shard"`
}

// RowToRecord converts a PartKeyRow to a PartKeyRecord.
func RowToRecord(r *PartKeyRow) types.PartKeyRecord {
	return types.PartKeyRecord{
		PartKey:   r.PartKey,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		Shard:     r.Shard,
	}
}

// RecordToRow converts a PartKeyRecord to a PartKeyRow.
func RecordToRow(rec *types.PartKeyRecord) PartKeyRow {
	return PartKeyRow{
		PartKey:   rec.PartKey,
		StartTime: rec.StartTime,
		EndTime:   rec.EndTime,
		Shard:     rec.Shard,
	}
}

// writeBatchSize bounds how many rows are staged before a writer flush.
const writeBatchSize = 1024

// ExportPartKeys snapshots all part keys of one shard to a Parquet file.
// Returns the number of records written.
func ExportPartKeys(ctx context.Context, cs store.ColumnStore, dataset types.DatasetRef, shard int32, path string) (int64, error) {
	it, err := cs.ScanPartKeys(ctx, dataset, shard)
	if err != nil {
		return 0, fmt.Errorf("scan part keys: %w", err)
	}
	defer it.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}

	writer := parquet.NewGenericWriter[PartKeyRow](f, parquet.Compression(&parquet.Zstd))

	var total int64
	batch := make([]PartKeyRow, 0, writeBatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := writer.Write(batch); err != nil {
			return fmt.Errorf("write rows: %w", err)
		}
		total += int64(len(batch))
		batch = batch[:0]
		return nil
	}

	for it.Next() {
		rec := it.Record()
		batch = append(batch, RecordToRow(&rec))
		if len(batch) >= writeBatchSize {
			if err := flush(); err != nil {
				f.Close()
				return 0, err
			}
		}
	}
	if err := it.Err(); err != nil {
		f.Close()
		return 0, fmt.Errorf("scan part keys: %w", err)
	}
	if err := flush(); err != nil {
		f.Close()
		return 0, err
	}

	if err := writer.Close(); err != nil {
		f.Close()
		return 0, fmt.Errorf("close writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close file: %w", err)
	}

	logging.Component("export").Info("part keys exported",
		"dataset", dataset.String(), "shard", shard, "records", total, "path", path)
	return total, nil
}

// ImportPartKeys replays an exported file through WritePartKeys. The
// records land with the given TTL and update hour; updateTable mirrors
// them into the hour-bucketed update log.
func ImportPartKeys(ctx context.Context, sink store.ChunkSink, dataset types.DatasetRef, shard int32, path string,
	ttlSeconds int, updateHour int64, updateTable bool, queueCapacity int) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	reader := parquet.NewGenericReader[PartKeyRow](f)
	defer reader.Close()

	keys := stream.New[types.PartKeyRecord](queueCapacity)

	// Producer feeds the sink under the stream's own backpressure.
	var total atomic.Int64
	go func() {
		rows := make([]PartKeyRow, writeBatchSize)
		for {
			n, readErr := reader.Read(rows)
			for i := 0; i < n; i++ {
				if err := keys.Send(ctx, RowToRecord(&rows[i])); err != nil {
					keys.Fail(err)
					return
				}
				total.Add(1)
			}
			if readErr != nil {
				if errors.Is(readErr, io.EOF) {
					keys.Close()
					return
				}
				keys.Fail(fmt.Errorf("read rows: %w", readErr))
				return
			}
		}
	}()

	if err := sink.WritePartKeys(ctx, dataset, shard, keys, ttlSeconds, updateHour, updateTable); err != nil {
		return 0, fmt.Errorf("write part keys: %w", err)
	}

	logging.Component("export").Info("part keys imported",
		"dataset", dataset.String(), "shard", shard, "records", total.Load(), "path", path)
	return total.Load(), nil
}
