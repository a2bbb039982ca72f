package duckstore

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/yu-shipit/FiloDB-sub000/internal/errors"
	"github.com/yu-shipit/FiloDB-sub000/internal/store/stream"
	"github.com/yu-shipit/FiloDB-sub000/internal/store/types"
)

// bucketRangeSplit is a half-open range [start, end) of part-key buckets.
// Splits over the full bucket space are disjoint and collectively
// exhaustive because every part key maps to exactly one bucket.
type bucketRangeSplit struct {
	start int
	end   int
}

// Labels implements types.ScanSplit.
func (s bucketRangeSplit) Labels() map[string]string {
	return map[string]string{
		"bucket_start": fmt.Sprintf("%d", s.start),
		"bucket_end":   fmt.Sprintf("%d", s.end),
	}
}

// GetScanSplits divides the bucket space into splitsPerNode ranges.
func (s *Store) GetScanSplits(ctx context.Context, dataset types.DatasetRef, splitsPerNode int) ([]types.ScanSplit, error) {
	if splitsPerNode <= 0 {
		splitsPerNode = s.config.ScanSplitsPerNode
	}
	buckets := s.config.PartKeyBuckets
	if splitsPerNode > buckets {
		splitsPerNode = buckets
	}

	splits := make([]types.ScanSplit, 0, splitsPerNode)
	per := buckets / splitsPerNode
	extra := buckets % splitsPerNode
	start := 0
	for i := 0; i < splitsPerNode; i++ {
		width := per
		if i < extra {
			width++
		}
		splits = append(splits, bucketRangeSplit{start: start, end: start + width})
		start += width
	}
	return splits, nil
}

// ReadRawPartitions lazily yields one RawPartition per selected partition.
// Rows stream straight off a DuckDB cursor; nothing is buffered beyond the
// partition currently being assembled.
func (s *Store) ReadRawPartitions(ctx context.Context, dataset types.DatasetRef, maxChunkTime int64,
	partScan types.PartitionScan, chunkScan types.ChunkScan) (stream.RawPartitionIterator, error) {
	t := tablesFor(dataset)

	var where []string
	var args []any

	switch partScan.Kind {
	case types.ScanSinglePartition, types.ScanMultiPartition:
		if len(partScan.PartKeys) == 0 {
			return stream.EmptyRawPartitions(), nil
		}
		marks := make([]string, len(partScan.PartKeys))
		for i, pk := range partScan.PartKeys {
			marks[i] = "?"
			args = append(args, pk)
		}
		where = append(where, "part_key IN ("+strings.Join(marks, ", ")+")")
	case types.ScanAllPartitions:
		where = append(where, "shard = ?")
		args = append(args, partScan.Shard)
	case types.ScanBySplit:
		rng, ok := partScan.Split.(bucketRangeSplit)
		if !ok {
			return nil, errors.NewValidation("scan split", "not produced by this store")
		}
		where = append(where, "bucket >= ? AND bucket < ?")
		args = append(args, rng.start, rng.end)
	default:
		return nil, errors.NewValidation("partition scan", "unknown kind")
	}

	where = append(where, "start_ts <= ?")
	args = append(args, maxChunkTime)

	if chunkScan.TimeRange {
		where = append(where, "start_ts <= ? AND end_ts >= ?")
		args = append(args, chunkScan.EndTime, chunkScan.StartTime)
	}

	where = append(where, "expires_at > ?")
	args = append(args, time.Now().UnixMilli())

	query := "SELECT part_key, start_ts, column_id, data FROM " + t.chunks +
		" WHERE " + strings.Join(where, " AND ") +
		" ORDER BY part_key, start_ts, column_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query raw partitions")
	}
	return &rawPartitionRows{rows: rows}, nil
}

// rawPartitionRows groups ordered chunk rows into per-partition results.
type rawPartitionRows struct {
	rows *sql.Rows
	cur  types.RawPartition
	err  error
	done bool

	pending    pendingChunk
	hasPending bool
}

type pendingChunk struct {
	partKey []byte
	startTS int64
	data    []byte
}

func (it *rawPartitionRows) Next() bool {
	if it.err != nil || it.done {
		return false
	}
	if !it.hasPending && !it.fetch() {
		return false
	}

	part := types.RawPartition{PartKey: it.pending.partKey}
	for {
		n := len(part.ChunkSets)
		if n == 0 || part.ChunkSets[n-1].StartTime != it.pending.startTS {
			part.ChunkSets = append(part.ChunkSets, types.RawChunkSet{StartTime: it.pending.startTS})
			n++
		}
		set := &part.ChunkSets[n-1]
		set.Chunks = append(set.Chunks, it.pending.data)
		it.hasPending = false

		if !it.fetch() {
			if it.err != nil {
				return false
			}
			it.cur = part
			return true
		}
		if !bytes.Equal(it.pending.partKey, part.PartKey) {
			it.cur = part
			return true
		}
	}
}

// fetch pulls one row into pending. Returns false at end of data or on
// error.
func (it *rawPartitionRows) fetch() bool {
	if !it.rows.Next() {
		it.err = it.rows.Err()
		it.done = true
		it.rows.Close()
		return false
	}
	var p pendingChunk
	var columnID int32
	if err := it.rows.Scan(&p.partKey, &p.startTS, &columnID, &p.data); err != nil {
		it.err = err
		it.done = true
		it.rows.Close()
		return false
	}
	it.pending = p
	it.hasPending = true
	return true
}

func (it *rawPartitionRows) Partition() types.RawPartition { return it.cur }
func (it *rawPartitionRows) Err() error                    { return it.err }

func (it *rawPartitionRows) Close() error {
	it.done = true
	return it.rows.Close()
}

// ScanPartKeys enumerates every live partition identity for a shard.
func (s *Store) ScanPartKeys(ctx context.Context, dataset types.DatasetRef, shard int32) (stream.PartKeyIterator, error) {
	t := tablesFor(dataset)
	rows, err := s.db.QueryContext(ctx,
		"SELECT part_key, start_ts, end_ts, shard FROM "+t.partKeys+" WHERE shard = ? AND expires_at > ? ORDER BY part_key",
		shard, time.Now().UnixMilli())
	if err != nil {
		return nil, errors.Wrap(err, "scan part keys")
	}
	return &partKeyRows{rows: rows}, nil
}

// GetPartKeysByUpdateHour enumerates the partitions updated within the
// given hour bucket on a shard.
func (s *Store) GetPartKeysByUpdateHour(ctx context.Context, dataset types.DatasetRef, shard int32, updateHour int64) (stream.PartKeyIterator, error) {
	t := tablesFor(dataset)
	rows, err := s.db.QueryContext(ctx,
		"SELECT part_key, start_ts, end_ts, shard FROM "+t.partKeysByHour+
			" WHERE shard = ? AND update_hour = ? AND expires_at > ? ORDER BY part_key",
		shard, updateHour, time.Now().UnixMilli())
	if err != nil {
		return nil, errors.Wrap(err, "scan part keys by update hour")
	}
	return &partKeyRows{rows: rows}, nil
}

// GetUpdatedPartKeysByTimeBucket is the public read path for downstream
// consumers, identical in semantics to GetPartKeysByUpdateHour.
func (s *Store) GetUpdatedPartKeysByTimeBucket(ctx context.Context, dataset types.DatasetRef, shard int32, updateHour int64) (stream.PartKeyIterator, error) {
	return s.GetPartKeysByUpdateHour(ctx, dataset, shard, updateHour)
}

// partKeyRows adapts a DuckDB cursor to a PartKeyIterator.
type partKeyRows struct {
	rows *sql.Rows
	cur  types.PartKeyRecord
	err  error
	done bool
}

func (it *partKeyRows) Next() bool {
	if it.err != nil || it.done {
		return false
	}
	if !it.rows.Next() {
		it.err = it.rows.Err()
		it.done = true
		it.rows.Close()
		return false
	}
	var rec types.PartKeyRecord
	if err := it.rows.Scan(&rec.PartKey, &rec.StartTime, &rec.EndTime, &rec.Shard); err != nil {
		it.err = err
		it.done = true
		it.rows.Close()
		return false
	}
	it.cur = rec
	return true
}

func (it *partKeyRows) Record() types.PartKeyRecord { return it.cur }
func (it *partKeyRows) Err() error                  { return it.err }

func (it *partKeyRows) Close() error {
	it.done = true
	return it.rows.Close()
}
