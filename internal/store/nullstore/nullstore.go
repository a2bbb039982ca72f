// Package nullstore implements the full persistence contract against no
// storage at all. Every write is accepted and acknowledged synchronously,
// every read returns an empty sequence, and only statistics and per-dataset
// part-key counts are kept in memory.
//
// It serves as the conformance reference for the contract and as the sink
// for environments that intentionally discard data.
package nullstore

import (
	"context"
	"sync"
	"time"

	"github.com/yu-shipit/FiloDB-sub000/internal/logging"
	"github.com/yu-shipit/FiloDB-sub000/internal/store"
	"github.com/yu-shipit/FiloDB-sub000/internal/store/stats"
	"github.com/yu-shipit/FiloDB-sub000/internal/store/stream"
	"github.com/yu-shipit/FiloDB-sub000/internal/store/types"
)

// Store is the in-memory, discard-everything ColumnStore.
type Store struct {
	mu sync.Mutex

	// partKeyCounts tracks how many part-key records each dataset has
	// registered. Bookkeeping only; the records themselves are dropped.
	partKeyCounts map[types.DatasetRef]int64

	stats *stats.SinkStats
}

// compile-time contract check
var _ store.ColumnStore = (*Store)(nil)

// New creates a null store tagged with the given attribution labels.
func New(tags types.TagSet) *Store {
	return &Store{
		partKeyCounts: make(map[types.DatasetRef]int64),
		stats:         stats.New(tags),
	}
}

// Initialize is a no-op returning success.
func (s *Store) Initialize(ctx context.Context, dataset types.DatasetRef, numShards int, resources map[string]string) error {
	return nil
}

// WriteChunks drains the stream, recording statistics and firing each
// chunk set's listener immediately: acceptance is durability here.
// diskTTLSeconds is ignored, as nothing is stored.
func (s *Store) WriteChunks(ctx context.Context, dataset types.DatasetRef, chunks *store.ChunkStream, diskTTLSeconds int) error {
	for {
		select {
		case cs, ok := <-chunks.C():
			if !ok {
				return chunks.Err()
			}
			s.stats.RecordChunkSet(cs)
			cs.Invoke()
		case <-ctx.Done():
			chunks.Abandon(ctx.Err())
			return ctx.Err()
		}
	}
}

// WritePartKeys drains the stream, counting records per dataset.
func (s *Store) WritePartKeys(ctx context.Context, dataset types.DatasetRef, shard int32, keys *store.PartKeyStream,
	diskTTLSeconds int, updateHour int64, writeToUpdateTable bool) error {
	n, byteSize := 0, 0
	for {
		select {
		case rec, ok := <-keys.C():
			if !ok {
				s.stats.RecordPartKeys(n, byteSize)
				s.addPartKeys(dataset, int64(n))
				return keys.Err()
			}
			n++
			byteSize += rec.Bytes()
		case <-ctx.Done():
			keys.Abandon(ctx.Err())
			return ctx.Err()
		}
	}
}

// WritePartKeyUpdates drains the stream and records the publish outcome.
func (s *Store) WritePartKeyUpdates(ctx context.Context, dataset types.DatasetRef, epoch5mBucket, updatedTimeMs, offset int64,
	tags types.TagSet, keys *store.PartKeyStream) error {
	start := time.Now()
	for {
		select {
		case _, ok := <-keys.C():
			if !ok {
				err := keys.Err()
				s.stats.RecordUpdatePublish(time.Since(start), err)
				return err
			}
		case <-ctx.Done():
			keys.Abandon(ctx.Err())
			s.stats.RecordUpdatePublish(time.Since(start), ctx.Err())
			return ctx.Err()
		}
	}
}

// Truncate drops the in-memory part-key bookkeeping for the dataset.
func (s *Store) Truncate(ctx context.Context, dataset types.DatasetRef, numShards int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.partKeyCounts, dataset)
	return nil
}

// DropDataset is a no-op returning success.
func (s *Store) DropDataset(ctx context.Context, dataset types.DatasetRef, numShards int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.partKeyCounts, dataset)
	return nil
}

// Reset clears all in-memory bookkeeping.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partKeyCounts = make(map[types.DatasetRef]int64)
	logging.Component("nullstore").Debug("bookkeeping reset")
}

// Stats returns the write-path statistics recorder.
func (s *Store) Stats() *stats.SinkStats {
	return s.stats
}

// PartKeyCount returns the bookkept record count for a dataset.
func (s *Store) PartKeyCount(dataset types.DatasetRef) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.partKeyCounts[dataset]
}

func (s *Store) addPartKeys(dataset types.DatasetRef, n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partKeyCounts[dataset] += n
}

// ReadRawPartitions returns an empty sequence.
func (s *Store) ReadRawPartitions(ctx context.Context, dataset types.DatasetRef, maxChunkTime int64,
	partScan types.PartitionScan, chunkScan types.ChunkScan) (stream.RawPartitionIterator, error) {
	return stream.EmptyRawPartitions(), nil
}

// GetScanSplits returns a single split covering the (empty) data space.
func (s *Store) GetScanSplits(ctx context.Context, dataset types.DatasetRef, splitsPerNode int) ([]types.ScanSplit, error) {
	return []types.ScanSplit{wholeSplit{}}, nil
}

// ScanPartKeys returns an empty sequence.
func (s *Store) ScanPartKeys(ctx context.Context, dataset types.DatasetRef, shard int32) (stream.PartKeyIterator, error) {
	return stream.EmptyPartKeys(), nil
}

// GetPartKeysByUpdateHour returns an empty sequence.
func (s *Store) GetPartKeysByUpdateHour(ctx context.Context, dataset types.DatasetRef, shard int32, updateHour int64) (stream.PartKeyIterator, error) {
	return stream.EmptyPartKeys(), nil
}

// GetUpdatedPartKeysByTimeBucket returns an empty sequence.
func (s *Store) GetUpdatedPartKeysByTimeBucket(ctx context.Context, dataset types.DatasetRef, shard int32, updateHour int64) (stream.PartKeyIterator, error) {
	return stream.EmptyPartKeys(), nil
}

// wholeSplit is the null store's single scan split.
type wholeSplit struct{}

func (wholeSplit) Labels() map[string]string {
	return map[string]string{"split": "whole"}
}
