package store

import (
	"context"

	"github.com/yu-shipit/FiloDB-sub000/internal/store/stats"
	"github.com/yu-shipit/FiloDB-sub000/internal/store/stream"
	"github.com/yu-shipit/FiloDB-sub000/internal/store/types"
)

// ChunkStream is the backpressured push stream of chunk sets consumed by
// WriteChunks.
type ChunkStream = stream.Stream[*types.ChunkSet]

// PartKeyStream is the backpressured push stream of part-key records
// consumed by WritePartKeys and WritePartKeyUpdates.
type PartKeyStream = stream.Stream[types.PartKeyRecord]

// ChunkSink is the write side of the persistence contract. Every method
// returns an explicit success or failure; no method succeeds partially
// without reporting the first failure, and none panics on I/O errors.
//
// Streaming writes consume their input under backpressure and block the
// calling goroutine until the stream is exhausted (success) or the first
// unrecoverable error abandons it. Already-accepted elements stay durable
// after a failure; there is no rollback. Cancelling ctx abandons the
// stream the same way.
type ChunkSink interface {
	// Initialize idempotently provisions the durable structures the
	// dataset needs for the given shard count. Safe to call repeatedly
	// and concurrently for the same dataset; a repeat call with a
	// different shard count is a configuration error, never a silent
	// merge. The resources map carries backend-specific provisioning
	// hints (replication, compaction strategy) and may be nil.
	Initialize(ctx context.Context, dataset types.DatasetRef, numShards int, resources map[string]string) error

	// WriteChunks consumes a stream of chunk sets. Each accepted set's
	// durability listener fires exactly once, after that specific set is
	// durable; listeners for distinct sets may fire out of stream order.
	// diskTTLSeconds bounds retention; a sink without per-write TTL
	// support must document whether it ignores it.
	WriteChunks(ctx context.Context, dataset types.DatasetRef, chunks *ChunkStream, diskTTLSeconds int) error

	// WritePartKeys registers partition identities for a shard. When
	// writeToUpdateTable is set, each record is also appended to the
	// hour-bucketed update log under updateHour so other shards can
	// discover it incrementally.
	WritePartKeys(ctx context.Context, dataset types.DatasetRef, shard int32, keys *PartKeyStream,
		diskTTLSeconds int, updateHour int64, writeToUpdateTable bool) error

	// WritePartKeyUpdates appends part-key change events keyed by a
	// 5-minute epoch bucket and a source-stream offset. Offsets must be
	// strictly increasing per (dataset, epoch5mBucket) producer; they
	// are not unique across buckets. Callers use them to replay from
	// the last recorded position after a partial-stream failure.
	WritePartKeyUpdates(ctx context.Context, dataset types.DatasetRef, epoch5mBucket, updatedTimeMs, offset int64,
		tags types.TagSet, keys *PartKeyStream) error

	// Truncate clears all data for the dataset, keeping its structural
	// definitions. The caller guarantees no concurrent writers are
	// active; the sink does not enforce that.
	Truncate(ctx context.Context, dataset types.DatasetRef, numShards int) error

	// DropDataset permanently removes the dataset's structures.
	// Irreversible. Same caller contract as Truncate.
	DropDataset(ctx context.Context, dataset types.DatasetRef, numShards int) error

	// Reset clears local in-memory bookkeeping, not necessarily durable
	// state. Used between test runs.
	Reset()

	// Stats returns the sink's write-path statistics recorder.
	Stats() *stats.SinkStats
}

// ColumnStore extends the write contract with the read side. A sink that
// cannot serve reads implements ChunkSink only, or returns
// errors.ErrWriteOnlyStore from read methods so that "not implemented" is
// never mistaken for "truly empty".
type ColumnStore interface {
	ChunkSink

	// ReadRawPartitions lazily yields one RawPartition per selected
	// partition. maxChunkTime bounds how far into the future a chunk may
	// be considered still open. The iterator is fresh per call, not
	// restartable, and never buffers the full result set.
	ReadRawPartitions(ctx context.Context, dataset types.DatasetRef, maxChunkTime int64,
		partScan types.PartitionScan, chunkScan types.ChunkScan) (stream.RawPartitionIterator, error)

	// GetScanSplits partitions a shard-wide scan into roughly
	// splitsPerNode disjoint, collectively exhaustive units. Splits are
	// not necessarily stable across calls.
	GetScanSplits(ctx context.Context, dataset types.DatasetRef, splitsPerNode int) ([]types.ScanSplit, error)

	// ScanPartKeys enumerates every partition identity ever seen for a
	// shard. Used once at shard-index bootstrap; expected to be
	// expensive.
	ScanPartKeys(ctx context.Context, dataset types.DatasetRef, shard int32) (stream.PartKeyIterator, error)

	// GetPartKeysByUpdateHour enumerates the partitions whose identity
	// or active interval changed within the given hour bucket. Backbone
	// of incremental index maintenance.
	GetPartKeysByUpdateHour(ctx context.Context, dataset types.DatasetRef, shard int32, updateHour int64) (stream.PartKeyIterator, error)

	// GetUpdatedPartKeysByTimeBucket is the stable public read path for
	// downstream consumers, with the same semantics as
	// GetPartKeysByUpdateHour.
	GetUpdatedPartKeysByTimeBucket(ctx context.Context, dataset types.DatasetRef, shard int32, updateHour int64) (stream.PartKeyIterator, error)
}
