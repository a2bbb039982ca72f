package types

import "fmt"

// PartitionScanKind selects how partitions are chosen for a scan.
type PartitionScanKind int

const (
	// ScanSinglePartition reads exactly one partition by part key.
	ScanSinglePartition PartitionScanKind = iota

	// ScanMultiPartition reads an explicit list of partitions.
	ScanMultiPartition

	// ScanAllPartitions reads every partition on a shard.
	ScanAllPartitions

	// ScanBySplit reads the slice of a shard-wide scan described by a
	// ScanSplit returned from GetScanSplits.
	ScanBySplit
)

// String returns a human-readable representation of the scan kind.
func (k PartitionScanKind) String() string {
	switch k {
	case ScanSinglePartition:
		return "single"
	case ScanMultiPartition:
		return "multi"
	case ScanAllPartitions:
		return "all"
	case ScanBySplit:
		return "split"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// PartitionScan describes which partitions a read should visit.
type PartitionScan struct {
	Kind  PartitionScanKind
	Shard int32

	// PartKeys holds the explicit partition list for single/multi scans.
	PartKeys [][]byte

	// Split is set for ScanBySplit.
	Split ScanSplit
}

// SinglePartitionScan selects one partition on a shard.
func SinglePartitionScan(partKey []byte, shard int32) PartitionScan {
	return PartitionScan{Kind: ScanSinglePartition, Shard: shard, PartKeys: [][]byte{partKey}}
}

// MultiPartitionScan selects an explicit set of partitions on a shard.
func MultiPartitionScan(partKeys [][]byte, shard int32) PartitionScan {
	return PartitionScan{Kind: ScanMultiPartition, Shard: shard, PartKeys: partKeys}
}

// AllPartitionsScan selects every partition on a shard.
func AllPartitionsScan(shard int32) PartitionScan {
	return PartitionScan{Kind: ScanAllPartitions, Shard: shard}
}

// SplitScan selects the partitions covered by one scan split.
func SplitScan(split ScanSplit, shard int32) PartitionScan {
	return PartitionScan{Kind: ScanBySplit, Shard: shard, Split: split}
}

// ChunkScan bounds which chunks of the selected partitions are read.
// A zero ChunkScan means all chunks.
type ChunkScan struct {
	// TimeRange restricts the scan to chunks overlapping
	// [StartTime, EndTime] when true; otherwise all chunks are read.
	TimeRange bool
	StartTime int64
	EndTime   int64
}

// AllChunksScan reads every chunk of each selected partition.
func AllChunksScan() ChunkScan {
	return ChunkScan{}
}

// TimeRangeChunkScan reads chunks overlapping [start, end] epoch ms.
func TimeRangeChunkScan(start, end int64) ChunkScan {
	return ChunkScan{TimeRange: true, StartTime: start, EndTime: end}
}

// ScanSplit is an opaque unit describing one fan-out-parallel slice of a
// shard-wide scan. Splits returned together are disjoint and collectively
// exhaustive over the dataset's data at call time; their count and content
// are backend-specific.
type ScanSplit interface {
	// Labels describes the split for placement and debugging, for
	// example preferred replica hosts or covered token ranges.
	Labels() map[string]string
}

// RawChunkSet is one already-encoded chunk set read back from storage:
// the window start plus one payload per column.
type RawChunkSet struct {
	StartTime int64
	Chunks    [][]byte
}

// RawPartition is one partition's raw chunk data as produced by
// ReadRawPartitions: the identity blob plus its chunk sets.
type RawPartition struct {
	PartKey   []byte
	ChunkSets []RawChunkSet
}
