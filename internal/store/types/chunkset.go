package types

import "sync/atomic"

// Chunk is an immutable, already-encoded columnar byte buffer for one
// column over a contiguous time window. The encoding is opaque to this
// layer.
type Chunk struct {
	// ColumnID identifies the column within the dataset schema.
	ColumnID int32

	// Data is the encoded chunk payload. Never mutated after creation.
	Data []byte
}

// ChunkSet groups the per-column chunks for one partition/time-window plus
// a completion listener invoked once durability for the set is
// acknowledged. A ChunkSet is handed to a sink exactly once and never
// mutated afterwards.
type ChunkSet struct {
	// PartKey is the owning partition's identity blob.
	PartKey []byte

	// Shard the partition lives on.
	Shard int32

	// StartTime is the inclusive start of the chunk window, epoch ms.
	StartTime int64

	// EndTime is the inclusive end of the chunk window, epoch ms.
	EndTime int64

	// Chunks holds one encoded chunk per column.
	Chunks []Chunk

	// listener fires after the sink durably accepts this set.
	listener func()
	fired    atomic.Bool
}

// NewChunkSet creates a ChunkSet with an optional durability listener.
func NewChunkSet(partKey []byte, shard int32, startTime, endTime int64, chunks []Chunk) *ChunkSet {
	return &ChunkSet{
		PartKey:   partKey,
		Shard:     shard,
		StartTime: startTime,
		EndTime:   endTime,
		Chunks:    chunks,
	}
}

// OnDurable registers the completion listener. At most one listener is
// supported; the last registration wins.
func (c *ChunkSet) OnDurable(fn func()) {
	c.listener = fn
}

// Invoke fires the durability listener. Safe to call more than once; the
// listener runs at most once.
func (c *ChunkSet) Invoke() {
	if c.fired.CompareAndSwap(false, true) && c.listener != nil {
		c.listener()
	}
}

// Bytes returns the total encoded payload size across all columns.
func (c *ChunkSet) Bytes() int {
	total := 0
	for i := range c.Chunks {
		total += len(c.Chunks[i].Data)
	}
	return total
}

// NumChunks returns the number of per-column chunks in the set.
func (c *ChunkSet) NumChunks() int {
	return len(c.Chunks)
}
