// Package stats records write-path statistics for chunk sinks.
//
// The recorder is a passive side channel: it never affects write outcomes,
// and a failure to record is logged and swallowed. Counters are atomic and
// safe for concurrent increment from multiple writer goroutines; the
// DDSketch distributions are guarded by a mutex of their own.
package stats

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"

	"github.com/yu-shipit/FiloDB-sub000/internal/logging"
	"github.com/yu-shipit/FiloDB-sub000/internal/store/types"
)

// DefaultAccuracy is the relative accuracy of the sketch distributions.
const DefaultAccuracy = 0.01

// SinkStats tracks the write path of one sink, tagged with a workload
// attribution TagSet.
type SinkStats struct {
	tags types.TagSet

	// Running totals, safe for concurrent increment.
	chunkSetsWritten        atomic.Int64
	chunkBytesWritten       atomic.Int64
	chunksWritten           atomic.Int64
	partKeysWritten         atomic.Int64
	partKeyBytesWritten     atomic.Int64
	partKeyWriteCalls       atomic.Int64
	partKeyUpdatesPublished atomic.Int64
	partKeyUpdatesFailed    atomic.Int64

	mu sync.Mutex

	// Distributions (nil when sketch construction failed; recording then
	// degrades to counters only).
	chunkBytes    *ddsketch.DDSketch // per-chunk encoded size
	chunksPerSet  *ddsketch.DDSketch // chunks per chunk-set
	publishMillis *ddsketch.DDSketch // part-key update publish latency
}

// New creates a recorder for the given attribution tags.
func New(tags types.TagSet) *SinkStats {
	s := &SinkStats{tags: tags}
	var err error
	if s.chunkBytes, err = ddsketch.NewDefaultDDSketch(DefaultAccuracy); err != nil {
		logging.Component("stats").Warn("chunk byte sketch disabled", "error", err)
	}
	if s.chunksPerSet, err = ddsketch.NewDefaultDDSketch(DefaultAccuracy); err != nil {
		logging.Component("stats").Warn("chunk length sketch disabled", "error", err)
	}
	if s.publishMillis, err = ddsketch.NewDefaultDDSketch(DefaultAccuracy); err != nil {
		logging.Component("stats").Warn("publish latency sketch disabled", "error", err)
	}
	return s
}

// Tags returns the attribution tags.
func (s *SinkStats) Tags() types.TagSet {
	return s.tags
}

// RecordChunkSet records one durably accepted chunk set.
func (s *SinkStats) RecordChunkSet(cs *types.ChunkSet) {
	s.chunkSetsWritten.Add(1)
	s.chunksWritten.Add(int64(cs.NumChunks()))
	s.chunkBytesWritten.Add(int64(cs.Bytes()))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chunksPerSet != nil {
		s.addSample(s.chunksPerSet, float64(cs.NumChunks()))
	}
	if s.chunkBytes != nil {
		for i := range cs.Chunks {
			s.addSample(s.chunkBytes, float64(len(cs.Chunks[i].Data)))
		}
	}
}

// RecordPartKeys records one part-key write call of n records totalling
// byteSize encoded bytes.
func (s *SinkStats) RecordPartKeys(n int, byteSize int) {
	s.partKeyWriteCalls.Add(1)
	s.partKeysWritten.Add(int64(n))
	s.partKeyBytesWritten.Add(int64(byteSize))
}

// RecordUpdatePublish records the outcome and latency of one part-key
// update publish.
func (s *SinkStats) RecordUpdatePublish(elapsed time.Duration, err error) {
	if err != nil {
		s.partKeyUpdatesFailed.Add(1)
		return
	}
	s.partKeyUpdatesPublished.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.publishMillis != nil {
		s.addSample(s.publishMillis, float64(elapsed.Milliseconds()))
	}
}

// addSample adds to a sketch, swallowing recording failures.
func (s *SinkStats) addSample(sk *ddsketch.DDSketch, v float64) {
	if err := sk.Add(v); err != nil {
		logging.Component("stats").Debug("sketch add failed", "value", v, "error", err)
	}
}

// ChunkSetsWritten returns the running chunk-set total.
func (s *SinkStats) ChunkSetsWritten() int64 { return s.chunkSetsWritten.Load() }

// ChunkBytesWritten returns the cumulative encoded chunk bytes.
func (s *SinkStats) ChunkBytesWritten() int64 { return s.chunkBytesWritten.Load() }

// PartKeysWritten returns the running part-key record total.
func (s *SinkStats) PartKeysWritten() int64 { return s.partKeysWritten.Load() }

// PartKeyUpdatesPublished returns the running publish total.
func (s *SinkStats) PartKeyUpdatesPublished() int64 { return s.partKeyUpdatesPublished.Load() }

// Snapshot captures all totals and distribution quantiles at one instant.
type Snapshot struct {
	Tags types.TagSet

	ChunkSetsWritten        int64
	ChunksWritten           int64
	ChunkBytesWritten       int64
	PartKeyWriteCalls       int64
	PartKeysWritten         int64
	PartKeyBytesWritten     int64
	PartKeyUpdatesPublished int64
	PartKeyUpdatesFailed    int64

	ChunkBytesP50    float64
	ChunkBytesP99    float64
	ChunksPerSetP50  float64
	ChunksPerSetP99  float64
	PublishMillisP50 float64
	PublishMillisP99 float64
}

// Snapshot returns current totals and quantiles.
func (s *SinkStats) Snapshot() Snapshot {
	snap := Snapshot{
		Tags:                    s.tags,
		ChunkSetsWritten:        s.chunkSetsWritten.Load(),
		ChunksWritten:           s.chunksWritten.Load(),
		ChunkBytesWritten:       s.chunkBytesWritten.Load(),
		PartKeyWriteCalls:       s.partKeyWriteCalls.Load(),
		PartKeysWritten:         s.partKeysWritten.Load(),
		PartKeyBytesWritten:     s.partKeyBytesWritten.Load(),
		PartKeyUpdatesPublished: s.partKeyUpdatesPublished.Load(),
		PartKeyUpdatesFailed:    s.partKeyUpdatesFailed.Load(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	snap.ChunkBytesP50, snap.ChunkBytesP99 = quantiles(s.chunkBytes)
	snap.ChunksPerSetP50, snap.ChunksPerSetP99 = quantiles(s.chunksPerSet)
	snap.PublishMillisP50, snap.PublishMillisP99 = quantiles(s.publishMillis)
	return snap
}

func quantiles(sk *ddsketch.DDSketch) (p50, p99 float64) {
	if sk == nil || sk.GetCount() == 0 {
		return 0, 0
	}
	if v, err := sk.GetValueAtQuantile(0.50); err == nil {
		p50 = v
	}
	if v, err := sk.GetValueAtQuantile(0.99); err == nil {
		p99 = v
	}
	return p50, p99
}
