package duckstore

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/yu-shipit/FiloDB-sub000/internal/errors"
	"github.com/yu-shipit/FiloDB-sub000/internal/store/config"
	"github.com/yu-shipit/FiloDB-sub000/internal/store/stream"
	"github.com/yu-shipit/FiloDB-sub000/internal/store/types"
)

var testDataset = types.NewDatasetRef("test.gauges")

func openTestStore(t *testing.T) *Store {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.PartKeyBuckets = 16
	cfg.Stream.WriteParallelism = 2

	s, err := Open(cfg, nil, types.NewTagSet(types.Tag{Key: "app", Value: "test"}))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Initialize(context.Background(), testDataset, 4, nil); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return s
}

func record(key string, shard int32, start, end int64) types.PartKeyRecord {
	return types.PartKeyRecord{PartKey: []byte(key), StartTime: start, EndTime: end, Shard: shard}
}

func writeKeys(t *testing.T, s *Store, shard int32, updateHour int64, updateTable bool, recs ...types.PartKeyRecord) {
	t.Helper()
	keys := stream.New[types.PartKeyRecord](8)
	go stream.SendAll(context.Background(), keys, recs)
	if err := s.WritePartKeys(context.Background(), testDataset, shard, keys, 0, updateHour, updateTable); err != nil {
		t.Fatalf("write part keys: %v", err)
	}
}

func drainKeys(t *testing.T, it stream.PartKeyIterator) []types.PartKeyRecord {
	t.Helper()
	defer it.Close()
	var out []types.PartKeyRecord
	for it.Next() {
		out = append(out, it.Record())
	}
	if it.Err() != nil {
		t.Fatalf("iterator failed: %v", it.Err())
	}
	return out
}

func TestInitialize_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Initialize(ctx, testDataset, 4, nil); err != nil {
		t.Fatalf("re-initialize with same shard count: %v", err)
	}
}

func TestInitialize_ShardCountMismatch(t *testing.T) {
	s := openTestStore(t)

	err := s.Initialize(context.Background(), testDataset, 8, nil)
	if !errors.Is(err, errors.ErrShardCountMismatch) {
		t.Fatalf("got %v, want ErrShardCountMismatch", err)
	}
	if !errors.IsConfig(err) {
		t.Error("shard mismatch should classify as a configuration error")
	}
}

func TestWritePartKeys_ScanRoundTrip(t *testing.T) {
	s := openTestStore(t)

	recs := []types.PartKeyRecord{
		record("cpu{host=a}", 1, 100, types.EndTimeActive),
		record("cpu{host=b}", 1, 200, 900),
		record("mem{host=a}", 1, 300, types.EndTimeActive),
	}
	writeKeys(t, s, 1, 0, false, recs...)

	it, err := s.ScanPartKeys(context.Background(), testDataset, 1)
	if err != nil {
		t.Fatal(err)
	}
	got := drainKeys(t, it)
	if len(got) != len(recs) {
		t.Fatalf("scanned %d records, want %d", len(got), len(recs))
	}

	// Order-independent set equality on part keys.
	want := map[string]types.PartKeyRecord{}
	for _, r := range recs {
		want[string(r.PartKey)] = r
	}
	for _, r := range got {
		w, ok := want[string(r.PartKey)]
		if !ok {
			t.Errorf("unexpected key %q", r.PartKey)
			continue
		}
		if r.StartTime != w.StartTime || r.EndTime != w.EndTime || r.Shard != w.Shard {
			t.Errorf("key %q: got %+v, want %+v", r.PartKey, r, w)
		}
	}

	// Other shards see nothing.
	it2, err := s.ScanPartKeys(context.Background(), testDataset, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got := drainKeys(t, it2); len(got) != 0 {
		t.Errorf("shard 2 scanned %d records, want 0", len(got))
	}
}

func TestWritePartKeys_UpsertReplacesInterval(t *testing.T) {
	s := openTestStore(t)

	writeKeys(t, s, 0, 0, false, record("cpu{host=a}", 0, 100, types.EndTimeActive))
	writeKeys(t, s, 0, 0, false, record("cpu{host=a}", 0, 100, 5000))

	it, err := s.ScanPartKeys(context.Background(), testDataset, 0)
	if err != nil {
		t.Fatal(err)
	}
	got := drainKeys(t, it)
	if len(got) != 1 {
		t.Fatalf("scanned %d records, want 1", len(got))
	}
	if got[0].EndTime != 5000 {
		t.Errorf("EndTime = %d, want 5000 after upsert", got[0].EndTime)
	}
}

func TestGetPartKeysByUpdateHour_Isolation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	const hour = int64(490000)
	recs := []types.PartKeyRecord{
		record("cpu{host=a}", 0, 100, types.EndTimeActive),
		record("cpu{host=b}", 0, 200, types.EndTimeActive),
	}
	writeKeys(t, s, 0, hour, true, recs...)

	it, err := s.GetPartKeysByUpdateHour(ctx, testDataset, 0, hour)
	if err != nil {
		t.Fatal(err)
	}
	if got := drainKeys(t, it); len(got) != len(recs) {
		t.Errorf("hour %d yielded %d records, want %d", hour, len(got), len(recs))
	}

	// A different hour yields none of them.
	it2, err := s.GetPartKeysByUpdateHour(ctx, testDataset, 0, hour+1)
	if err != nil {
		t.Fatal(err)
	}
	if got := drainKeys(t, it2); len(got) != 0 {
		t.Errorf("hour %d yielded %d records, want 0", hour+1, len(got))
	}

	// The public path agrees with the internal one.
	it3, err := s.GetUpdatedPartKeysByTimeBucket(ctx, testDataset, 0, hour)
	if err != nil {
		t.Fatal(err)
	}
	if got := drainKeys(t, it3); len(got) != len(recs) {
		t.Errorf("public path yielded %d records, want %d", len(got), len(recs))
	}
}

func TestWritePartKeys_NoUpdateTable(t *testing.T) {
	s := openTestStore(t)

	const hour = int64(490000)
	writeKeys(t, s, 0, hour, false, record("cpu{host=a}", 0, 100, types.EndTimeActive))

	it, err := s.GetPartKeysByUpdateHour(context.Background(), testDataset, 0, hour)
	if err != nil {
		t.Fatal(err)
	}
	if got := drainKeys(t, it); len(got) != 0 {
		t.Errorf("update table has %d records despite writeToUpdateTable=false", len(got))
	}
}

func TestWriteChunks_ReadRawPartitions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	chunksOf := func(key string, start, end int64, payloads ...[]byte) *types.ChunkSet {
		cols := make([]types.Chunk, len(payloads))
		for i, p := range payloads {
			cols[i] = types.Chunk{ColumnID: int32(i), Data: p}
		}
		return types.NewChunkSet([]byte(key), 0, start, end, cols)
	}

	fired := make(chan string, 8)
	sets := []*types.ChunkSet{
		chunksOf("cpu{host=a}", 0, 999, []byte("ts-a0"), []byte("v-a0")),
		chunksOf("cpu{host=a}", 1000, 1999, []byte("ts-a1"), []byte("v-a1")),
		chunksOf("cpu{host=b}", 0, 999, []byte("ts-b0"), []byte("v-b0")),
	}
	for _, cs := range sets {
		key := string(cs.PartKey)
		start := cs.StartTime
		cs.OnDurable(func() { fired <- fmt.Sprintf("%s@%d", key, start) })
	}

	chunks := stream.New[*types.ChunkSet](4)
	go stream.SendAll(ctx, chunks, sets)
	if err := s.WriteChunks(ctx, testDataset, chunks, 3600); err != nil {
		t.Fatalf("write chunks: %v", err)
	}

	if len(fired) != len(sets) {
		t.Errorf("%d listeners fired, want %d", len(fired), len(sets))
	}

	it, err := s.ReadRawPartitions(ctx, testDataset, types.EndTimeActive,
		types.AllPartitionsScan(0), types.AllChunksScan())
	if err != nil {
		t.Fatal(err)
	}
	defer it.Close()

	parts := map[string]types.RawPartition{}
	for it.Next() {
		p := it.Partition()
		parts[string(p.PartKey)] = p
	}
	if it.Err() != nil {
		t.Fatalf("iterator failed: %v", it.Err())
	}

	if len(parts) != 2 {
		t.Fatalf("read %d partitions, want 2", len(parts))
	}

	a := parts["cpu{host=a}"]
	if len(a.ChunkSets) != 2 {
		t.Fatalf("partition a has %d chunk sets, want 2", len(a.ChunkSets))
	}
	if a.ChunkSets[0].StartTime != 0 || a.ChunkSets[1].StartTime != 1000 {
		t.Errorf("chunk sets out of time order: %d, %d", a.ChunkSets[0].StartTime, a.ChunkSets[1].StartTime)
	}
	if len(a.ChunkSets[0].Chunks) != 2 || !bytes.Equal(a.ChunkSets[0].Chunks[1], []byte("v-a0")) {
		t.Errorf("unexpected chunk payloads: %v", a.ChunkSets[0].Chunks)
	}
}

func TestReadRawPartitions_TimeRange(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	mk := func(start, end int64) *types.ChunkSet {
		return types.NewChunkSet([]byte("cpu{host=a}"), 0, start, end,
			[]types.Chunk{{ColumnID: 0, Data: []byte("x")}})
	}
	chunks := stream.New[*types.ChunkSet](4)
	go stream.SendAll(ctx, chunks, []*types.ChunkSet{mk(0, 999), mk(1000, 1999), mk(2000, 2999)})
	if err := s.WriteChunks(ctx, testDataset, chunks, 3600); err != nil {
		t.Fatal(err)
	}

	it, err := s.ReadRawPartitions(ctx, testDataset, types.EndTimeActive,
		types.SinglePartitionScan([]byte("cpu{host=a}"), 0),
		types.TimeRangeChunkScan(1000, 1500))
	if err != nil {
		t.Fatal(err)
	}
	defer it.Close()

	if !it.Next() {
		t.Fatalf("expected one partition, err=%v", it.Err())
	}
	p := it.Partition()
	if len(p.ChunkSets) != 1 || p.ChunkSets[0].StartTime != 1000 {
		t.Errorf("time-range scan returned %+v", p.ChunkSets)
	}
}

func TestGetScanSplits_DisjointExhaustive(t *testing.T) {
	s := openTestStore(t)

	splits, err := s.GetScanSplits(context.Background(), testDataset, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(splits) != 4 {
		t.Fatalf("got %d splits, want 4", len(splits))
	}

	covered := make([]bool, s.config.PartKeyBuckets)
	for _, sp := range splits {
		rng := sp.(bucketRangeSplit)
		for b := rng.start; b < rng.end; b++ {
			if covered[b] {
				t.Fatalf("bucket %d covered by two splits", b)
			}
			covered[b] = true
		}
	}
	for b, ok := range covered {
		if !ok {
			t.Errorf("bucket %d not covered by any split", b)
		}
	}
}

func TestScanBySplit_PartitionsDisjoint(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var sets []*types.ChunkSet
	for i := 0; i < 40; i++ {
		key := fmt.Sprintf("metric-%d{host=h%d}", i, i)
		sets = append(sets, types.NewChunkSet([]byte(key), 0, 0, 999,
			[]types.Chunk{{ColumnID: 0, Data: []byte("x")}}))
	}
	chunks := stream.New[*types.ChunkSet](8)
	go stream.SendAll(ctx, chunks, sets)
	if err := s.WriteChunks(ctx, testDataset, chunks, 3600); err != nil {
		t.Fatal(err)
	}

	splits, err := s.GetScanSplits(ctx, testDataset, 4)
	if err != nil {
		t.Fatal(err)
	}

	seen := map[string]int{}
	for _, sp := range splits {
		it, err := s.ReadRawPartitions(ctx, testDataset, types.EndTimeActive,
			types.SplitScan(sp, 0), types.AllChunksScan())
		if err != nil {
			t.Fatal(err)
		}
		for it.Next() {
			seen[string(it.Partition().PartKey)]++
		}
		if it.Err() != nil {
			t.Fatal(it.Err())
		}
		it.Close()
	}

	if len(seen) != len(sets) {
		t.Errorf("splits covered %d partitions, want %d", len(seen), len(sets))
	}
	for key, n := range seen {
		if n != 1 {
			t.Errorf("partition %q seen by %d splits", key, n)
		}
	}
}

func TestWritePartKeyUpdates_OffsetResume(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	const bucket5m = int64(3_000_000)

	if _, ok, err := s.HighestUpdateOffset(ctx, testDataset, bucket5m); err != nil || ok {
		t.Fatalf("empty bucket: ok=%v err=%v", ok, err)
	}

	tags := types.NewTagSet(types.Tag{Key: "source", Value: "downsample"})
	for _, offset := range []int64{10, 11, 12} {
		keys := stream.New[types.PartKeyRecord](4)
		go stream.SendAll(ctx, keys, []types.PartKeyRecord{
			record(fmt.Sprintf("cpu{job=%d}", offset), 0, 100, types.EndTimeActive),
		})
		if err := s.WritePartKeyUpdates(ctx, testDataset, bucket5m, 900_000_000, offset, tags, keys); err != nil {
			t.Fatalf("offset %d: %v", offset, err)
		}
	}

	offset, ok, err := s.HighestUpdateOffset(ctx, testDataset, bucket5m)
	if err != nil || !ok {
		t.Fatalf("highest offset: ok=%v err=%v", ok, err)
	}
	if offset != 12 {
		t.Errorf("highest offset = %d, want 12", offset)
	}

	// A different 5m bucket keeps its own offset space.
	if _, ok, err := s.HighestUpdateOffset(ctx, testDataset, bucket5m+1); err != nil || ok {
		t.Errorf("other bucket: ok=%v err=%v", ok, err)
	}

	if got := s.Stats().PartKeyUpdatesPublished(); got != 3 {
		t.Errorf("PartKeyUpdatesPublished = %d, want 3", got)
	}
}

// A backend failure that survives the retry budget must classify as
// transient, never as a configuration error.
func TestWritePartKeys_BackendFailureTransient(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.PartKeyBuckets = 16
	cfg.Retry.MaxRetries = 1
	cfg.Retry.InitialInterval = config.Duration(time.Millisecond)
	cfg.Retry.MaxInterval = config.Duration(time.Millisecond)

	s, err := Open(cfg, nil, types.TagSet{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	ctx := context.Background()
	if err := s.Initialize(ctx, testDataset, 4, nil); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	s.Close()

	keys := stream.New[types.PartKeyRecord](2)
	go stream.SendAll(ctx, keys, []types.PartKeyRecord{
		record("cpu{host=a}", 0, 100, types.EndTimeActive),
	})

	err = s.WritePartKeys(ctx, testDataset, 0, keys, 0, 0, false)
	if err == nil {
		t.Fatal("write against closed store succeeded")
	}
	if !errors.IsTransient(err) {
		t.Errorf("error %v not classified transient", err)
	}
	if errors.IsConfig(err) {
		t.Errorf("error %v wrongly classified as configuration", err)
	}
}

func TestTruncate_ClearsData(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	writeKeys(t, s, 0, 100, true, record("cpu{host=a}", 0, 1, types.EndTimeActive))

	if err := s.Truncate(ctx, testDataset, 4); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	it, err := s.ScanPartKeys(ctx, testDataset, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := drainKeys(t, it); len(got) != 0 {
		t.Errorf("scan after truncate yielded %d records", len(got))
	}

	// Structure survives: writes still work.
	writeKeys(t, s, 0, 100, false, record("cpu{host=b}", 0, 2, types.EndTimeActive))
}

func TestDropDataset_RemovesStructures(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.DropDataset(ctx, testDataset, 4); err != nil {
		t.Fatalf("drop: %v", err)
	}

	if _, err := s.ScanPartKeys(ctx, testDataset, 0); err == nil {
		t.Error("scan succeeded against dropped dataset")
	}

	// Re-initializing after a drop accepts a new shard count.
	if err := s.Initialize(ctx, testDataset, 8, nil); err != nil {
		t.Fatalf("re-initialize after drop: %v", err)
	}
}
