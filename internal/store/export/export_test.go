package export

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/yu-shipit/FiloDB-sub000/internal/store/nullstore"
	"github.com/yu-shipit/FiloDB-sub000/internal/store/stream"
	"github.com/yu-shipit/FiloDB-sub000/internal/store/types"
)

var testDataset = types.NewDatasetRef("test.export")

// snapshotStore serves a fixed part-key set through the read contract,
// discarding writes like its embedded null store.
type snapshotStore struct {
	*nullstore.Store
	records []types.PartKeyRecord
}

func (s *snapshotStore) ScanPartKeys(ctx context.Context, dataset types.DatasetRef, shard int32) (stream.PartKeyIterator, error) {
	var shardRecs []types.PartKeyRecord
	for _, r := range s.records {
		if r.Shard == shard {
			shardRecs = append(shardRecs, r)
		}
	}
	return stream.PartKeysFromSlice(shardRecs, nil), nil
}

func testRecords(n int, shard int32) []types.PartKeyRecord {
	recs := make([]types.PartKeyRecord, n)
	for i := range recs {
		recs[i] = types.PartKeyRecord{
			PartKey:   []byte{byte(shard), byte(i), byte(i >> 8), 0xaa},
			StartTime: int64(i) * 1000,
			EndTime:   types.EndTimeActive,
			Shard:     shard,
		}
	}
	return recs
}

func TestExportImport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shard0.parquet")

	src := &snapshotStore{Store: nullstore.New(types.TagSet{}), records: testRecords(2500, 0)}

	exported, err := ExportPartKeys(ctx, src, testDataset, 0, path)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exported != 2500 {
		t.Errorf("exported %d records, want 2500", exported)
	}

	dst := nullstore.New(types.TagSet{})
	imported, err := ImportPartKeys(ctx, dst, testDataset, 0, path, 0, types.CurrentUpdateHour(), true, 32)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if imported != 2500 {
		t.Errorf("imported %d records, want 2500", imported)
	}

	if got := dst.PartKeyCount(testDataset); got != 2500 {
		t.Errorf("sink registered %d part keys, want 2500", got)
	}
	if got := dst.Stats().PartKeysWritten(); got != 2500 {
		t.Errorf("sink stats show %d part keys, want 2500", got)
	}
}

func TestExport_ShardFiltered(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shard1.parquet")

	records := append(testRecords(10, 0), testRecords(7, 1)...)
	src := &snapshotStore{Store: nullstore.New(types.TagSet{}), records: records}

	exported, err := ExportPartKeys(ctx, src, testDataset, 1, path)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exported != 7 {
		t.Errorf("exported %d records for shard 1, want 7", exported)
	}
}

func TestExport_EmptyShard(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "empty.parquet")

	src := &snapshotStore{Store: nullstore.New(types.TagSet{})}

	exported, err := ExportPartKeys(ctx, src, testDataset, 0, path)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exported != 0 {
		t.Errorf("exported %d records from empty shard, want 0", exported)
	}

	// The empty file still imports cleanly.
	dst := nullstore.New(types.TagSet{})
	imported, err := ImportPartKeys(ctx, dst, testDataset, 0, path, 0, 0, false, 8)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if imported != 0 {
		t.Errorf("imported %d records, want 0", imported)
	}
}

func TestImport_MissingFile(t *testing.T) {
	dst := nullstore.New(types.TagSet{})
	if _, err := ImportPartKeys(context.Background(), dst, testDataset, 0,
		filepath.Join(t.TempDir(), "missing.parquet"), 0, 0, false, 8); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRowConversion(t *testing.T) {
	rec := types.PartKeyRecord{PartKey: []byte{1, 2, 3}, StartTime: 10, EndTime: 20, Shard: 5}

	row := RecordToRow(&rec)
	back := RowToRecord(&row)

	if string(back.PartKey) != string(rec.PartKey) || back.StartTime != rec.StartTime ||
		back.EndTime != rec.EndTime || back.Shard != rec.Shard {
		t.Errorf("round trip mismatch: %+v != %+v", back, rec)
	}
}
