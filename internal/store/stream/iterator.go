package stream

import "github.com/yu-shipit/FiloDB-sub000/internal/store/types"

// PartKeyIterator is a lazy pull sequence of part-key records. Each call
// to a read operation yields a fresh, non-restartable iterator. A consumer
// distinguishes exhaustion (Next false, Err nil) from failure (Next false,
// Err non-nil).
type PartKeyIterator interface {
	// Next advances to the next record, fetching lazily. It returns
	// false when the sequence is exhausted or has failed.
	Next() bool

	// Record returns the current record. Valid only after Next returned
	// true.
	Record() types.PartKeyRecord

	// Err returns the error that terminated the sequence, if any.
	Err() error

	// Close releases underlying resources. Safe to call at any point.
	Close() error
}

// RawPartitionIterator is a lazy pull sequence of raw partition data.
// Same termination semantics as PartKeyIterator.
type RawPartitionIterator interface {
	Next() bool
	Partition() types.RawPartition
	Err() error
	Close() error
}

// partKeySlice is a PartKeyIterator over an in-memory slice.
type partKeySlice struct {
	records []types.PartKeyRecord
	idx     int
	err     error
}

// PartKeysFromSlice wraps records in a PartKeyIterator. An optional err
// terminates the sequence after the last record, for tests exercising
// failing read paths.
func PartKeysFromSlice(records []types.PartKeyRecord, err error) PartKeyIterator {
	return &partKeySlice{records: records, idx: -1, err: err}
}

// EmptyPartKeys returns an iterator over no records.
func EmptyPartKeys() PartKeyIterator {
	return &partKeySlice{idx: -1}
}

func (it *partKeySlice) Next() bool {
	if it.idx+1 >= len(it.records) {
		it.idx = len(it.records)
		return false
	}
	it.idx++
	return true
}

func (it *partKeySlice) Record() types.PartKeyRecord { return it.records[it.idx] }

func (it *partKeySlice) Err() error {
	if it.idx >= len(it.records) {
		return it.err
	}
	return nil
}

func (it *partKeySlice) Close() error { return nil }

// rawPartitionSlice is a RawPartitionIterator over an in-memory slice.
type rawPartitionSlice struct {
	parts []types.RawPartition
	idx   int
	err   error
}

// RawPartitionsFromSlice wraps partitions in a RawPartitionIterator.
func RawPartitionsFromSlice(parts []types.RawPartition, err error) RawPartitionIterator {
	return &rawPartitionSlice{parts: parts, idx: -1, err: err}
}

// EmptyRawPartitions returns an iterator over no partitions.
func EmptyRawPartitions() RawPartitionIterator {
	return &rawPartitionSlice{idx: -1}
}

func (it *rawPartitionSlice) Next() bool {
	if it.idx+1 >= len(it.parts) {
		it.idx = len(it.parts)
		return false
	}
	it.idx++
	return true
}

func (it *rawPartitionSlice) Partition() types.RawPartition { return it.parts[it.idx] }

func (it *rawPartitionSlice) Err() error {
	if it.idx >= len(it.parts) {
		return it.err
	}
	return nil
}

func (it *rawPartitionSlice) Close() error { return nil }
