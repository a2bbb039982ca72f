package types

import "time"

// EndTimeActive is the sentinel end time for a partition that is still
// actively ingesting. It sorts after every real timestamp.
const EndTimeActive int64 = 0x7FFFFFFFFFFFFFFF

// UpdateHourMillis is the width of one update-hour bucket.
const UpdateHourMillis int64 = 3_600_000

// Epoch5mMillis is the width of one 5-minute epoch bucket used by the
// part-key update log.
const Epoch5mMillis int64 = 300_000

// PartKeyRecord is one partition's identity blob plus the time interval
// during which it was active on a given shard. PartKey is an opaque,
// schema-encoded byte sequence; StartTime and EndTime are epoch
// milliseconds. Records are values and may be copied freely.
type PartKeyRecord struct {
	PartKey   []byte
	StartTime int64
	EndTime   int64
	Shard     int32
}

// Active reports whether the partition is still ingesting.
func (r PartKeyRecord) Active() bool {
	return r.EndTime == EndTimeActive
}

// Bytes returns the byte size of the record's identity blob.
func (r PartKeyRecord) Bytes() int {
	return len(r.PartKey)
}

// UpdateHour returns the hour bucket containing the given epoch-millisecond
// timestamp. Part-key change events are indexed by this bucket so that
// downstream shards can discover updated partitions without a full scan.
// Buckets are floored, so pre-1970 timestamps land in negative buckets
// rather than sharing bucket 0 with the first hour.
func UpdateHour(epochMillis int64) int64 {
	return floorDiv(epochMillis, UpdateHourMillis)
}

// CurrentUpdateHour returns the update hour for the current wall clock.
func CurrentUpdateHour() int64 {
	return UpdateHour(time.Now().UnixMilli())
}

// Epoch5mBucket returns the 5-minute epoch bucket containing the given
// epoch-millisecond timestamp. Floored like UpdateHour.
func Epoch5mBucket(epochMillis int64) int64 {
	return floorDiv(epochMillis, Epoch5mMillis)
}

// floorDiv divides rounding toward negative infinity, unlike Go's
// truncating division.
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b < 0 {
		q--
	}
	return q
}
