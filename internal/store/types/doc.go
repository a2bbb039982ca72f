// Package types defines the core data types used throughout the chunk store.
//
// Key types:
//   - DatasetRef: Identifier for a logical dataset
//   - PartKeyRecord: A partition identity and its active time interval
//   - ChunkSet: The per-column chunks for one partition/time-window
//   - PartitionScan / ChunkScan: Partition and chunk selection for reads
//   - TagSet: Immutable workload-attribution labels for telemetry
package types
