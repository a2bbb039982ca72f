// Package store defines the persistence contract of the time-series
// database: how columnar chunks and partition-identity records are written
// to and read from a durable backing store.
//
// Architecture:
//
//	┌─────────────┐     ┌───────────────┐     ┌──────────────┐
//	│  Ingestion  │────▶│   ChunkSink   │────▶│   Backend    │
//	│  Pipeline   │     │(backpressured │     │ (duckstore / │
//	└─────────────┘     │   streams)    │     │  nullstore)  │
//	                    └───────────────┘     └──────────────┘
//	                           │
//	                           ▼
//	                    ┌──────────────┐
//	                    │  ColumnStore │──▶ index rebuild / downsample
//	                    │  (read side) │    bootstrap readers
//	                    └──────────────┘
//
// The contract provides:
//   - Backpressured streaming chunk and part-key writes with per-element
//     durability listeners
//   - Deterministic part-key bucketing, stable across process restarts
//   - Hour-bucketed part-key update propagation for incremental index
//     maintenance without full-table scans
//   - Lazy, error-terminated read sequences and disjoint scan splits for
//     parallel read fan-out
package store
