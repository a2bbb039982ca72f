// Package duckstore implements the full persistence contract on an
// embedded DuckDB database.
//
// Chunks, part keys, hour-bucketed part-key updates and the offset-bearing
// update log live in per-dataset tables. DuckDB has no native row TTL, so
// retention is emulated: every row carries an expires_at timestamp that is
// filtered on read and removed by PurgeExpired. The engine is embedded, so
// the configured consistency levels have no effect here; they are accepted
// and logged for parity with networked backends.
package duckstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/UltimateTournament/backoff/v4"
	_ "github.com/marcboeker/go-duckdb"

	"github.com/yu-shipit/FiloDB-sub000/internal/errors"
	"github.com/yu-shipit/FiloDB-sub000/internal/logging"
	"github.com/yu-shipit/FiloDB-sub000/internal/store"
	"github.com/yu-shipit/FiloDB-sub000/internal/store/bucket"
	"github.com/yu-shipit/FiloDB-sub000/internal/store/config"
	"github.com/yu-shipit/FiloDB-sub000/internal/store/stats"
	"github.com/yu-shipit/FiloDB-sub000/internal/store/types"
)

// Store is the DuckDB-backed ColumnStore.
type Store struct {
	mu sync.RWMutex

	config *config.Config
	db     *sql.DB
	schema bucket.PartKeySchema
	stats  *stats.SinkStats
	log    *slog.Logger

	// datasets caches the shard count recorded at Initialize, keyed by
	// dataset. Cleared by Reset; the durable copy lives in the meta
	// table.
	datasets map[types.DatasetRef]int

	closed bool
}

// compile-time contract check
var _ store.ColumnStore = (*Store)(nil)

// Open opens (or creates) the embedded database and the global meta table.
func Open(cfg *config.Config, schema bucket.PartKeySchema, tags types.TagSet) (*Store, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if schema == nil {
		schema = bucket.TagHashSchema{}
	}

	db, err := sql.Open("duckdb", cfg.DuckDB.Path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	if cfg.DuckDB.MemoryLimit != "" {
		if _, err := db.Exec(fmt.Sprintf("SET memory_limit='%s'", cfg.DuckDB.MemoryLimit)); err != nil {
			db.Close()
			return nil, fmt.Errorf("set memory limit: %w", err)
		}
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS chunkstore_meta (
		dataset    VARCHAR PRIMARY KEY,
		num_shards INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create meta table: %w", err)
	}

	log := logging.Component("duckstore")
	log.Info("store opened",
		"path", cfg.DuckDB.Path,
		"write_consistency", cfg.Consistency.Write,
		"note", "consistency levels ignored by embedded engine")

	return &Store{
		config:   cfg,
		db:       db,
		schema:   schema,
		stats:    stats.New(tags),
		log:      log,
		datasets: make(map[types.DatasetRef]int),
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Initialize provisions the dataset's tables for the given shard count.
// Idempotent; a repeat call with a different shard count fails with a
// configuration error.
func (s *Store) Initialize(ctx context.Context, dataset types.DatasetRef, numShards int, resources map[string]string) error {
	if numShards <= 0 {
		return errors.NewValidation("num_shards", "must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.ErrStoreClosed
	}

	if cached, ok := s.datasets[dataset]; ok && cached != numShards {
		return errors.Wrapf(errors.ErrShardCountMismatch, "dataset %s initialized with %d shards, requested %d",
			dataset, cached, numShards)
	}

	var existing int
	err := s.db.QueryRowContext(ctx, `SELECT num_shards FROM chunkstore_meta WHERE dataset = ?`, dataset.String()).Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
		if _, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO chunkstore_meta (dataset, num_shards) VALUES (?, ?)`,
			dataset.String(), numShards); err != nil {
			return errors.Wrap(err, "record dataset meta")
		}
	case err != nil:
		return errors.Wrap(err, "read dataset meta")
	case existing != numShards:
		return errors.Wrapf(errors.ErrShardCountMismatch, "dataset %s initialized with %d shards, requested %d",
			dataset, existing, numShards)
	}

	t := tablesFor(dataset)
	for _, ddl := range []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			part_key   BLOB NOT NULL,
			shard      INTEGER NOT NULL,
			bucket     INTEGER NOT NULL,
			start_ts   BIGINT NOT NULL,
			end_ts     BIGINT NOT NULL,
			column_id  INTEGER NOT NULL,
			data       BLOB NOT NULL,
			expires_at BIGINT NOT NULL
		)`, t.chunks),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			shard      INTEGER NOT NULL,
			bucket     INTEGER NOT NULL,
			part_key   BLOB NOT NULL,
			start_ts   BIGINT NOT NULL,
			end_ts     BIGINT NOT NULL,
			expires_at BIGINT NOT NULL,
			PRIMARY KEY (shard, part_key)
		)`, t.partKeys),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			shard       INTEGER NOT NULL,
			update_hour BIGINT NOT NULL,
			part_key    BLOB NOT NULL,
			start_ts    BIGINT NOT NULL,
			end_ts      BIGINT NOT NULL,
			expires_at  BIGINT NOT NULL,
			PRIMARY KEY (shard, update_hour, part_key)
		)`, t.partKeysByHour),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			epoch_5m   BIGINT NOT NULL,
			seq        BIGINT NOT NULL,
			updated_ms BIGINT NOT NULL,
			shard      INTEGER NOT NULL,
			part_key   BLOB NOT NULL,
			start_ts   BIGINT NOT NULL,
			end_ts     BIGINT NOT NULL,
			PRIMARY KEY (epoch_5m, seq, part_key)
		)`, t.updateLog),
	} {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return errors.Wrapf(err, "provision dataset %s", dataset)
		}
	}

	s.datasets[dataset] = numShards
	s.log.Info("dataset initialized", "dataset", dataset.String(), "shards", numShards)
	return nil
}

// Truncate clears all rows for the dataset, keeping table definitions.
// The caller guarantees no concurrent writers.
func (s *Store) Truncate(ctx context.Context, dataset types.DatasetRef, numShards int) error {
	t := tablesFor(dataset)
	for _, table := range t.all() {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return errors.Wrapf(err, "truncate %s", table)
		}
	}
	s.log.Info("dataset truncated", "dataset", dataset.String())
	return nil
}

// DropDataset permanently removes the dataset's tables and meta row.
func (s *Store) DropDataset(ctx context.Context, dataset types.DatasetRef, numShards int) error {
	t := tablesFor(dataset)
	for _, table := range t.all() {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return errors.Wrapf(err, "drop %s", table)
		}
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunkstore_meta WHERE dataset = ?`, dataset.String()); err != nil {
		return errors.Wrap(err, "drop dataset meta")
	}

	s.mu.Lock()
	delete(s.datasets, dataset)
	s.mu.Unlock()

	s.log.Info("dataset dropped", "dataset", dataset.String())
	return nil
}

// Reset clears the in-memory dataset cache. Durable state is untouched.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasets = make(map[types.DatasetRef]int)
}

// Stats returns the write-path statistics recorder.
func (s *Store) Stats() *stats.SinkStats {
	return s.stats
}

// PurgeExpired removes rows whose emulated TTL has elapsed. Intended to be
// driven by a periodic maintenance job.
func (s *Store) PurgeExpired(ctx context.Context, dataset types.DatasetRef) error {
	now := time.Now().UnixMilli()
	t := tablesFor(dataset)
	for _, table := range []string{t.chunks, t.partKeys, t.partKeysByHour} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE expires_at <= ?", now); err != nil {
			return errors.Wrapf(err, "purge %s", table)
		}
	}
	return nil
}

// execRetry runs fn with exponential backoff and jitter. Context
// cancellation and configuration errors are permanent; anything else that
// still fails once the retry budget is spent comes back marked transient
// so callers can classify it with errors.IsTransient.
func (s *Store) execRetry(ctx context.Context, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.config.Retry.InitialInterval.Duration()
	b.MaxInterval = s.config.Retry.MaxInterval.Duration()

	op := func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || errors.IsConfig(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(b, uint64(s.config.Retry.MaxRetries)), ctx))
	if err == nil || ctx.Err() != nil || errors.IsConfig(err) {
		return err
	}
	return errors.Transient(err)
}

// tables groups a dataset's table names.
type tables struct {
	chunks         string
	partKeys       string
	partKeysByHour string
	updateLog      string
}

func (t tables) all() []string {
	return []string{t.chunks, t.partKeys, t.partKeysByHour, t.updateLog}
}

func tablesFor(dataset types.DatasetRef) tables {
	base := "cs_" + sanitizeIdent(dataset.String())
	return tables{
		chunks:         base + "_chunks",
		partKeys:       base + "_partkeys",
		partKeysByHour: base + "_partkeys_by_uh",
		updateLog:      base + "_pk_updates",
	}
}

// sanitizeIdent maps a dataset ref into a safe SQL identifier.
func sanitizeIdent(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// expiryMillis converts a TTL in seconds to an absolute expiry timestamp.
func expiryMillis(ttlSeconds int) int64 {
	return time.Now().UnixMilli() + int64(ttlSeconds)*1000
}
