package duckstore

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yu-shipit/FiloDB-sub000/internal/errors"
	"github.com/yu-shipit/FiloDB-sub000/internal/logging"
	"github.com/yu-shipit/FiloDB-sub000/internal/store"
	"github.com/yu-shipit/FiloDB-sub000/internal/store/bucket"
	"github.com/yu-shipit/FiloDB-sub000/internal/store/types"
)

// partKeyBatchSize bounds how many records one transaction carries.
const partKeyBatchSize = 128

// WriteChunks drains the chunk stream with a bounded worker pool.
// Admission from the stream is in order; durability acknowledgments (and
// listener firings) may complete out of order across workers. The call
// returns after the stream is exhausted and every set is durable, or with
// the first unrecoverable error, at which point the stream is abandoned.
func (s *Store) WriteChunks(ctx context.Context, dataset types.DatasetRef, chunks *store.ChunkStream, diskTTLSeconds int) error {
	ctx = logging.ContextWithDataset(ctx, dataset.String())
	if diskTTLSeconds <= 0 {
		diskTTLSeconds = s.config.ChunkTTLSeconds()
	}
	expires := expiryMillis(diskTTLSeconds)
	t := tablesFor(dataset)

	var accepted atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.config.Stream.WriteParallelism; i++ {
		g.Go(func() error {
			for {
				select {
				case cs, ok := <-chunks.C():
					if !ok {
						return chunks.Err()
					}
					if err := s.insertChunkSet(gctx, t, cs, expires); err != nil {
						return err
					}
					s.stats.RecordChunkSet(cs)
					cs.Invoke()
					accepted.Add(1)
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		chunks.Abandon(err)
		return err
	}
	logging.WithContext(ctx).Debug("chunk stream drained", "chunk_sets", accepted.Load())
	return nil
}

// insertChunkSet writes one chunk set's per-column rows in a single
// transaction, retrying transiently failing attempts.
func (s *Store) insertChunkSet(ctx context.Context, t tables, cs *types.ChunkSet, expires int64) error {
	bkt := bucket.Bucket(s.schema, cs.PartKey, s.config.PartKeyBuckets)

	return s.execRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return errors.Wrap(err, "begin chunk tx")
		}
		defer tx.Rollback()

		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO "+t.chunks+" (part_key, shard, bucket, start_ts, end_ts, column_id, data, expires_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)")
		if err != nil {
			return errors.Wrap(err, "prepare chunk insert")
		}
		defer stmt.Close()

		for i := range cs.Chunks {
			c := &cs.Chunks[i]
			if _, err := stmt.ExecContext(ctx, cs.PartKey, cs.Shard, bkt, cs.StartTime, cs.EndTime, c.ColumnID, c.Data, expires); err != nil {
				return errors.Wrap(err, "insert chunk")
			}
		}
		return errors.Wrap(tx.Commit(), "commit chunk tx")
	})
}

// WritePartKeys registers partition identities for a shard, optionally
// mirroring each record into the hour-bucketed update table.
func (s *Store) WritePartKeys(ctx context.Context, dataset types.DatasetRef, shard int32, keys *store.PartKeyStream,
	diskTTLSeconds int, updateHour int64, writeToUpdateTable bool) error {
	ctx = logging.ContextWithShard(logging.ContextWithDataset(ctx, dataset.String()), shard)
	if diskTTLSeconds <= 0 {
		diskTTLSeconds = s.config.PartKeyTTLSeconds()
	}
	expires := expiryMillis(diskTTLSeconds)
	t := tablesFor(dataset)

	batch := make([]types.PartKeyRecord, 0, partKeyBatchSize)
	total, totalBytes := 0, 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.insertPartKeys(ctx, t, batch, expires, updateHour, writeToUpdateTable); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	for {
		select {
		case rec, ok := <-keys.C():
			if !ok {
				if err := keys.Err(); err != nil {
					return err
				}
				if err := flush(); err != nil {
					keys.Abandon(err)
					return err
				}
				s.stats.RecordPartKeys(total, totalBytes)
				logging.WithContext(ctx).Debug("part keys written", "records", total)
				return nil
			}
			batch = append(batch, rec)
			totalBytes += rec.Bytes()
			if len(batch) >= partKeyBatchSize {
				if err := flush(); err != nil {
					keys.Abandon(err)
					return err
				}
			}
		case <-ctx.Done():
			keys.Abandon(ctx.Err())
			return ctx.Err()
		}
	}
}

// insertPartKeys upserts one batch in a single transaction.
func (s *Store) insertPartKeys(ctx context.Context, t tables, batch []types.PartKeyRecord,
	expires, updateHour int64, writeToUpdateTable bool) error {
	return s.execRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return errors.Wrap(err, "begin part-key tx")
		}
		defer tx.Rollback()

		upsert, err := tx.PrepareContext(ctx,
			"INSERT OR REPLACE INTO "+t.partKeys+" (shard, bucket, part_key, start_ts, end_ts, expires_at) VALUES (?, ?, ?, ?, ?, ?)")
		if err != nil {
			return errors.Wrap(err, "prepare part-key upsert")
		}
		defer upsert.Close()

		for _, rec := range batch {
			bkt := bucket.Bucket(s.schema, rec.PartKey, s.config.PartKeyBuckets)
			if _, err := upsert.ExecContext(ctx, rec.Shard, bkt, rec.PartKey, rec.StartTime, rec.EndTime, expires); err != nil {
				return errors.Wrap(err, "upsert part key")
			}
		}

		if writeToUpdateTable {
			mirror, err := tx.PrepareContext(ctx,
				"INSERT OR REPLACE INTO "+t.partKeysByHour+" (shard, update_hour, part_key, start_ts, end_ts, expires_at) VALUES (?, ?, ?, ?, ?, ?)")
			if err != nil {
				return errors.Wrap(err, "prepare update-hour upsert")
			}
			defer mirror.Close()

			for _, rec := range batch {
				if _, err := mirror.ExecContext(ctx, rec.Shard, updateHour, rec.PartKey, rec.StartTime, rec.EndTime, expires); err != nil {
					return errors.Wrap(err, "upsert update-hour key")
				}
			}
		}

		return errors.Wrap(tx.Commit(), "commit part-key tx")
	})
}

// WritePartKeyUpdates appends change events to the offset-bearing update
// log. Offsets are unique per (dataset, epoch5mBucket) only; the caller
// must feed strictly increasing offsets per bucket.
func (s *Store) WritePartKeyUpdates(ctx context.Context, dataset types.DatasetRef, epoch5mBucket, updatedTimeMs, offset int64,
	tags types.TagSet, keys *store.PartKeyStream) error {
	t := tablesFor(dataset)
	start := time.Now()

	err := func() error {
		batch := make([]types.PartKeyRecord, 0, partKeyBatchSize)

		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			err := s.insertUpdates(ctx, t, batch, epoch5mBucket, offset, updatedTimeMs)
			batch = batch[:0]
			return err
		}

		for {
			select {
			case rec, ok := <-keys.C():
				if !ok {
					if err := keys.Err(); err != nil {
						return err
					}
					return flush()
				}
				batch = append(batch, rec)
				if len(batch) >= partKeyBatchSize {
					if err := flush(); err != nil {
						return err
					}
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}()

	if err != nil {
		keys.Abandon(err)
	}
	s.stats.RecordUpdatePublish(time.Since(start), err)
	return err
}

func (s *Store) insertUpdates(ctx context.Context, t tables, batch []types.PartKeyRecord,
	epoch5mBucket, offset, updatedTimeMs int64) error {
	return s.execRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return errors.Wrap(err, "begin update tx")
		}
		defer tx.Rollback()

		stmt, err := tx.PrepareContext(ctx,
			"INSERT OR REPLACE INTO "+t.updateLog+" (epoch_5m, seq, updated_ms, shard, part_key, start_ts, end_ts) VALUES (?, ?, ?, ?, ?, ?, ?)")
		if err != nil {
			return errors.Wrap(err, "prepare update insert")
		}
		defer stmt.Close()

		for _, rec := range batch {
			if _, err := stmt.ExecContext(ctx, epoch5mBucket, offset, updatedTimeMs, rec.Shard, rec.PartKey, rec.StartTime, rec.EndTime); err != nil {
				return errors.Wrap(err, "insert update")
			}
		}
		return errors.Wrap(tx.Commit(), "commit update tx")
	})
}

// HighestUpdateOffset returns the largest offset recorded for the given
// 5-minute bucket, for replay after a partial-stream failure. ok is false
// when the bucket holds no events.
func (s *Store) HighestUpdateOffset(ctx context.Context, dataset types.DatasetRef, epoch5mBucket int64) (offset int64, ok bool, err error) {
	t := tablesFor(dataset)
	var max *int64
	err = s.db.QueryRowContext(ctx, "SELECT MAX(seq) FROM "+t.updateLog+" WHERE epoch_5m = ?", epoch5mBucket).Scan(&max)
	if err != nil {
		return 0, false, errors.Wrap(err, "read highest offset")
	}
	if max == nil {
		return 0, false, nil
	}
	return *max, true, nil
}
