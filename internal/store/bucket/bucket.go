// Package bucket computes stable, shard-local bucket numbers for partition
// keys. Buckets decouple part-key write/scan parallelism from the shard
// count: the bucket count can be tuned per deployment without re-sharding.
//
// The hash function and the exact byte span hashed are part of the on-disk
// contract. Changing either requires a data migration, never a silent
// behavior change.
package bucket

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// PartKeySchema exposes the schema-defined partition hash: a deterministic,
// order-independent hash of the part key's tag content, excluding volatile
// fields. Provided by the metadata subsystem.
type PartKeySchema interface {
	// PartitionHash hashes the tag-content span of an encoded part key.
	PartitionHash(partKey []byte) uint32
}

// TagHashSchema is a PartKeySchema that hashes everything past a fixed
// volatile header prefix with xxhash. It is the default schema for
// datasets whose part-key encoding places all volatile fields in the
// header.
type TagHashSchema struct {
	// HeaderLen is the number of leading bytes excluded from the hash.
	HeaderLen int
}

// PartitionHash implements PartKeySchema.
func (s TagHashSchema) PartitionHash(partKey []byte) uint32 {
	span := partKey
	if s.HeaderLen > 0 && s.HeaderLen < len(partKey) {
		span = partKey[s.HeaderLen:]
	}
	return uint32(xxhash.Sum64(span))
}

// Bucket maps a part key to a bucket in [0, numBuckets). For a fixed
// schema and bucket count the result is pure and stable across process
// restarts: every reader and writer of a dataset must agree on it.
// numBuckets must be positive.
func Bucket(schema PartKeySchema, partKey []byte, numBuckets int) int {
	return BucketOfHash(schema.PartitionHash(partKey), numBuckets)
}

// BucketOfHash maps an already-computed partition hash to a bucket. The
// schema hash is mixed through xxhash so that schemas with weak low bits
// still spread evenly, then the sign bit is masked before the modulo.
func BucketOfHash(partitionHash uint32, numBuckets int) int {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], partitionHash)
	mixed := int64(xxhash.Sum64(buf[:])) & 0x7FFFFFFFFFFFFFFF
	return int(mixed % int64(numBuckets))
}
