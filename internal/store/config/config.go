// Package config holds the chunk store configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML as either a
// duration string ("24h") or a plain integer of seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		var i int
		if err := unmarshal(&i); err != nil {
			return err
		}
		*d = Duration(time.Duration(i) * time.Second)
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Config represents the complete chunk store configuration.
type Config struct {
	// ChunkTTL bounds chunk retention. Applied per chunk-set at write
	// time; the write contract carries it as whole seconds.
	ChunkTTL Duration `yaml:"chunk_ttl"`

	// PartKeyTTL bounds part-key record retention. Configured separately
	// from chunks so identity records can outlive the data they index.
	PartKeyTTL Duration `yaml:"part_key_ttl"`

	// PartKeyBuckets is the number of buckets part keys are fanned
	// across, independent of shard count. Fixed per deployment: changing
	// it requires a data migration.
	PartKeyBuckets int `yaml:"part_key_buckets"`

	// ScanSplitsPerNode controls how many scan splits are requested per
	// node for parallel read fan-out.
	ScanSplitsPerNode int `yaml:"scan_splits_per_node"`

	// Consistency configures the three independent consistency knobs.
	Consistency ConsistencyConfig `yaml:"consistency"`

	// Stream configures the streaming write pipeline.
	Stream StreamConfig `yaml:"stream"`

	// Retry configures backend retry behavior for transient errors.
	Retry RetryConfig `yaml:"retry"`

	// DuckDB configures the embedded backend.
	DuckDB DuckDBConfig `yaml:"duckdb"`
}

// ConsistencyConfig exposes the write, checkpoint-read and default-read
// consistency levels as independent knobs. Backends without tunable
// consistency document that they ignore them.
type ConsistencyConfig struct {
	Write          string `yaml:"write"`
	CheckpointRead string `yaml:"checkpoint_read"`
	DefaultRead    string `yaml:"default_read"`
}

// StreamConfig configures the streaming write pipeline.
type StreamConfig struct {
	// QueueCapacity is the bounded in-flight element count per write
	// stream. The producer blocks once the queue is full.
	QueueCapacity int `yaml:"queue_capacity"`

	// WriteParallelism is the number of concurrent writers draining one
	// chunk stream. Admission stays in stream order; durability acks may
	// complete out of order.
	WriteParallelism int `yaml:"write_parallelism"`
}

// RetryConfig configures exponential backoff for transient backend errors.
type RetryConfig struct {
	MaxRetries      int      `yaml:"max_retries"`
	InitialInterval Duration `yaml:"initial_interval"`
	MaxInterval     Duration `yaml:"max_interval"`
}

// DuckDBConfig configures the embedded DuckDB backend.
type DuckDBConfig struct {
	// Path is the database file. Empty means in-memory.
	Path string `yaml:"path"`

	// MemoryLimit is the DuckDB memory limit, e.g. "2GB".
	MemoryLimit string `yaml:"memory_limit"`
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ChunkTTL:          Duration(259200 * time.Second), // 3 days
		PartKeyTTL:        Duration(30 * 24 * time.Hour),
		PartKeyBuckets:    100,
		ScanSplitsPerNode: 1,
		Consistency: ConsistencyConfig{
			Write:          "quorum",
			CheckpointRead: "quorum",
			DefaultRead:    "one",
		},
		Stream: StreamConfig{
			QueueCapacity:    64,
			WriteParallelism: 4,
		},
		Retry: RetryConfig{
			MaxRetries:      5,
			InitialInterval: Duration(100 * time.Millisecond),
			MaxInterval:     Duration(5 * time.Second),
		},
		DuckDB: DuckDBConfig{
			MemoryLimit: "2GB",
		},
	}
}

// ChunkTTLSeconds returns the chunk TTL as whole seconds, the unit the
// write contract uses.
func (c *Config) ChunkTTLSeconds() int {
	return int(c.ChunkTTL.Duration() / time.Second)
}

// PartKeyTTLSeconds returns the part-key TTL as whole seconds.
func (c *Config) PartKeyTTLSeconds() int {
	return int(c.PartKeyTTL.Duration() / time.Second)
}
