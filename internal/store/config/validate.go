package config

import (
	"errors"
	"fmt"
)

// validConsistencyLevels are the levels the contract understands. Concrete
// backends map them onto whatever their protocol supports.
var validConsistencyLevels = map[string]bool{
	"any":          true,
	"one":          true,
	"two":          true,
	"quorum":       true,
	"all":          true,
	"local_one":    true,
	"local_quorum": true,
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.ChunkTTL <= 0 {
		errs = append(errs, errors.New("chunk_ttl must be positive"))
	}
	if c.PartKeyTTL <= 0 {
		errs = append(errs, errors.New("part_key_ttl must be positive"))
	}
	if c.PartKeyBuckets <= 0 {
		errs = append(errs, errors.New("part_key_buckets must be positive"))
	}
	if c.ScanSplitsPerNode <= 0 {
		errs = append(errs, errors.New("scan_splits_per_node must be positive"))
	}

	if err := c.Consistency.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("consistency: %w", err))
	}
	if err := c.Stream.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("stream: %w", err))
	}
	if err := c.Retry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("retry: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the consistency configuration.
func (c *ConsistencyConfig) Validate() error {
	var errs []error

	for _, knob := range []struct{ name, level string }{
		{"write", c.Write},
		{"checkpoint_read", c.CheckpointRead},
		{"default_read", c.DefaultRead},
	} {
		if !validConsistencyLevels[knob.level] {
			errs = append(errs, fmt.Errorf("unknown %s level %q", knob.name, knob.level))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the stream configuration.
func (c *StreamConfig) Validate() error {
	var errs []error

	if c.QueueCapacity < 0 {
		errs = append(errs, errors.New("queue_capacity must not be negative"))
	}
	if c.WriteParallelism <= 0 {
		errs = append(errs, errors.New("write_parallelism must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the retry configuration.
func (c *RetryConfig) Validate() error {
	var errs []error

	if c.MaxRetries < 0 {
		errs = append(errs, errors.New("max_retries must not be negative"))
	}
	if c.InitialInterval <= 0 {
		errs = append(errs, errors.New("initial_interval must be positive"))
	}
	if c.MaxInterval < c.InitialInterval {
		errs = append(errs, errors.New("max_interval must be at least initial_interval"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
