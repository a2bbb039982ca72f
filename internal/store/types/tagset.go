package types

import (
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Tag is one key/value attribution label.
type Tag struct {
	Key   string
	Value string
}

// TagSet is an immutable set of workload-attribution labels attached to
// write-path statistics. Insertion order is irrelevant: equality and
// hashing are order-independent. A TagSet carries no business meaning
// beyond telemetry grouping.
type TagSet struct {
	tags []Tag // sorted by key, then value
}

// NewTagSet builds a TagSet from key/value pairs. Duplicate pairs are
// collapsed.
func NewTagSet(tags ...Tag) TagSet {
	if len(tags) == 0 {
		return TagSet{}
	}
	sorted := make([]Tag, len(tags))
	copy(sorted, tags)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Key != sorted[j].Key {
			return sorted[i].Key < sorted[j].Key
		}
		return sorted[i].Value < sorted[j].Value
	})
	out := sorted[:1]
	for _, t := range sorted[1:] {
		if last := out[len(out)-1]; t != last {
			out = append(out, t)
		}
	}
	return TagSet{tags: out}
}

// TagSetFromMap builds a TagSet from a map of labels.
func TagSetFromMap(m map[string]string) TagSet {
	tags := make([]Tag, 0, len(m))
	for k, v := range m {
		tags = append(tags, Tag{Key: k, Value: v})
	}
	return NewTagSet(tags...)
}

// Tags returns a copy of the labels in canonical (sorted) order.
func (s TagSet) Tags() []Tag {
	out := make([]Tag, len(s.tags))
	copy(out, s.tags)
	return out
}

// Len returns the number of labels.
func (s TagSet) Len() int {
	return len(s.tags)
}

// Equal reports whether two tag sets carry the same labels, regardless of
// the order they were constructed in.
func (s TagSet) Equal(other TagSet) bool {
	if len(s.tags) != len(other.tags) {
		return false
	}
	for i := range s.tags {
		if s.tags[i] != other.tags[i] {
			return false
		}
	}
	return true
}

// Hash returns an order-independent hash usable for grouping in a metrics
// backend.
func (s TagSet) Hash() uint64 {
	h := xxhash.New()
	for _, t := range s.tags {
		h.WriteString(t.Key)
		h.Write([]byte{0})
		h.WriteString(t.Value)
		h.Write([]byte{0xff})
	}
	return h.Sum64()
}

// String returns the canonical "k=v,k=v" form.
func (s TagSet) String() string {
	var b strings.Builder
	for i, t := range s.tags {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(t.Key)
		b.WriteByte('=')
		b.WriteString(t.Value)
	}
	return b.String()
}
