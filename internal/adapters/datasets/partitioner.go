// Package datasets writes pipeline output streams as partitioned, gzip compressed
// line files and chooses which partition a record lands in
package datasets

import (
	"hash/fnv"
	"math/rand/v2"

	"reddcrawl/internal/core/story"
)

// Partitioner chooses the physical partition of a record within a stream.
// The choice never changes which stream a record belongs to
type Partitioner interface {
	Choose(s story.Story, parts int) int
}

// RandomPartitioner spreads records uniformly at random
type RandomPartitioner struct{}

// Choose implements Partitioner
func (RandomPartitioner) Choose(_ story.Story, parts int) int {
	if parts <= 1 {
		return 0
	}
	return rand.IntN(parts)
}

// HashPartitioner places records by a salted FNV-1a hash of the id.
// The salt keeps placement independent from the split hash
type HashPartitioner struct {
	Salt string
}

// Choose implements Partitioner
func (p HashPartitioner) Choose(s story.Story, parts int) int {
	if parts <= 1 {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(p.Salt))
	_, _ = h.Write([]byte{':'})
	_, _ = h.Write([]byte(s.Summary.ID))
	return int(h.Sum64() % uint64(parts))
}

// PartitionerFunc adapts a function to Partitioner
type PartitionerFunc func(s story.Story, parts int) int

// Choose implements Partitioner
func (f PartitionerFunc) Choose(s story.Story, parts int) int { return f(s, parts) }

// NewPartitioner returns the named strategy: "hash" or "random" (default)
func NewPartitioner(name string) Partitioner {
	if name == "hash" {
		return HashPartitioner{Salt: "shard"}
	}
	return RandomPartitioner{}
}
