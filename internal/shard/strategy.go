package shard

import "fmt"

// PartitionStrategy maps a partition key to the index of the store that owns it.
type PartitionStrategy interface {
	// Name identifies the strategy in logs and metrics.
	Name() string
	// Size is the number of stores keys are spread over.
	Size() int
	// Route returns a store index in [0, Size()). Same key, same index, for as
	// long as the store set is unchanged.
	Route(key string) int
}

// ModHash routes with HashToIndex.
type ModHash struct {
	n int
}

// NewModHash returns a hash-mod-n strategy over n stores.
func NewModHash(n int) (*ModHash, error) {
	if n <= 0 {
		return nil, fmt.Errorf("shard: store count must be positive, got %d", n)
	}
	return &ModHash{n: n}, nil
}

func (m *ModHash) Name() string { return "hash" }

func (m *ModHash) Size() int { return m.n }

func (m *ModHash) Route(key string) int {
	return HashToIndex(key, m.n)
}

// Single sends every key to store 0.
type Single struct{}

func (Single) Name() string { return "single" }

func (Single) Size() int { return 1 }

func (Single) Route(string) int { return 0 }
