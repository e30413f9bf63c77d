package shard

import "sync/atomic"

// RoundRobin is a rotation cursor over n stores. Every call to Next advances it,
// whatever the caller does with the index.
type RoundRobin struct {
	n    uint64
	next atomic.Uint64
}

// NewRoundRobin returns a cursor starting at store 0. n must be positive.
func NewRoundRobin(n int) *RoundRobin {
	if n <= 0 {
		n = 1
	}
	return &RoundRobin{n: uint64(n)}
}

// Next returns the current store index and advances the cursor.
// Safe for concurrent use; concurrent callers may interleave, but the cursor
// itself only moves forward.
func (r *RoundRobin) Next() int {
	return int((r.next.Add(1) - 1) % r.n)
}

// Size is the number of stores in rotation.
func (r *RoundRobin) Size() int {
	return int(r.n)
}
