package shard

import (
	"fmt"
	"hash/fnv"
	"sort"
)

// DefaultReplicas is the number of virtual nodes placed per store.
const DefaultReplicas = 100

type ringPoint struct {
	hash  uint64
	owner int
}

// Ring implements consistent hashing with virtual nodes over a 64-bit key space.
// Adding store n to a ring of n stores only moves keys onto the new store;
// on average 1/(n+1) of them.
type Ring struct {
	points   []ringPoint
	replicas int
	n        int
}

// NewRing builds a ring for stores 0..n-1 with the given replica factor per store.
func NewRing(n, replicas int) (*Ring, error) {
	if n <= 0 {
		return nil, fmt.Errorf("shard: store count must be positive, got %d", n)
	}
	if replicas <= 0 {
		replicas = DefaultReplicas
	}

	pts := make([]ringPoint, 0, n*replicas)
	for s := 0; s < n; s++ {
		for v := 0; v < replicas; v++ {
			// Golden-ratio multiply decorrelates sequential (store, replica) seeds;
			// +1 keeps store 0 from collapsing to zero before mixing.
			seed := (uint64(s)+1)*0x9e3779b97f4a7c15 + uint64(v)
			pts = append(pts, ringPoint{hash: mix64(seed), owner: s})
		}
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].hash < pts[j].hash })

	return &Ring{points: pts, replicas: replicas, n: n}, nil
}

func (r *Ring) Name() string { return "ring" }

func (r *Ring) Size() int { return r.n }

// Route returns the owner of the first ring point at or after the key's hash.
func (r *Ring) Route(key string) int {
	return r.Owner(HashKey(key))
}

// Owner returns the store index for a 64-bit key hash.
func (r *Ring) Owner(key uint64) int {
	if len(r.points) == 0 {
		return 0
	}
	i := sort.Search(len(r.points), func(i int) bool { return r.points[i].hash >= key })
	if i == len(r.points) {
		i = 0
	}
	return r.points[i].owner
}

// HashKey is FNV-1a 64 of the key bytes, run through mix64 so keys that only
// differ in a few trailing bytes still land far apart on the ring.
func HashKey(key string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return mix64(h.Sum64())
}

// mix64 is the fmix64 finalizer from MurmurHash3. Not for security use.
func mix64(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}
