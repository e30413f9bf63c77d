package shard

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeys(n int) []string {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = fmt.Sprintf("user%d@example.com", i)
	}
	return keys
}

func TestRing_Deterministic(t *testing.T) {
	a, err := NewRing(4, DefaultReplicas)
	require.NoError(t, err)
	b, err := NewRing(4, DefaultReplicas)
	require.NoError(t, err)

	for _, k := range testKeys(1000) {
		require.Equal(t, a.Route(k), b.Route(k))
	}
}

func TestRing_SpreadsKeys(t *testing.T) {
	r, err := NewRing(4, DefaultReplicas)
	require.NoError(t, err)

	counts := make([]int, 4)
	for _, k := range testKeys(10000) {
		counts[r.Route(k)]++
	}
	for store, c := range counts {
		assert.Greater(t, c, 1000, "store %d got too few keys", store)
	}
}

func TestRing_AddingStoreMovesFewKeys(t *testing.T) {
	before, err := NewRing(4, DefaultReplicas)
	require.NoError(t, err)
	after, err := NewRing(5, DefaultReplicas)
	require.NoError(t, err)

	keys := testKeys(10000)
	moved := 0
	for _, k := range keys {
		from, to := before.Route(k), after.Route(k)
		if from != to {
			moved++
			require.Equal(t, 4, to, "key %s moved between existing stores", k)
		}
	}
	assert.Less(t, float64(moved)/float64(len(keys)), 0.35)
	assert.Greater(t, moved, 0)
}

func TestModHash_AddingStoreMovesMostKeys(t *testing.T) {
	keys := testKeys(10000)
	moved := 0
	for _, k := range keys {
		if HashToIndex(k, 4) != HashToIndex(k, 5) {
			moved++
		}
	}
	assert.Greater(t, float64(moved)/float64(len(keys)), 0.6)
}

func TestNewRing_Defaults(t *testing.T) {
	_, err := NewRing(0, 10)
	require.Error(t, err)

	r, err := NewRing(2, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultReplicas, r.replicas)
	assert.Len(t, r.points, 2*DefaultReplicas)
	assert.Equal(t, "ring", r.Name())
	assert.Equal(t, 2, r.Size())
}
