package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/7930navid/posts-server/internal/keepalive"
	"github.com/7930navid/posts-server/internal/seed"
	"github.com/7930navid/posts-server/internal/shard"
)

func TestKeysFrom(t *testing.T) {
	keys, err := keysFrom([]string{" Alice@X.com ", ""}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice@x.com"}, keys)

	keys, err = keysFrom(nil, strings.NewReader("a@x.com\n\nB@x.com\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, keys)

	_, err = keysFrom(nil, strings.NewReader("\n"))
	assert.Error(t, err)
}

func TestRouteKeys(t *testing.T) {
	routes, err := routeKeys([]string{"hello"}, 3, shard.DefaultReplicas)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, 1, routes[0].Hash)

	ring, err := shard.NewRing(3, shard.DefaultReplicas)
	require.NoError(t, err)
	assert.Equal(t, ring.Route("hello"), routes[0].Ring)

	_, err = routeKeys([]string{"hello"}, 0, shard.DefaultReplicas)
	assert.Error(t, err)
}

func TestWriteRoutes(t *testing.T) {
	routes := []Route{{Email: "hello", Hash: 1, Ring: 2}}

	var buf bytes.Buffer
	require.NoError(t, writeRoutes(&buf, routes, "table"))
	assert.Contains(t, buf.String(), "EMAIL")
	assert.Contains(t, buf.String(), "hello")

	buf.Reset()
	require.NoError(t, writeRoutes(&buf, routes, "yaml"))
	var decoded []Route
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, routes, decoded)

	assert.Error(t, writeRoutes(&buf, routes, "xml"))
}

func TestPlanMoves(t *testing.T) {
	keys := seed.NewFactory(3).Emails(500)

	same, err := planMoves(keys, shard.StrategyRing, 3, 3, shard.DefaultReplicas)
	require.NoError(t, err)
	assert.Equal(t, 0, same.Moved)
	assert.Empty(t, same.Moves)

	grow, err := planMoves(keys, shard.StrategyRing, 4, 5, shard.DefaultReplicas)
	require.NoError(t, err)
	assert.Equal(t, len(grow.Moves), grow.Moved)
	for _, m := range grow.Moves {
		assert.Equal(t, 4, m.To, "ring growth only moves keys onto the new store")
	}

	_, err = planMoves(keys, shard.StrategyRoundRobin, 2, 3, shard.DefaultReplicas)
	assert.Error(t, err)
}

func TestWritePlan(t *testing.T) {
	p := &Plan{Strategy: "hash", From: 2, To: 3, Keys: 2, Moved: 1, Moves: []Move{{Email: "a@x.com", From: 0, To: 2}}}

	var buf bytes.Buffer
	require.NoError(t, writePlan(&buf, p, "table", true))
	assert.Contains(t, buf.String(), "a@x.com")
	assert.Contains(t, buf.String(), "1 of 2 keys move (hash, 2 -> 3 stores)")

	buf.Reset()
	require.NoError(t, writePlan(&buf, p, "table", false))
	assert.NotContains(t, buf.String(), "a@x.com")

	buf.Reset()
	require.NoError(t, writePlan(&buf, p, "yaml", false))
	var decoded Plan
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 1, decoded.Moved)
	assert.Empty(t, decoded.Moves)
}

func TestPrintStatuses(t *testing.T) {
	var buf bytes.Buffer
	printStatuses(&buf, []keepalive.Status{{
		Store:     0,
		Name:      "db:5432/posts",
		State:     keepalive.StateUnhealthy,
		LastCheck: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		LastError: "refused",
	}})
	out := buf.String()
	assert.Contains(t, out, "db:5432/posts")
	assert.Contains(t, out, "unhealthy")
	assert.Contains(t, out, "refused")
}
