package shard

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/7930navid/posts-server/internal/observability"
)

// Strategy names accepted by NewRouter.
const (
	StrategySingle     = "single"
	StrategyRoundRobin = "roundrobin"
	StrategyHash       = "hash"
	StrategyRing       = "ring"
)

// DefaultQueryTimeout bounds a single store attempt when RouterConfig leaves it unset.
const DefaultQueryTimeout = 5 * time.Second

// RouterConfig selects a strategy for a fixed set of stores.
type RouterConfig struct {
	Strategy     string
	Stores       int
	RingReplicas int
	QueryTimeout time.Duration
}

// Router runs per-store functions according to the partition strategy.
// Keyed strategies (single, hash, ring) own every key on exactly one store;
// roundrobin has no owner and spreads operations with failover.
type Router struct {
	name    string
	n       int
	keyed   PartitionStrategy
	rr      *RoundRobin
	timeout time.Duration
}

// NewRouter validates cfg and builds the matching router.
func NewRouter(cfg RouterConfig) (*Router, error) {
	if cfg.Stores <= 0 {
		return nil, ErrNoStores
	}
	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}

	r := &Router{name: cfg.Strategy, n: cfg.Stores, timeout: timeout}

	switch cfg.Strategy {
	case StrategySingle:
		if cfg.Stores != 1 {
			return nil, fmt.Errorf("shard: strategy %q needs exactly one store, got %d", cfg.Strategy, cfg.Stores)
		}
		r.keyed = Single{}
	case StrategyRoundRobin:
		r.rr = NewRoundRobin(cfg.Stores)
	case StrategyHash:
		m, err := NewModHash(cfg.Stores)
		if err != nil {
			return nil, err
		}
		r.keyed = m
	case StrategyRing:
		ring, err := NewRing(cfg.Stores, cfg.RingReplicas)
		if err != nil {
			return nil, err
		}
		r.keyed = ring
	default:
		return nil, fmt.Errorf("shard: unknown partition strategy %q", cfg.Strategy)
	}

	return r, nil
}

// Strategy returns the configured strategy name.
func (r *Router) Strategy() string { return r.name }

// Size returns the number of stores.
func (r *Router) Size() int { return r.n }

// Owner returns the store that owns key. ok is false for roundrobin, where
// no store owns a key.
func (r *Router) Owner(key string) (int, bool) {
	if r.keyed == nil {
		return 0, false
	}
	return r.keyed.Route(key), true
}

// Exec runs a keyed operation: on the owning store, or with failover under roundrobin.
func (r *Router) Exec(ctx context.Context, op, key string, fn StoreFunc) error {
	if store, ok := r.Owner(key); ok {
		return r.attempt(ctx, op, store, fn)
	}
	return r.failover(ctx, op, fn)
}

// Global runs an operation that has no key. Keyed strategies fan out to every
// store and fail on the first store error. Roundrobin makes a single failover
// call, so it only sees the rows of whichever store answered.
func (r *Router) Global(ctx context.Context, op string, fn StoreFunc) error {
	if r.keyed == nil {
		return r.failover(ctx, op, fn)
	}
	return r.Broadcast(ctx, op, fn)
}

// Sweep runs a bulk operation for one key. Keyed strategies only touch the
// owning store; roundrobin broadcasts.
func (r *Router) Sweep(ctx context.Context, op, key string, fn StoreFunc) error {
	if store, ok := r.Owner(key); ok {
		return r.attempt(ctx, op, store, fn)
	}
	return r.Broadcast(ctx, op, fn)
}

// Broadcast runs fn on every store concurrently. The first error cancels the
// remaining attempts and is returned.
func (r *Router) Broadcast(ctx context.Context, op string, fn StoreFunc) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < r.n; i++ {
		store := i
		g.Go(func() error {
			return r.attempt(gctx, op, store, fn)
		})
	}
	return g.Wait()
}

func (r *Router) failover(ctx context.Context, op string, fn StoreFunc) error {
	tries := 0
	err := Failover(ctx, r.rr, func(ctx context.Context, store int) error {
		if tries > 0 {
			observability.StoreFailovers.WithLabelValues(op).Inc()
		}
		tries++
		return r.attempt(ctx, op, store, fn)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// attempt runs fn once against store under the per-query timeout.
func (r *Router) attempt(ctx context.Context, op string, store int, fn StoreFunc) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ctx, span := observability.StartStoreSpan(ctx, op, r.name, store)
	defer span.End()

	start := time.Now()
	err := fn(ctx, store)
	observability.ObserveStoreQuery(op, store, start, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("store %d: %w", store, err)
	}
	return nil
}
