package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/iliyamo/bike-sales-counter/internal/config"
	"github.com/iliyamo/bike-sales-counter/internal/metrics"
	"github.com/iliyamo/bike-sales-counter/internal/model"
)

// ComponentLister is the store the cache snapshots.
type ComponentLister interface {
	List(ctx context.Context) ([]model.Component, error)
}

// CatalogCache is an in-memory snapshot of every component. Readers go
// through Components, which serves the snapshot while it is younger than the
// staleness window and refreshes synchronously otherwise. Start keeps it warm
// in the background and RefreshAsync lets writers invalidate it without
// waiting.
//
// When a redis client is set every refresh is mirrored under cfg.RedisKey
// with the staleness window as TTL, and a cold cache seeds itself from the
// mirror so several API instances share one warm snapshot.
type CatalogCache struct {
	src     ComponentLister
	cfg     config.CatalogConfig
	rdb     *redis.Client
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	group   singleflight.Group
	pending atomic.Bool

	mu    sync.RWMutex
	snap  []model.Component
	index map[model.ComponentKey]int
	at    time.Time
}

// snapshotRecord is the redis mirror payload.
type snapshotRecord struct {
	At         time.Time         `json:"at"`
	Components []model.Component `json:"components"`
}

func NewCatalogCache(src ComponentLister, cfg config.CatalogConfig, rdb *redis.Client, log *zap.Logger, m *metrics.Metrics) *CatalogCache {
	if cfg.Staleness <= 0 {
		cfg.Staleness = 30 * time.Second
	}
	if cfg.RefreshInterval <= 0 || cfg.RefreshInterval > cfg.Staleness {
		cfg.RefreshInterval = cfg.Staleness / 2
	}
	return &CatalogCache{src: src, cfg: cfg, rdb: rdb, log: log, metrics: m, now: time.Now}
}

// Snapshot returns a copy of the current snapshot and when it was taken. A
// zero time means the cache has never been filled.
func (c *CatalogCache) Snapshot() ([]model.Component, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Component, len(c.snap))
	copy(out, c.snap)
	return out, c.at
}

// Stale reports whether the snapshot is older than the staleness window.
func (c *CatalogCache) Stale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.at.IsZero() || c.now().Sub(c.at) > c.cfg.Staleness
}

// Refresh reloads the snapshot from the store. Concurrent callers share one
// store round trip.
func (c *CatalogCache) Refresh(ctx context.Context) error {
	ch := c.group.DoChan("refresh", func() (interface{}, error) {
		return nil, c.refresh(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *CatalogCache) refresh(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "catalog.refresh")
	defer span.End()

	comps, err := c.src.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list components")
		c.metrics.CatalogRefreshed("error")
		return err
	}
	at := c.now()
	c.store(comps, at)
	span.SetAttributes(attribute.Int("catalog.components", len(comps)))
	c.metrics.CatalogRefreshed("ok")
	c.mirror(ctx, comps, at)
	return nil
}

func (c *CatalogCache) store(comps []model.Component, at time.Time) {
	index := make(map[model.ComponentKey]int, len(comps))
	for i, comp := range comps {
		index[comp.Key()] = i
	}
	c.mu.Lock()
	c.snap, c.index, c.at = comps, index, at
	c.mu.Unlock()
}

func (c *CatalogCache) mirror(ctx context.Context, comps []model.Component, at time.Time) {
	if c.rdb == nil || c.cfg.RedisKey == "" {
		return
	}
	body, err := json.Marshal(snapshotRecord{At: at, Components: comps})
	if err != nil {
		c.log.Warn("catalog: encode mirror failed", zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, c.cfg.RedisKey, body, c.cfg.Staleness).Err(); err != nil {
		c.log.Warn("catalog: write mirror failed", zap.Error(err))
	}
}

// seed fills an empty cache from the redis mirror. It reports whether a
// snapshot was loaded.
func (c *CatalogCache) seed(ctx context.Context) bool {
	if c.rdb == nil || c.cfg.RedisKey == "" {
		return false
	}
	body, err := c.rdb.Get(ctx, c.cfg.RedisKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("catalog: read mirror failed", zap.Error(err))
		}
		return false
	}
	var rec snapshotRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		c.log.Warn("catalog: decode mirror failed", zap.Error(err))
		return false
	}
	c.mu.RLock()
	newer := rec.At.After(c.at)
	c.mu.RUnlock()
	if !newer {
		return false
	}
	c.store(rec.Components, rec.At)
	return true
}

// RefreshAsync schedules a refresh without blocking. Calls made before the
// scheduled refresh starts reading the store are folded into it.
func (c *CatalogCache) RefreshAsync() {
	if !c.pending.CompareAndSwap(false, true) {
		return
	}
	go func() {
		c.pending.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.Refresh(ctx); err != nil {
			c.log.Warn("catalog: async refresh failed", zap.Error(err))
		}
	}()
}

// Start seeds the cache and refreshes it every RefreshInterval until ctx is
// done. It returns once the first load has been attempted.
func (c *CatalogCache) Start(ctx context.Context) {
	if !c.seed(ctx) || c.Stale() {
		if err := c.Refresh(ctx); err != nil {
			c.log.Warn("catalog: initial refresh failed", zap.Error(err))
		}
	}
	go func() {
		t := time.NewTicker(c.cfg.RefreshInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := c.Refresh(ctx); err != nil && ctx.Err() == nil {
					c.log.Warn("catalog: periodic refresh failed", zap.Error(err))
				}
			}
		}
	}()
}

// Components returns the snapshot, refreshing it first when stale. If the
// refresh fails a stale snapshot is still served; only a cache that was never
// filled reports the error.
func (c *CatalogCache) Components(ctx context.Context) ([]model.Component, error) {
	if c.Stale() {
		if !c.seed(ctx) || c.Stale() {
			if err := c.Refresh(ctx); err != nil {
				snap, at := c.Snapshot()
				if at.IsZero() {
					return nil, err
				}
				c.log.Warn("catalog: serving stale snapshot", zap.Error(err), zap.Time("taken_at", at))
				return snap, nil
			}
		}
	}
	snap, _ := c.Snapshot()
	return snap, nil
}

// Get looks a component up in the snapshot.
func (c *CatalogCache) Get(ctx context.Context, key model.ComponentKey) (model.Component, bool, error) {
	if _, err := c.Components(ctx); err != nil {
		return model.Component{}, false, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[key]
	if !ok {
		return model.Component{}, false, nil
	}
	return c.snap[i], true, nil
}
