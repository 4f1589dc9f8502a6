// Package pricing values assets in USD. Lookups fall through an in-memory
// cache, a shared Redis cache, the remote price API and finally a static
// table, so GetPrice always returns something.
package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/logging"
)

type Source string

const (
	SourceMemory Source = "memory"
	SourceCache  Source = "cache"
	SourceRemote Source = "remote"
	SourceStatic Source = "static"
)

type Quote struct {
	Price  decimal.Decimal
	AsOf   time.Time
	Source Source
}

type remote interface {
	FetchUSD(ctx context.Context, assets []domain.Asset) (map[domain.Asset]decimal.Decimal, error)
}

type sharedCache interface {
	Get(ctx context.Context, asset domain.Asset) (Quote, bool, error)
	Set(ctx context.Context, asset domain.Asset, q Quote, ttl time.Duration) error
}

type Config struct {
	MemoryTTL   time.Duration
	CacheTTL    time.Duration
	MinInterval time.Duration
}

type Oracle struct {
	remote remote
	cache  sharedCache
	cfg    Config
	now    func() time.Time

	mu        sync.Mutex
	memory    map[domain.Asset]memoryEntry
	lastFetch time.Time
}

type memoryEntry struct {
	quote    Quote
	storedAt time.Time
}

// NewOracle accepts a nil cache when Redis is not configured and a nil remote
// to run on static prices only.
func NewOracle(r remote, cache sharedCache, cfg Config) *Oracle {
	return &Oracle{
		remote: r,
		cache:  cache,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
		memory: make(map[domain.Asset]memoryEntry),
	}
}

func (o *Oracle) GetPrice(ctx context.Context, asset domain.Asset) Quote {
	log := logging.FromContext(ctx).With("asset", asset)
	now := o.now()

	o.mu.Lock()
	if e, ok := o.memory[asset]; ok && now.Sub(e.storedAt) < o.cfg.MemoryTTL {
		o.mu.Unlock()
		q := e.quote
		q.Source = SourceMemory
		return q
	}
	o.mu.Unlock()

	if o.cache != nil {
		q, ok, err := o.cache.Get(ctx, asset)
		if err != nil {
			log.Warn("price cache read failed", "error", err)
		} else if ok {
			o.remember(asset, q)
			return q
		}
	}

	if q, ok := o.fetch(ctx, asset); ok {
		return q
	}

	return Quote{Price: StaticPrice(asset), AsOf: now, Source: SourceStatic}
}

// fetch refreshes every asset in one remote call, at most once per
// MinInterval across all callers.
func (o *Oracle) fetch(ctx context.Context, asset domain.Asset) (Quote, bool) {
	log := logging.FromContext(ctx)
	if o.remote == nil {
		return Quote{}, false
	}

	o.mu.Lock()
	now := o.now()
	if !o.lastFetch.IsZero() && now.Sub(o.lastFetch) < o.cfg.MinInterval {
		o.mu.Unlock()
		log.Debug("price api throttled, using fallback", "asset", asset)
		return Quote{}, false
	}
	o.lastFetch = now
	o.mu.Unlock()

	prices, err := o.remote.FetchUSD(ctx, domain.Assets)
	if err != nil {
		log.Warn("price api fetch failed", "error", err)
		return Quote{}, false
	}

	var (
		found Quote
		ok    bool
	)
	for a, p := range prices {
		q := Quote{Price: p, AsOf: now, Source: SourceRemote}
		o.remember(a, q)
		if o.cache != nil {
			if err := o.cache.Set(ctx, a, q, o.cfg.CacheTTL); err != nil {
				log.Warn("price cache write failed", "asset", a, "error", err)
			}
		}
		if a == asset {
			found, ok = q, true
		}
	}
	return found, ok
}

func (o *Oracle) remember(asset domain.Asset, q Quote) {
	o.mu.Lock()
	o.memory[asset] = memoryEntry{quote: q, storedAt: o.now()}
	o.mu.Unlock()
}
