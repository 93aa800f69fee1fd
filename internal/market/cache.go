package market

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const cachePrefix = "market:v1:"

// CachedProvider keeps provider answers in redis for a fixed TTL. Cache
// failures are logged and fall through to the provider.
type CachedProvider struct {
	next   Provider
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedProvider wraps next with a redis cache. A nil client or a
// non-positive TTL returns next unchanged.
func NewCachedProvider(next Provider, cache *redis.Client, ttl time.Duration, logger *slog.Logger) Provider {
	if cache == nil || ttl <= 0 {
		return next
	}
	return &CachedProvider{next: next, cache: cache, ttl: ttl, logger: logger}
}

func (p *CachedProvider) CoinExists(ctx context.Context, coinID string) (bool, error) {
	raw, err := p.cached(ctx, "exists:"+coinID, func(ctx context.Context) ([]byte, error) {
		ok, err := p.next.CoinExists(ctx, coinID)
		return []byte(strconv.FormatBool(ok)), err
	})
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(string(raw))
}

func (p *CachedProvider) USDPrice(ctx context.Context, coinID string) (decimal.Decimal, error) {
	raw, err := p.cached(ctx, "price:usd:"+coinID, func(ctx context.Context) ([]byte, error) {
		price, err := p.next.USDPrice(ctx, coinID)
		return []byte(price.String()), err
	})
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(string(raw))
}

func (p *CachedProvider) CoinData(ctx context.Context, coinID string) (json.RawMessage, error) {
	return p.cachedJSON(ctx, "coin:"+coinID, func(ctx context.Context) (json.RawMessage, error) {
		return p.next.CoinData(ctx, coinID)
	})
}

func (p *CachedProvider) CoinList(ctx context.Context) (json.RawMessage, error) {
	return p.cachedJSON(ctx, "coins:list", p.next.CoinList)
}

func (p *CachedProvider) Markets(ctx context.Context, page int) (json.RawMessage, error) {
	return p.cachedJSON(ctx, "markets:"+strconv.Itoa(page), func(ctx context.Context) (json.RawMessage, error) {
		return p.next.Markets(ctx, page)
	})
}

func (p *CachedProvider) AllMarkets(ctx context.Context) (json.RawMessage, error) {
	return p.cachedJSON(ctx, "markets:all", p.next.AllMarkets)
}

func (p *CachedProvider) TotalMarketCap(ctx context.Context) (json.RawMessage, error) {
	return p.cachedJSON(ctx, "global:mcap", p.next.TotalMarketCap)
}

func (p *CachedProvider) Search(ctx context.Context, query string) (json.RawMessage, error) {
	return p.cachedJSON(ctx, "search:"+query, func(ctx context.Context) (json.RawMessage, error) {
		return p.next.Search(ctx, query)
	})
}

func (p *CachedProvider) cachedJSON(ctx context.Context, key string, load func(context.Context) (json.RawMessage, error)) (json.RawMessage, error) {
	raw, err := p.cached(ctx, key, func(ctx context.Context) ([]byte, error) {
		return load(ctx)
	})
	return json.RawMessage(raw), err
}

// cached returns the value stored under key or loads and stores it. Failed
// loads are never cached.
func (p *CachedProvider) cached(ctx context.Context, key string, load func(context.Context) ([]byte, error)) ([]byte, error) {
	cacheKey := cachePrefix + key
	val, err := p.cache.Get(ctx, cacheKey).Bytes()
	if err == nil {
		return val, nil
	}
	if !errors.Is(err, redis.Nil) {
		p.logger.Warn("market cache lookup failed", slog.String("key", key), slog.Any("error", err))
	}

	val, err = load(ctx)
	if err != nil {
		return nil, err
	}
	if err := p.cache.Set(ctx, cacheKey, val, p.ttl).Err(); err != nil {
		p.logger.Warn("market cache store failed", slog.String("key", key), slog.Any("error", err))
	}
	return val, nil
}
