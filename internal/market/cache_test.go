package market

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/tomasdev42/crypto-portfolio/internal/logging"
)

type stubProvider struct {
	mu     sync.Mutex
	calls  map[string]int
	prices map[string]decimal.Decimal
	fail   error
}

func newStub() *stubProvider {
	return &stubProvider{
		calls:  map[string]int{},
		prices: map[string]decimal.Decimal{"bitcoin": decimal.NewFromInt(50000)},
	}
}

func (s *stubProvider) hit(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[name]++
	return s.fail
}

func (s *stubProvider) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *stubProvider) CoinExists(_ context.Context, id string) (bool, error) {
	if err := s.hit("exists"); err != nil {
		return false, err
	}
	_, ok := s.prices[id]
	return ok, nil
}

func (s *stubProvider) USDPrice(_ context.Context, id string) (decimal.Decimal, error) {
	if err := s.hit("price"); err != nil {
		return decimal.Zero, err
	}
	p, ok := s.prices[id]
	if !ok {
		return decimal.Zero, ErrPriceUnavailable
	}
	return p, nil
}

func (s *stubProvider) raw(name, body string) (json.RawMessage, error) {
	if err := s.hit(name); err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

func (s *stubProvider) CoinData(_ context.Context, id string) (json.RawMessage, error) {
	return s.raw("coin", `{"id":"`+id+`"}`)
}
func (s *stubProvider) CoinList(context.Context) (json.RawMessage, error) {
	return s.raw("list", `[{"id":"bitcoin","symbol":"btc","name":"Bitcoin"}]`)
}
func (s *stubProvider) Markets(context.Context, int) (json.RawMessage, error) {
	return s.raw("markets", `[{"id":"bitcoin"}]`)
}
func (s *stubProvider) AllMarkets(context.Context) (json.RawMessage, error) {
	return s.raw("all", `[{"id":"bitcoin"},{"id":"ethereum"}]`)
}
func (s *stubProvider) TotalMarketCap(context.Context) (json.RawMessage, error) {
	return s.raw("mcap", `{"usd":1}`)
}
func (s *stubProvider) Search(_ context.Context, q string) (json.RawMessage, error) {
	return s.raw("search", `{"coins":[{"id":"`+q+`"}]}`)
}

func newCached(t *testing.T, next Provider) (Provider, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCachedProvider(next, client, time.Minute, logging.Discard()), mr
}

func TestCachedProviderServesFromCache(t *testing.T) {
	stub := newStub()
	p, mr := newCached(t, stub)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		price, err := p.USDPrice(ctx, "bitcoin")
		if err != nil || !price.Equal(decimal.NewFromInt(50000)) {
			t.Fatalf("price=%s err=%v", price, err)
		}
		if _, err := p.CoinList(ctx); err != nil {
			t.Fatalf("list: %v", err)
		}
	}
	if stub.count("price") != 1 || stub.count("list") != 1 {
		t.Fatalf("provider called %v", stub.calls)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := p.USDPrice(ctx, "bitcoin"); err != nil {
		t.Fatalf("price after expiry: %v", err)
	}
	if stub.count("price") != 2 {
		t.Fatalf("expected refetch after ttl, calls=%d", stub.count("price"))
	}
}

func TestCachedProviderCachesNegativeExistence(t *testing.T) {
	stub := newStub()
	p, _ := newCached(t, stub)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := p.CoinExists(ctx, "unknown-coin")
		if err != nil || ok {
			t.Fatalf("ok=%v err=%v", ok, err)
		}
	}
	if stub.count("exists") != 1 {
		t.Fatalf("exists calls = %d", stub.count("exists"))
	}
}

func TestCachedProviderDoesNotCacheFailures(t *testing.T) {
	stub := newStub()
	stub.fail = errors.New("boom")
	p, _ := newCached(t, stub)
	ctx := context.Background()

	if _, err := p.Search(ctx, "btc"); err == nil {
		t.Fatal("expected error")
	}
	stub.fail = nil
	data, err := p.Search(ctx, "btc")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if string(data) != `{"coins":[{"id":"btc"}]}` {
		t.Fatalf("data = %s", data)
	}
}

func TestCachedProviderFallsThroughWhenRedisDown(t *testing.T) {
	stub := newStub()
	p, mr := newCached(t, stub)
	mr.Close()

	price, err := p.USDPrice(context.Background(), "bitcoin")
	if err != nil || !price.Equal(decimal.NewFromInt(50000)) {
		t.Fatalf("price=%s err=%v", price, err)
	}
}

func TestNewCachedProviderWithoutRedis(t *testing.T) {
	stub := newStub()
	if p := NewCachedProvider(stub, nil, time.Minute, logging.Discard()); p != Provider(stub) {
		t.Fatal("expected provider to be returned unchanged")
	}
}
