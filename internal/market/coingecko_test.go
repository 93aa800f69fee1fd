package market

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tomasdev42/crypto-portfolio/internal/apperr"
	"github.com/tomasdev42/crypto-portfolio/internal/config"
)

func newGecko(t *testing.T, handler http.HandlerFunc) *CoinGecko {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewCoinGecko(config.MarketConfig{BaseURL: srv.URL + "/", APIKey: "demo-key", Timeout: 5 * time.Second}, nil)
}

func TestCoinExists(t *testing.T) {
	g := newGecko(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(apiKeyHeader) != "demo-key" {
			t.Errorf("missing api key header")
		}
		switch r.URL.Path {
		case "/coins/bitcoin":
			fmt.Fprint(w, `{"id":"bitcoin"}`)
		default:
			http.NotFound(w, r)
		}
	})

	ok, err := g.CoinExists(context.Background(), "bitcoin")
	if err != nil || !ok {
		t.Fatalf("bitcoin: ok=%v err=%v", ok, err)
	}
	ok, err = g.CoinExists(context.Background(), "unknown-coin")
	if err != nil || ok {
		t.Fatalf("unknown-coin: ok=%v err=%v", ok, err)
	}
	ok, _ = g.CoinExists(context.Background(), " ")
	if ok {
		t.Fatal("blank id should not exist")
	}
}

func TestUSDPrice(t *testing.T) {
	g := newGecko(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simple/price" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("ids") == "bitcoin" {
			fmt.Fprint(w, `{"bitcoin":{"usd":64123.45}}`)
			return
		}
		fmt.Fprint(w, `{}`)
	})

	price, err := g.USDPrice(context.Background(), "bitcoin")
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("64123.45")) {
		t.Fatalf("price = %s", price)
	}
	if _, err := g.USDPrice(context.Background(), "unknown-coin"); !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("expected ErrPriceUnavailable, got %v", err)
	}
}

func TestUpstreamFailure(t *testing.T) {
	g := newGecko(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})
	_, err := g.CoinList(context.Background())
	if !errors.Is(err, apperr.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if apperr.Message(err) != "Failed to fetch market data" {
		t.Fatalf("message leaked internals: %q", apperr.Message(err))
	}
}

func TestAllMarketsStopsOnEmptyPage(t *testing.T) {
	var calls atomic.Int32
	g := newGecko(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if r.URL.Query().Get("per_page") != "250" {
			t.Errorf("per_page = %q", r.URL.Query().Get("per_page"))
		}
		if page <= 2 {
			fmt.Fprintf(w, `[{"id":"coin-%d-a"},{"id":"coin-%d-b"}]`, page, page)
			return
		}
		fmt.Fprint(w, `[]`)
	})

	data, err := g.AllMarkets(context.Background())
	if err != nil {
		t.Fatalf("all markets: %v", err)
	}
	want := `[{"id":"coin-1-a"},{"id":"coin-1-b"},{"id":"coin-2-a"},{"id":"coin-2-b"}]`
	if string(data) != want {
		t.Fatalf("data = %s", data)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d", calls.Load())
	}
}

func TestTotalMarketCap(t *testing.T) {
	g := newGecko(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"total_market_cap":{"usd":2.5e12},"active_cryptocurrencies":1}}`)
	})
	data, err := g.TotalMarketCap(context.Background())
	if err != nil {
		t.Fatalf("mcap: %v", err)
	}
	if string(data) != `{"usd":2.5e12}` {
		t.Fatalf("data = %s", data)
	}
}
