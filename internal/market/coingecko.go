package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tomasdev42/crypto-portfolio/internal/config"
	"github.com/tomasdev42/crypto-portfolio/internal/metrics"
)

const (
	apiKeyHeader   = "x-cg-demo-api-key"
	marketsPerPage = 250
	maxMarketPages = 100
)

var errCoinNotFound = errors.New("coin not found")

// CoinGecko is a Provider backed by the CoinGecko v3 REST API.
type CoinGecko struct {
	baseURL string
	apiKey  string
	client  *http.Client
	metrics *metrics.Collectors
}

// NewCoinGecko builds a client for the configured CoinGecko endpoint.
func NewCoinGecko(cfg config.MarketConfig, m *metrics.Collectors) *CoinGecko {
	return &CoinGecko{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
		metrics: m,
	}
}

// CoinExists reports whether the provider knows coinID.
func (g *CoinGecko) CoinExists(ctx context.Context, coinID string) (bool, error) {
	if strings.TrimSpace(coinID) == "" {
		return false, nil
	}
	_, err := g.get(ctx, "coins", "/coins/"+url.PathEscape(coinID), url.Values{
		"localization":   {"false"},
		"tickers":        {"false"},
		"community_data": {"false"},
		"developer_data": {"false"},
	})
	if errors.Is(err, errCoinNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// USDPrice returns the current USD price of coinID.
func (g *CoinGecko) USDPrice(ctx context.Context, coinID string) (decimal.Decimal, error) {
	body, err := g.get(ctx, "simple_price", "/simple/price", url.Values{
		"ids":           {coinID},
		"vs_currencies": {"usd"},
	})
	if err != nil {
		return decimal.Zero, err
	}
	var prices map[string]map[string]decimal.Decimal
	if err := json.Unmarshal(body, &prices); err != nil {
		return decimal.Zero, fmt.Errorf("decode price for %s: %w", coinID, err)
	}
	price, ok := prices[coinID]["usd"]
	if !ok {
		return decimal.Zero, ErrPriceUnavailable
	}
	return price, nil
}

// CoinData returns the provider's detail document for coinID, sparkline included.
func (g *CoinGecko) CoinData(ctx context.Context, coinID string) (json.RawMessage, error) {
	body, err := g.get(ctx, "coins", "/coins/"+url.PathEscape(coinID), url.Values{"sparkline": {"true"}})
	if errors.Is(err, errCoinNotFound) {
		return nil, ErrUpstream
	}
	return body, err
}

// CoinList returns every coin known to the provider (id, symbol, name).
func (g *CoinGecko) CoinList(ctx context.Context) (json.RawMessage, error) {
	return g.get(ctx, "coins_list", "/coins/list", nil)
}

// Markets returns one page of USD market data ordered by market cap.
func (g *CoinGecko) Markets(ctx context.Context, page int) (json.RawMessage, error) {
	if page < 1 {
		page = 1
	}
	return g.get(ctx, "markets", "/coins/markets", marketQuery(page, 0))
}

// AllMarkets walks the market pages until the provider returns an empty page.
func (g *CoinGecko) AllMarkets(ctx context.Context) (json.RawMessage, error) {
	all := make([]json.RawMessage, 0, marketsPerPage)
	for page := 1; page <= maxMarketPages; page++ {
		body, err := g.get(ctx, "markets", "/coins/markets", marketQuery(page, marketsPerPage))
		if err != nil {
			return nil, err
		}
		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("decode markets page %d: %w", page, err)
		}
		if len(items) == 0 {
			break
		}
		all = append(all, items...)
	}
	return json.Marshal(all)
}

// TotalMarketCap returns the total market cap per currency.
func (g *CoinGecko) TotalMarketCap(ctx context.Context) (json.RawMessage, error) {
	body, err := g.get(ctx, "global", "/global", nil)
	if err != nil {
		return nil, err
	}
	var global struct {
		Data struct {
			TotalMarketCap json.RawMessage `json:"total_market_cap"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &global); err != nil {
		return nil, fmt.Errorf("decode global data: %w", err)
	}
	if len(global.Data.TotalMarketCap) == 0 {
		return nil, ErrUpstream
	}
	return global.Data.TotalMarketCap, nil
}

// Search runs the provider's search for query.
func (g *CoinGecko) Search(ctx context.Context, query string) (json.RawMessage, error) {
	return g.get(ctx, "search", "/search", url.Values{"query": {query}})
}

func marketQuery(page, perPage int) url.Values {
	q := url.Values{
		"vs_currency": {"usd"},
		"order":       {"market_cap_desc"},
		"sparkline":   {"true"},
		"page":        {strconv.Itoa(page)},
	}
	if perPage > 0 {
		q.Set("per_page", strconv.Itoa(perPage))
	}
	return q
}

// get performs a GET against the provider and returns the body of a 200
// response. A 404 maps to errCoinNotFound.
func (g *CoinGecko) get(ctx context.Context, endpoint, path string, query url.Values) (body []byte, err error) {
	defer func() { g.metrics.UpstreamRequest(endpoint, err) }()

	addr := g.baseURL + path
	if len(query) > 0 {
		addr += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if g.apiKey != "" {
		req.Header.Set(apiKeyHeader, g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errCoinNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: GET %s: %s", ErrUpstream, path, resp.Status)
	}
	return io.ReadAll(resp.Body)
}
