// Package market talks to the price quote provider and exposes its market
// data to clients.
package market

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/tomasdev42/crypto-portfolio/internal/apperr"
)

var (
	// ErrPriceUnavailable is returned when the provider has no USD price for a coin.
	ErrPriceUnavailable = apperr.New(apperr.ErrUpstream, "price unavailable")
	// ErrUpstream is returned when the provider cannot be reached or answers
	// with an unexpected status.
	ErrUpstream = apperr.New(apperr.ErrUpstream, "Failed to fetch market data")
)

// Quoter is the part of the provider the valuation engine depends on.
type Quoter interface {
	CoinExists(ctx context.Context, coinID string) (bool, error)
	USDPrice(ctx context.Context, coinID string) (decimal.Decimal, error)
}

// Provider is the full price quote provider. Market data calls return the
// provider's raw JSON.
type Provider interface {
	Quoter
	CoinData(ctx context.Context, coinID string) (json.RawMessage, error)
	CoinList(ctx context.Context) (json.RawMessage, error)
	Markets(ctx context.Context, page int) (json.RawMessage, error)
	AllMarkets(ctx context.Context) (json.RawMessage, error)
	TotalMarketCap(ctx context.Context) (json.RawMessage, error)
	Search(ctx context.Context, query string) (json.RawMessage, error)
}
