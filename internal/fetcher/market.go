package fetcher

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// MarketOptions parameterise the market-data client.
type MarketOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Market fetches token metrics from a DEX aggregator HTTP API.
type Market struct {
	logger zerolog.Logger
	client *resty.Client
}

// NewMarket constructs a market-data fetcher.
func NewMarket(opts MarketOptions, logger zerolog.Logger) *Market {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.dexscreener.com/latest/dex"
	}
	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = "chainguard-sentinel/1.0"
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", userAgent)

	return &Market{
		logger: logger.With().Str("component", "market_fetcher").Logger(),
		client: client,
	}
}

type pairsResponse struct {
	Pairs []struct {
		PriceUSD string `json:"priceUsd"`
		Volume   struct {
			H24 float64 `json:"h24"`
		} `json:"volume"`
		PriceChange struct {
			H24 float64 `json:"h24"`
		} `json:"priceChange"`
		Liquidity struct {
			USD float64 `json:"usd"`
		} `json:"liquidity"`
	} `json:"pairs"`
}

// FetchMarketData queries the token endpoint and maps the deepest pair onto
// MarketData. Volatility is derived from the 24h price swing as a fraction.
func (m *Market) FetchMarketData(ctx context.Context, address string) (*MarketData, error) {
	if address == "" {
		return nil, errors.New("token address required")
	}

	var payload pairsResponse
	resp, err := m.client.R().
		SetContext(ctx).
		SetResult(&payload).
		Get("/tokens/" + strings.ToLower(address))
	if err != nil {
		return nil, fmt.Errorf("fetch market data: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("market api error (%d): %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	if len(payload.Pairs) == 0 {
		return nil, errors.New("no market pairs for token")
	}

	// Deepest pool is the most representative quote.
	best := payload.Pairs[0]
	for _, pair := range payload.Pairs[1:] {
		if pair.Liquidity.USD > best.Liquidity.USD {
			best = pair
		}
	}

	data := &MarketData{}
	if price, err := strconv.ParseFloat(best.PriceUSD, 64); err == nil {
		data.Price = &price
	}
	volume := best.Volume.H24
	data.Volume24h = &volume
	liquidity := best.Liquidity.USD
	data.Liquidity = &liquidity
	volatility := math.Abs(best.PriceChange.H24) / 100
	data.Volatility = &volatility

	m.logger.Debug().Str("address", address).Float64("liquidity_usd", liquidity).Msg("market data fetched")
	return data, nil
}

var _ MarketDataFetcher = (*Market)(nil)
