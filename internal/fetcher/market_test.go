package fetcher

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestMarketFetchMissingAddress(t *testing.T) {
	m := NewMarket(MarketOptions{}, noopLogger())
	if _, err := m.FetchMarketData(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty address")
	}
}

func TestMarketFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	m := NewMarket(MarketOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := m.FetchMarketData(context.Background(), "0xabc"); err == nil {
		t.Fatal("expected error for HTTP 429")
	}
}

func TestMarketFetchNoPairs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"pairs": []any{}})
	}))
	defer srv.Close()

	m := NewMarket(MarketOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := m.FetchMarketData(context.Background(), "0xabc"); err == nil {
		t.Fatal("expected error when no pairs are returned")
	}
}

func TestMarketFetchPicksDeepestPair(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"pairs": []map[string]any{
				{
					"priceUsd":    "13.90",
					"volume":      map[string]float64{"h24": 1000},
					"priceChange": map[string]float64{"h24": 1.0},
					"liquidity":   map[string]float64{"usd": 50_000},
				},
				{
					"priceUsd":    "14.52",
					"volume":      map[string]float64{"h24": 312_000_000},
					"priceChange": map[string]float64{"h24": -2.4},
					"liquidity":   map[string]float64{"usd": 95_000_000},
				},
			},
		})
	}))
	defer srv.Close()

	m := NewMarket(MarketOptions{BaseURL: srv.URL, Timeout: time.Second, UserAgent: "test"}, noopLogger())
	data, err := m.FetchMarketData(context.Background(), "0x514910771AF9CA656AF840DFF83E8264ECF986CA")
	if err != nil {
		t.Fatalf("fetch should succeed: %v", err)
	}

	if data.Price == nil || *data.Price != 14.52 {
		t.Fatalf("expected price from deepest pair, got %#v", data.Price)
	}
	if data.Volatility == nil || math.Abs(*data.Volatility-0.024) > 1e-9 {
		t.Fatalf("expected volatility 0.024, got %#v", data.Volatility)
	}
	if data.Liquidity == nil || *data.Liquidity != 95_000_000 {
		t.Fatalf("expected liquidity of deepest pair, got %#v", data.Liquidity)
	}
}

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}
