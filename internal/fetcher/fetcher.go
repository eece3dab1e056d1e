package fetcher

import (
	"context"

	"github.com/shopspring/decimal"
)

// TokenInfo carries ERC-20 metadata read from the contract itself.
type TokenInfo struct {
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply decimal.Decimal
}

// ChainInfo holds the on-chain facts discovered about an address.
type ChainInfo struct {
	Address      string
	IsContract   bool
	BytecodeSize int
	BalanceWei   decimal.Decimal
	BlockNumber  uint64
	Token        *TokenInfo
}

// MarketData is the market-side view of a token. Fields the API did not
// report stay nil.
type MarketData struct {
	Price      *float64
	Volume24h  *float64
	Volatility *float64
	Liquidity  *float64
}

// ChainReader discovers on-chain facts about a contract address.
type ChainReader interface {
	Discover(ctx context.Context, address string) (*ChainInfo, error)
}

// MarketDataFetcher retrieves market metrics for a token address.
type MarketDataFetcher interface {
	FetchMarketData(ctx context.Context, address string) (*MarketData, error)
}
