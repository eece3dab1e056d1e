package storage

import "time"

// Default watch list applied on first run. Seed entries are only ever
// appended when missing; they never overwrite user edits.
func defaultContracts(now time.Time) []MonitoredContract {
	stamp := now.UTC().Format(time.RFC3339)

	return []MonitoredContract{
		{
			ID:                "0x514910771af9ca656af840dff83e8264ecf986ca",
			Address:           "0x514910771af9ca656af840dff83e8264ecf986ca",
			Name:              "Chainlink Token",
			Chain:             "Ethereum",
			ChainSelectorName: "ethereum-mainnet",
			TVL:               "$8.2M",
			Volatility:        "2.4%",
			RiskLevel:         RiskLow,
			Status:            StatusLow,
			Metrics: Metrics{
				TVL:        floatPtr(8_200_000),
				Price:      floatPtr(14.52),
				Volume24h:  floatPtr(312_000_000),
				Volatility: floatPtr(0.024),
				Liquidity:  floatPtr(95_000_000),
			},
			PriceFeeds: []PriceFeed{
				{PairName: "LINK/USD", FeedAddress: "0x2c1d072e956affc0d435cb7ac38ef18d24d9127c", Decimals: 8},
				{PairName: "ETH/USD", FeedAddress: "0x5f4ec3df9cbd43714fe2740f5e3616155c5b8419", Decimals: 8},
			},
			RiskThresholds: map[string]float64{
				"volatility": 0.05,
				"liquidity":  10_000_000,
				"riskScore":  70,
			},
			LastUpdate: stamp,
		},
		{
			ID:                "0x87870bca3f3fd6335c3f4ce8392d69350b4fa4e2",
			Address:           "0x87870bca3f3fd6335c3f4ce8392d69350b4fa4e2",
			Name:              "Aave V3 Pool",
			Chain:             "Ethereum",
			ChainSelectorName: "ethereum-mainnet",
			TVL:               "$12.6M",
			Volatility:        "1.8%",
			RiskLevel:         RiskLow,
			Status:            StatusLow,
			Metrics: Metrics{
				TVL:        floatPtr(12_600_000),
				Price:      floatPtr(1.0),
				Volume24h:  floatPtr(148_000_000),
				Volatility: floatPtr(0.018),
				Liquidity:  floatPtr(210_000_000),
			},
			PriceFeeds: []PriceFeed{
				{PairName: "ETH/USD", FeedAddress: "0x5f4ec3df9cbd43714fe2740f5e3616155c5b8419", Decimals: 8},
			},
			RiskThresholds: map[string]float64{
				"volatility": 0.05,
				"liquidity":  50_000_000,
				"riskScore":  70,
			},
			LastUpdate: stamp,
		},
		{
			ID:                "0x7a250d5630b4cf539739df2c5dacb4c659f2488d",
			Address:           "0x7a250d5630b4cf539739df2c5dacb4c659f2488d",
			Name:              "Uniswap V2 Router",
			Chain:             "Ethereum",
			ChainSelectorName: "ethereum-mainnet",
			TVL:               "$4.1M",
			Volatility:        "3.1%",
			RiskLevel:         RiskMedium,
			Status:            StatusMedium,
			Metrics: Metrics{
				TVL:        floatPtr(4_100_000),
				Volume24h:  floatPtr(520_000_000),
				Volatility: floatPtr(0.031),
				Liquidity:  floatPtr(63_000_000),
			},
			PriceFeeds: []PriceFeed{
				{PairName: "ETH/USD", FeedAddress: "0x5f4ec3df9cbd43714fe2740f5e3616155c5b8419", Decimals: 8},
			},
			RiskThresholds: map[string]float64{
				"volatility": 0.06,
				"liquidity":  20_000_000,
				"riskScore":  75,
			},
			LastUpdate: stamp,
		},
	}
}

func floatPtr(v float64) *float64 { return &v }
