// Package analyzer obtains LLM risk assessments for monitored contracts.
package analyzer

import (
	"context"

	"chainguard-sentinel/internal/fetcher"
	"chainguard-sentinel/internal/risk"
)

// Input bundles everything the analyzer knows about a contract before
// asking the model.
type Input struct {
	Address string
	Name    string
	Chain   string
	OnChain *fetcher.ChainInfo
	Market  *fetcher.MarketData
}

// Analyzer produces a risk assessment for a contract.
type Analyzer interface {
	Assess(ctx context.Context, input Input) (*risk.Assessment, error)
}
