package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"chainguard-sentinel/internal/alerting"
	"chainguard-sentinel/internal/analyzer"
	"chainguard-sentinel/internal/fetcher"
	"chainguard-sentinel/internal/risk"
	"chainguard-sentinel/internal/storage"
)

// RiskSimulator runs the oracle-simulation workflow for one address.
type RiskSimulator interface {
	Simulate(ctx context.Context, address string) (*risk.Assessment, error)
}

// Service orchestrates discovery, risk assessment, ingestion, and alerting.
// Every pipeline stage except the store itself is optional; a scan succeeds
// as long as at least one engine produced an assessment.
type Service struct {
	store     *storage.ContractStore
	chain     fetcher.ChainReader
	market    fetcher.MarketDataFetcher
	analyzer  analyzer.Analyzer
	simulator RiskSimulator
	notifier  alerting.Notifier
	logger    zerolog.Logger

	alertsOn    bool
	minSeverity storage.Severity
}

// Options wires the pipeline stages into a Service.
type Options struct {
	Store     *storage.ContractStore
	Chain     fetcher.ChainReader
	Market    fetcher.MarketDataFetcher
	Analyzer  analyzer.Analyzer
	Simulator RiskSimulator
	Notifier  alerting.Notifier
	AlertsOn  bool

	// MinSeverity is the lowest alert severity dispatched to the notifier.
	// Alerts below it are still persisted.
	MinSeverity storage.Severity
}

// New constructs the scan service.
func New(opts Options, logger zerolog.Logger) *Service {
	if opts.MinSeverity == "" {
		opts.MinSeverity = storage.SeverityLow
	}
	return &Service{
		store:       opts.Store,
		chain:       opts.Chain,
		market:      opts.Market,
		analyzer:    opts.Analyzer,
		simulator:   opts.Simulator,
		notifier:    opts.Notifier,
		logger:      logger.With().Str("component", "service").Logger(),
		alertsOn:    opts.AlertsOn,
		minSeverity: opts.MinSeverity,
	}
}

// ProcessBucket runs one scheduled scan cycle over the whole watch list.
func (s *Service) ProcessBucket(ctx context.Context, bucket time.Time) error {
	return s.ScanAll(ctx)
}

// ScanAll scans every monitored contract and stamps the sync marker. A
// failing contract does not abort the cycle.
func (s *Service) ScanAll(ctx context.Context) error {
	contracts, err := s.store.ListContracts()
	if err != nil {
		return fmt.Errorf("list contracts: %w", err)
	}

	var failed int
	for _, c := range contracts {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.ScanContract(ctx, c); err != nil {
			failed++
			s.logger.Error().Err(err).Str("address", c.Address).Msg("contract scan failed")
		}
	}

	if err := s.store.UpdateSyncTimestamp(); err != nil {
		return fmt.Errorf("update sync timestamp: %w", err)
	}

	s.logger.Info().Int("scanned", len(contracts)).Int("failed", failed).Msg("scan cycle complete")
	return nil
}

// ScanContract runs the full pipeline for one contract: on-chain facts and
// market data feed the assessment engines, the merged assessment is folded
// into the store, and high/critical results raise an alert.
func (s *Service) ScanContract(ctx context.Context, c storage.MonitoredContract) error {
	input := analyzer.Input{
		Address: c.Address,
		Name:    c.Name,
		Chain:   c.Chain,
	}

	if s.chain != nil {
		info, err := s.chain.Discover(ctx, c.Address)
		if err != nil {
			s.logger.Warn().Err(err).Str("address", c.Address).Msg("on-chain discovery failed")
		} else {
			input.OnChain = info
		}
	}

	if s.market != nil {
		data, err := s.market.FetchMarketData(ctx, c.Address)
		if err != nil {
			s.logger.Warn().Err(err).Str("address", c.Address).Msg("market data unavailable")
		} else {
			input.Market = data
		}
	}

	assessment, err := s.assess(ctx, input)
	if err != nil {
		return err
	}

	update := buildUpdate(input.Market, assessment)
	updated, err := s.store.UpdateContract(c.Address, update)
	if err != nil {
		return fmt.Errorf("ingest assessment: %w", err)
	}
	if updated == nil {
		// Contract was removed mid-scan; nothing to ingest.
		return nil
	}

	if updated.Status == storage.StatusHigh || updated.Status == storage.StatusCritical {
		s.raiseAlert(ctx, *updated, *assessment)
	}

	return nil
}

// Discover builds a MonitoredContract from on-chain and market facts and
// registers it in the store.
func (s *Service) Discover(ctx context.Context, address, name string) (storage.MonitoredContract, error) {
	contract := storage.MonitoredContract{
		Address:           address,
		Name:              name,
		Chain:             "Ethereum",
		ChainSelectorName: "ethereum-mainnet",
		RiskLevel:         storage.RiskLow,
	}

	if s.chain != nil {
		info, err := s.chain.Discover(ctx, address)
		if err != nil {
			return storage.MonitoredContract{}, fmt.Errorf("discover %s: %w", address, err)
		}
		if !info.IsContract {
			return storage.MonitoredContract{}, fmt.Errorf("no contract deployed at %s", address)
		}
		if contract.Name == "" && info.Token != nil {
			contract.Name = fmt.Sprintf("%s (%s)", info.Token.Name, info.Token.Symbol)
		}
	}
	if contract.Name == "" {
		contract.Name = storage.NormalizeAddress(address)
	}

	if s.market != nil {
		if data, err := s.market.FetchMarketData(ctx, address); err == nil {
			contract.Metrics = metricsFromMarket(data)
		}
	}

	return s.store.AddContract(contract)
}

func (s *Service) assess(ctx context.Context, input analyzer.Input) (*risk.Assessment, error) {
	var merged *risk.Assessment

	if s.simulator != nil {
		assessment, err := s.simulator.Simulate(ctx, input.Address)
		if err != nil {
			s.logger.Warn().Err(err).Str("address", input.Address).Msg("oracle simulation failed")
		} else {
			merged = assessment
		}
	}

	if s.analyzer != nil {
		assessment, err := s.analyzer.Assess(ctx, input)
		if err != nil {
			s.logger.Warn().Err(err).Str("address", input.Address).Msg("llm analysis failed")
		} else if merged == nil {
			merged = assessment
		} else {
			merged.Merge(*assessment)
		}
	}

	if merged == nil {
		return nil, errors.New("no assessment engine produced a result")
	}
	return merged, nil
}

func (s *Service) raiseAlert(ctx context.Context, c storage.MonitoredContract, assessment risk.Assessment) {
	message := assessment.Summary
	if message == "" {
		message = fmt.Sprintf("Risk status %s (score %.0f)", c.Status, assessment.RiskScore)
	}

	alert, err := s.store.AddAlert(storage.Alert{
		Contract:     c.Address,
		ContractName: c.Name,
		Type:         "risk_assessment",
		Message:      message,
		Severity:     risk.SeverityForStatus(c.Status),
	})
	if err != nil {
		s.logger.Error().Err(err).Str("address", c.Address).Msg("failed to persist alert")
		return
	}

	if s.alertsOn && s.notifier != nil {
		if !severityMeets(alert.Severity, s.minSeverity) {
			s.logger.Debug().Str("alert_id", alert.ID).
				Str("severity", string(alert.Severity)).
				Msg("alert below minimum severity; not dispatched")
			return
		}
		if err := s.notifier.Notify(ctx, alert); err != nil {
			s.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to dispatch alert")
		}
	}
}

var severityRank = map[storage.Severity]int{
	storage.SeverityLow:    0,
	storage.SeverityMedium: 1,
	storage.SeverityHigh:   2,
}

func severityMeets(sev, min storage.Severity) bool {
	return severityRank[sev] >= severityRank[min]
}

func buildUpdate(market *fetcher.MarketData, assessment *risk.Assessment) storage.ContractUpdate {
	level := risk.LevelForScore(assessment.RiskScore)
	if assessment.RiskLevel != "" {
		level = storage.RiskLevel(assessment.RiskLevel)
	}
	status := assessment.Status
	score := assessment.RiskScore

	metrics := metricsFromMarket(market)
	if metrics.Volatility == nil && assessment.Volatility != nil {
		metrics.Volatility = assessment.Volatility
	}

	return storage.ContractUpdate{
		RiskLevel: &level,
		Status:    &status,
		RiskScore: &score,
		Metrics:   &metrics,
	}
}

func metricsFromMarket(market *fetcher.MarketData) storage.Metrics {
	if market == nil {
		return storage.Metrics{}
	}
	return storage.Metrics{
		// Pool liquidity doubles as the TVL display metric.
		TVL:        market.Liquidity,
		Price:      market.Price,
		Volume24h:  market.Volume24h,
		Volatility: market.Volatility,
		Liquidity:  market.Liquidity,
	}
}
