package app

import (
	"context"
	"errors"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"chainguard-sentinel/internal/alerting"
	"chainguard-sentinel/internal/analyzer"
	"chainguard-sentinel/internal/config"
	"chainguard-sentinel/internal/fetcher"
	"chainguard-sentinel/internal/scheduler"
	"chainguard-sentinel/internal/service"
	"chainguard-sentinel/internal/simulator"
	"chainguard-sentinel/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) openStore() (*storage.ContractStore, func(), error) {
	var kv storage.KV
	var err error

	if a.Config.Storage.InMemory {
		kv, err = storage.OpenBadgerInMemory()
	} else {
		kv, err = storage.OpenBadger(a.Config.Storage.Dir)
	}
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewContractStore(kv, a.Logger)
	closer := func() {
		if err := kv.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("failed to close store backend")
		}
	}
	return store, closer, nil
}

func (a *App) newChainReader() fetcher.ChainReader {
	if a.Config.Ethereum.RPCURL == "" {
		return nil
	}
	return fetcher.NewOnChain(fetcher.OnChainOptions{
		RPCURL:  a.Config.Ethereum.RPCURL,
		Timeout: a.Config.Ethereum.RequestTimeout,
	}, a.Logger)
}

func (a *App) newMarketFetcher() fetcher.MarketDataFetcher {
	return fetcher.NewMarket(fetcher.MarketOptions{
		BaseURL:   a.Config.Market.BaseURL,
		Timeout:   a.Config.Market.RequestTimeout,
		UserAgent: a.Config.Market.UserAgent,
	}, a.Logger)
}

func (a *App) newAnalyzer() analyzer.Analyzer {
	if a.Config.OpenRouter.APIKey == "" {
		return nil
	}
	return analyzer.NewOpenRouter(analyzer.OpenRouterOptions{
		APIKey:  a.Config.OpenRouter.APIKey,
		BaseURL: a.Config.OpenRouter.BaseURL,
		Model:   a.Config.OpenRouter.Model,
		Timeout: a.Config.OpenRouter.RequestTimeout,
	}, a.Logger)
}

func (a *App) newSimulator() service.RiskSimulator {
	if !a.Config.Simulator.Enabled {
		return nil
	}
	return simulator.New(simulator.Options{
		Binary:   a.Config.Simulator.Binary,
		Workflow: a.Config.Simulator.Workflow,
		Timeout:  a.Config.Simulator.Timeout,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 0, a.Logger)
	}
	return nil
}

func (a *App) newService(store *storage.ContractStore) *service.Service {
	return service.New(service.Options{
		Store:       store,
		Chain:       a.newChainReader(),
		Market:      a.newMarketFetcher(),
		Analyzer:    a.newAnalyzer(),
		Simulator:   a.newSimulator(),
		Notifier:    a.newNotifier(),
		AlertsOn:    a.Config.Alerting.Enabled,
		MinSeverity: storage.Severity(strings.ToLower(a.Config.Alerting.MinSeverity)),
	}, a.Logger)
}

// Run executes the long-running scan daemon.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	if a.newAnalyzer() == nil && a.newSimulator() == nil {
		a.Logger.Warn().Msg("no assessment engine configured; scans will fail until openrouter.api_key or simulator.enabled is set")
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	svc := a.newService(store)

	a.Logger.Info().Msg("starting monitoring daemon")
	err = sched.Run(ctx, svc.ProcessBucket)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("daemon terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring daemon stopped")
	return nil
}
