package app

import (
	"context"
	"fmt"
	"os"

	"chainguard-sentinel/internal/storage"
)

// AddOptions configure contract registration.
type AddOptions struct {
	Address string
	Name    string
	Chain   string
}

// Add registers a contract, enriching it with on-chain and market facts
// when an RPC endpoint is configured.
func (a *App) Add(ctx context.Context, opts AddOptions) error {
	store, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	svc := a.newService(store)

	var contract storage.MonitoredContract
	if a.Config.Ethereum.RPCURL != "" {
		contract, err = svc.Discover(ctx, opts.Address, opts.Name)
	} else {
		name := opts.Name
		if name == "" {
			name = storage.NormalizeAddress(opts.Address)
		}
		chain := opts.Chain
		if chain == "" {
			chain = "Ethereum"
		}
		contract, err = store.AddContract(storage.MonitoredContract{
			Address:   opts.Address,
			Name:      name,
			Chain:     chain,
			RiskLevel: storage.RiskLow,
		})
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "monitoring %s (%s)\n", contract.Name, contract.Address)
	return nil
}

// Remove deletes a contract and its alerts.
func (a *App) Remove(ctx context.Context, address string) error {
	store, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.DeleteContract(address); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "removed %s\n", storage.NormalizeAddress(address))
	return nil
}

// ScanOptions configure a one-shot scan.
type ScanOptions struct {
	Addresses []string
}

// Scan runs the assessment pipeline once, for the whole watch list or for
// the named addresses only.
func (a *App) Scan(ctx context.Context, opts ScanOptions) error {
	store, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	svc := a.newService(store)

	if len(opts.Addresses) == 0 {
		return svc.ScanAll(ctx)
	}

	contracts, err := store.ListContracts()
	if err != nil {
		return err
	}
	byAddress := make(map[string]storage.MonitoredContract, len(contracts))
	for _, c := range contracts {
		byAddress[c.Address] = c
	}

	var failed int
	for _, addr := range opts.Addresses {
		c, ok := byAddress[storage.NormalizeAddress(addr)]
		if !ok {
			return fmt.Errorf("contract %s is not monitored", addr)
		}
		if err := svc.ScanContract(ctx, c); err != nil {
			failed++
			a.Logger.Error().Err(err).Str("address", c.Address).Msg("contract scan failed")
		}
	}
	if err := store.UpdateSyncTimestamp(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d contract scans failed", failed, len(opts.Addresses))
	}
	return nil
}

// SetAlertStatus transitions an alert to acknowledged or resolved.
func (a *App) SetAlertStatus(ctx context.Context, id string, status storage.AlertStatus) error {
	store, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	alert, err := store.SetAlertStatus(id, status)
	if err != nil {
		return err
	}
	if alert == nil {
		return fmt.Errorf("alert %s not found", id)
	}
	fmt.Fprintf(os.Stdout, "alert %s is now %s\n", alert.ID, alert.Status)
	return nil
}
