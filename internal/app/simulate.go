package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"chainguard-sentinel/internal/simulator"
)

// Simulate runs the oracle-simulation workflow for one address and prints
// the parsed assessment, bypassing the store.
func (a *App) Simulate(ctx context.Context, address string) error {
	sim := simulator.New(simulator.Options{
		Binary:   a.Config.Simulator.Binary,
		Workflow: a.Config.Simulator.Workflow,
		Timeout:  a.Config.Simulator.Timeout,
	}, a.Logger)

	assessment, err := sim.Simulate(ctx, address)
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(assessment, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(encoded))
	return nil
}
