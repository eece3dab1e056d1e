package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
)

// ShowOptions configure the alerts listing.
type ShowOptions struct {
	Limit int
}

// Show prints the monitored contract table.
func (a *App) Show(ctx context.Context) error {
	store, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	contracts, err := store.ListContracts()
	if err != nil {
		return err
	}
	if len(contracts) == 0 {
		fmt.Fprintln(os.Stdout, "no contracts monitored")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Address\tName\tChain\tTVL\tVolatility\tRisk\tStatus\tUpdated")

	for _, c := range contracts {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			c.Address,
			c.Name,
			c.Chain,
			c.TVL,
			c.Volatility,
			c.RiskLevel,
			c.Status,
			c.LastUpdate,
		)
	}

	return writer.Flush()
}

// ShowAlerts prints the most recent alerts.
func (a *App) ShowAlerts(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	alerts, err := store.ListAlerts()
	if err != nil {
		return err
	}
	if opts.Limit > 0 && len(alerts) > opts.Limit {
		alerts = alerts[:opts.Limit]
	}
	if len(alerts) == 0 {
		fmt.Fprintln(os.Stdout, "no alerts")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tTime\tContract\tType\tSeverity\tStatus\tMessage")

	for _, alert := range alerts {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			alert.ID,
			alert.Timestamp,
			alert.Contract,
			alert.Type,
			alert.Severity,
			alert.Status,
			sanitizeInline(alert.Message),
		)
	}

	return writer.Flush()
}

// Overview prints the aggregate KPI block.
func (a *App) Overview(ctx context.Context) error {
	store, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	overview, err := store.GetOverview()
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Monitored contracts: %d\n", overview.KPIs.MonitoredContracts)
	fmt.Fprintf(os.Stdout, "Active alerts:       %d\n", overview.KPIs.ActiveAlerts)
	fmt.Fprintf(os.Stdout, "Total value locked:  $%.0f\n", overview.KPIs.TotalValueLocked)
	fmt.Fprintf(os.Stdout, "Risk score:          %d\n", overview.KPIs.RiskScore)
	fmt.Fprintf(os.Stdout, "Oracle:              %s\n", overview.System.Oracle)
	fmt.Fprintf(os.Stdout, "Risk engine:         %s\n", overview.System.RiskEngine)
	fmt.Fprintf(os.Stdout, "Alert service:       %s\n", overview.System.AlertService)
	if overview.System.LastSync != "" {
		fmt.Fprintf(os.Stdout, "Last sync:           %s\n", overview.System.LastSync)
	}

	if len(overview.RecentAlerts) > 0 {
		fmt.Fprintln(os.Stdout, "\nRecent alerts:")
		writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, alert := range overview.RecentAlerts {
			fmt.Fprintf(writer, "  %s\t%s\t%s\t%s\n", alert.Timestamp, alert.Contract, alert.Severity, sanitizeInline(alert.Message))
		}
		return writer.Flush()
	}
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
