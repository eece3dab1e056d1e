package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	chart "github.com/wcharczuk/go-chart/v2"

	"chainguard-sentinel/internal/storage"
)

// ExportOptions hold parameters for exporting a contract's history.
type ExportOptions struct {
	Address string
	PNGPath string
	CSVPath string

	// MaxPoints caps the number of points per exported series; zero falls
	// back to the configured export.max_points.
	MaxPoints int
}

// Export renders a contract's bounded history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	store, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	contracts, err := store.ListContracts()
	if err != nil {
		return err
	}

	addr := storage.NormalizeAddress(opts.Address)
	var contract *storage.MonitoredContract
	for i := range contracts {
		if contracts[i].Address == addr {
			contract = &contracts[i]
			break
		}
	}
	if contract == nil {
		return fmt.Errorf("contract %s is not monitored", opts.Address)
	}

	if len(contract.History.RiskScore) == 0 && len(contract.History.Volatility) == 0 {
		a.Logger.Info().Str("address", addr).Msg("no history recorded yet")
		return nil
	}

	maxPoints := opts.MaxPoints
	if maxPoints <= 0 {
		maxPoints = a.Config.Export.MaxPoints
	}
	trimmed := *contract
	trimmed.History.RiskScore = downsample(contract.History.RiskScore, maxPoints)
	trimmed.History.Volatility = downsample(contract.History.Volatility, maxPoints)
	contract = &trimmed

	if opts.CSVPath != "" {
		if err := writeHistoryCSV(opts.CSVPath, contract); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeHistoryPNG(opts.PNGPath, contract); err != nil {
			return err
		}
	}

	return nil
}

func writeHistoryCSV(path string, contract *storage.MonitoredContract) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"series", "time", "value"}); err != nil {
		return err
	}
	for _, point := range contract.History.RiskScore {
		if err := writer.Write([]string{"risk_score", point.Time, fmt.Sprintf("%g", point.Value)}); err != nil {
			return err
		}
	}
	for _, point := range contract.History.Volatility {
		if err := writer.Write([]string{"volatility_pct", point.Time, fmt.Sprintf("%g", point.Value)}); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeHistoryPNG(path string, contract *storage.MonitoredContract) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	series := make([]chart.Series, 0, 2)
	labels := make([]string, 0)

	if points := contract.History.RiskScore; len(points) > 0 {
		xs, ys := seriesValues(points)
		labels = seriesLabels(points)
		series = append(series, chart.ContinuousSeries{
			Name:    "Risk score",
			XValues: xs,
			YValues: ys,
		})
	}
	if points := contract.History.Volatility; len(points) > 0 {
		xs, ys := seriesValues(points)
		if len(points) > len(labels) {
			labels = seriesLabels(points)
		}
		series = append(series, chart.ContinuousSeries{
			Name:    "Volatility %",
			XValues: xs,
			YValues: ys,
			YAxis:   chart.YAxisSecondary,
		})
	}

	graph := chart.Chart{
		Title:  contract.Name,
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: func(v interface{}) string {
				f, ok := v.(float64)
				if !ok {
					return ""
				}
				idx := int(f)
				if idx < 0 || idx >= len(labels) || float64(idx) != f {
					return ""
				}
				return labels[idx]
			},
		},
		YAxis: chart.YAxis{
			Name: "Risk score",
		},
		YAxisSecondary: chart.YAxis{
			Name: "Volatility (%)",
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

// downsample thins a series to at most max points by even stride, always
// keeping the first and last samples.
func downsample(points []storage.HistoryPoint, max int) []storage.HistoryPoint {
	if max <= 0 || len(points) <= max {
		return points
	}
	if max == 1 {
		return points[len(points)-1:]
	}

	sampled := make([]storage.HistoryPoint, 0, max)
	step := float64(len(points)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		sampled = append(sampled, points[int(math.Round(float64(i)*step))])
	}
	return sampled
}

func seriesValues(points []storage.HistoryPoint) ([]float64, []float64) {
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, point := range points {
		xs[i] = float64(i)
		ys[i] = point.Value
	}
	return xs, ys
}

func seriesLabels(points []storage.HistoryPoint) []string {
	labels := make([]string, len(points))
	for i, point := range points {
		labels[i] = point.Time
	}
	return labels
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
