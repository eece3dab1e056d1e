package app

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"chainguard-sentinel/internal/storage"
)

func historySeries(n int) []storage.HistoryPoint {
	points := make([]storage.HistoryPoint, n)
	for i := range points {
		points[i] = storage.HistoryPoint{Time: fmt.Sprintf("09:%02d", i), Value: float64(i)}
	}
	return points
}

func TestDownsample(t *testing.T) {
	points := historySeries(10)

	require.Len(t, downsample(points, 0), 10)
	require.Len(t, downsample(points, 20), 10)

	sampled := downsample(points, 4)
	require.Len(t, sampled, 4)
	require.Equal(t, points[0], sampled[0])
	require.Equal(t, points[9], sampled[3])

	latest := downsample(points, 1)
	require.Len(t, latest, 1)
	require.Equal(t, points[9], latest[0])
}

func TestWriteHistoryCSVHonoursMaxPoints(t *testing.T) {
	contract := &storage.MonitoredContract{
		Name: "Capped",
		History: storage.History{
			RiskScore:  downsample(historySeries(10), 3),
			Volatility: downsample(historySeries(10), 3),
		},
	}

	path := filepath.Join(t.TempDir(), "history.csv")
	require.NoError(t, writeHistoryCSV(path, contract))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	// Header plus three rows per series.
	require.Len(t, rows, 7)
	require.Equal(t, []string{"series", "time", "value"}, rows[0])
	require.Equal(t, "risk_score", rows[1][0])
	require.Equal(t, "volatility_pct", rows[4][0])
}
