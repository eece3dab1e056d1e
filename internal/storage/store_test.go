package storage

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *ContractStore {
	t.Helper()
	store := NewContractStore(NewMemoryKV(), zerolog.Nop())
	store.now = func() time.Time {
		return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	}
	return store
}

func TestNormalizeAddress(t *testing.T) {
	raw := "514910771AF9CA656AF840DFF83E8264ECF986CA"
	want := "0x514910771af9ca656af840dff83e8264ecf986ca"

	require.Equal(t, want, NormalizeAddress(raw))
	require.Equal(t, want, NormalizeAddress(NormalizeAddress(raw)))
	require.Equal(t, want, NormalizeAddress("0X514910771AF9CA656AF840DFF83E8264ECF986CA"))
}

func TestListContractsSeedsOnFirstRun(t *testing.T) {
	store := newTestStore(t)

	contracts, err := store.ListContracts()
	require.NoError(t, err)
	require.Len(t, contracts, 3)

	// Seed must be persisted, not recomputed per call.
	raw, ok, err := store.kv.Get(keyContracts)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, raw)

	for _, c := range contracts {
		require.Equal(t, c.Address, c.ID)
		require.Equal(t, c.Address, NormalizeAddress(c.Address))
	}
}

func TestSeedNeverOverwritesUserEdits(t *testing.T) {
	store := newTestStore(t)

	seedAddr := "0x514910771af9ca656af840dff83e8264ecf986ca"
	_, err := store.AddContract(MonitoredContract{Address: seedAddr, Name: "My LINK Watch"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		contracts, err := store.ListContracts()
		require.NoError(t, err)
		idx := indexOfContract(contracts, seedAddr)
		require.GreaterOrEqual(t, idx, 0)
		require.Equal(t, "My LINK Watch", contracts[idx].Name)
	}
}

func TestListContractsAppendsMissingSeed(t *testing.T) {
	store := newTestStore(t)

	custom := MonitoredContract{
		ID:      "0xabc0000000000000000000000000000000000000",
		Address: "0xabc0000000000000000000000000000000000000",
		Name:    "Custom",
	}
	require.NoError(t, store.SaveContracts([]MonitoredContract{custom}))

	contracts, err := store.ListContracts()
	require.NoError(t, err)
	require.Len(t, contracts, 4)
	require.Equal(t, "Custom", contracts[0].Name)
}

func TestListContractsNormalizesLegacyRecords(t *testing.T) {
	store := newTestStore(t)

	legacy := MonitoredContract{
		ID:      "legacy",
		Address: "514910771AF9CA656AF840DFF83E8264ECF986CA",
		Name:    "Legacy LINK",
	}
	require.NoError(t, store.SaveContracts([]MonitoredContract{legacy}))

	contracts, err := store.ListContracts()
	require.NoError(t, err)
	require.Equal(t, "0x514910771af9ca656af840dff83e8264ecf986ca", contracts[0].Address)
	require.Equal(t, contracts[0].Address, contracts[0].ID)
	// The migrated record holds the seed slot; the seed must not duplicate it.
	require.Len(t, contracts, 3)
	require.Equal(t, "Legacy LINK", contracts[0].Name)
}

func TestAddContractUpsert(t *testing.T) {
	store := newTestStore(t)

	addr := "0xDDDD000000000000000000000000000000000000"
	_, err := store.AddContract(MonitoredContract{Address: addr, Name: "first"})
	require.NoError(t, err)
	added, err := store.AddContract(MonitoredContract{Address: strings.ToLower(addr), Name: "second"})
	require.NoError(t, err)

	require.Equal(t, NormalizeAddress(addr), added.ID)
	require.Equal(t, StatusLow, added.Status)

	contracts, err := store.ListContracts()
	require.NoError(t, err)

	matches := 0
	for _, c := range contracts {
		if c.Address == NormalizeAddress(addr) {
			matches++
			require.Equal(t, "second", c.Name)
		}
	}
	require.Equal(t, 1, matches)
}

func TestDeleteContractCascadesAlerts(t *testing.T) {
	store := newTestStore(t)

	addrA := "0xaaaa000000000000000000000000000000000000"
	addrB := "0xbbbb000000000000000000000000000000000000"
	for _, addr := range []string{addrA, addrB} {
		_, err := store.AddContract(MonitoredContract{Address: addr, Name: addr})
		require.NoError(t, err)
		_, err = store.AddAlert(Alert{Contract: addr, Type: "risk", Severity: SeverityHigh})
		require.NoError(t, err)
	}

	require.NoError(t, store.DeleteContract(strings.ToUpper(addrA[2:])))

	contracts, err := store.ListContracts()
	require.NoError(t, err)
	require.Less(t, indexOfContract(contracts, addrA), 0)
	require.GreaterOrEqual(t, indexOfContract(contracts, addrB), 0)

	alerts, err := store.ListAlerts()
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	for _, a := range alerts {
		require.NotEqual(t, addrA, a.Contract)
	}
}

func TestAddAlertBounding(t *testing.T) {
	store := newTestStore(t)

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 105; i++ {
		tick := base.Add(time.Duration(i) * time.Second)
		store.now = func() time.Time { return tick }
		_, err := store.AddAlert(Alert{
			Contract: "0xaaaa000000000000000000000000000000000000",
			Type:     "risk",
			Message:  fmt.Sprintf("alert %d", i),
		})
		require.NoError(t, err)
	}

	alerts, err := store.ListAlerts()
	require.NoError(t, err)
	require.Len(t, alerts, maxAlerts)

	// Newest first: the 5 most recent insertions lead the list.
	for i := 0; i < 5; i++ {
		require.Equal(t, fmt.Sprintf("alert %d", 104-i), alerts[i].Message)
	}
}

func TestAlertDefaults(t *testing.T) {
	store := newTestStore(t)

	alert, err := store.AddAlert(Alert{Contract: "0xAAAA000000000000000000000000000000000000"})
	require.NoError(t, err)
	require.Equal(t, AlertActive, alert.Status)
	require.Equal(t, "0xaaaa000000000000000000000000000000000000", alert.Contract)
	require.NotEmpty(t, alert.Timestamp)
	require.True(t, strings.HasPrefix(alert.ID, "alert-"))
}

func TestUpdateContractHistoryCapping(t *testing.T) {
	store := newTestStore(t)

	addr := "0xcccc000000000000000000000000000000000000"
	_, err := store.AddContract(MonitoredContract{Address: addr, Name: "capped"})
	require.NoError(t, err)

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 15; i++ {
		tick := base.Add(time.Duration(i) * time.Minute)
		store.now = func() time.Time { return tick }
		vol := 0.01 * float64(i+1)
		updated, err := store.UpdateContract(addr, ContractUpdate{
			Metrics: &Metrics{Volatility: &vol},
		})
		require.NoError(t, err)
		require.NotNil(t, updated)
	}

	contracts, err := store.ListContracts()
	require.NoError(t, err)
	c := contracts[indexOfContract(contracts, addr)]

	require.Len(t, c.History.Volatility, maxHistoryPoints)
	for i, point := range c.History.Volatility {
		// Updates 6..15 survive, in chronological order.
		wantValue := float64(i + 6)
		require.InDelta(t, wantValue, point.Value, 1e-9)
		require.Equal(t, base.Add(time.Duration(i+5)*time.Minute).Format("15:04"), point.Time)
	}
}

func TestUpdateContractUnknownAddress(t *testing.T) {
	store := newTestStore(t)

	_, err := store.ListContracts()
	require.NoError(t, err)
	before, _, err := store.kv.Get(keyContracts)
	require.NoError(t, err)

	updated, err := store.UpdateContract("0x0000000000000000000000000000000000000bad", ContractUpdate{
		Status: strPtr(StatusCritical),
	})
	require.NoError(t, err)
	require.Nil(t, updated)

	after, _, err := store.kv.Get(keyContracts)
	require.NoError(t, err)
	if diff := cmp.Diff(string(before), string(after)); diff != "" {
		t.Fatalf("persisted collection changed on unknown-address update (-before +after):\n%s", diff)
	}
}

func TestUpdateContractDerivedFields(t *testing.T) {
	store := newTestStore(t)

	addr := "0xeeee000000000000000000000000000000000000"
	_, err := store.AddContract(MonitoredContract{Address: addr, Name: "derived"})
	require.NoError(t, err)

	tvl := 1_500_000.0
	price := 14.527
	vol := 0.042
	override := "9.9%"
	updated, err := store.UpdateContract(addr, ContractUpdate{
		Volatility: &override,
		Metrics:    &Metrics{TVL: &tvl, Price: &price, Volatility: &vol},
	})
	require.NoError(t, err)
	require.NotNil(t, updated)

	require.Equal(t, "$1.5M", updated.TVL)
	require.Equal(t, "$14.53", updated.Price)
	// metrics.volatility beats the caller-supplied display override
	require.Equal(t, "4.2%", updated.Volatility)
	require.Len(t, updated.History.Volatility, 1)
	require.InDelta(t, 4.2, updated.History.Volatility[0].Value, 1e-9)

	// Metrics absent from the update survive the merge.
	liquidity := 5_000_000.0
	updated, err = store.UpdateContract(addr, ContractUpdate{
		Metrics: &Metrics{Liquidity: &liquidity},
	})
	require.NoError(t, err)
	require.NotNil(t, updated.Metrics.TVL)
	require.InDelta(t, tvl, *updated.Metrics.TVL, 1e-9)
	require.InDelta(t, liquidity, *updated.Metrics.Liquidity, 1e-9)
}

func TestUpdateContractRiskScoreHeuristic(t *testing.T) {
	store := newTestStore(t)

	addr := "0xffff000000000000000000000000000000000000"
	_, err := store.AddContract(MonitoredContract{Address: addr, Name: "scored"})
	require.NoError(t, err)

	cases := []struct {
		update ContractUpdate
		want   float64
	}{
		{ContractUpdate{Status: strPtr(StatusCritical)}, 85},
		{ContractUpdate{RiskLevel: riskPtr(RiskHigh)}, 85},
		{ContractUpdate{RiskLevel: riskPtr(RiskMedium), Status: strPtr(StatusMedium)}, 65},
		{ContractUpdate{RiskLevel: riskPtr(RiskLow), Status: strPtr(StatusHigh)}, 65},
		{ContractUpdate{RiskLevel: riskPtr(RiskLow), Status: strPtr(StatusLow)}, 15},
		{ContractUpdate{RiskScore: floatPtr(42), RiskLevel: riskPtr(RiskHigh)}, 42},
	}
	for i, tc := range cases {
		updated, err := store.UpdateContract(addr, tc.update)
		require.NoError(t, err, "case %d", i)
		require.NotNil(t, updated.RiskScore, "case %d", i)
		require.InDelta(t, tc.want, *updated.RiskScore, 1e-9, "case %d", i)
		require.Len(t, updated.History.RiskScore, i+1)
	}
}

func TestSetAlertStatus(t *testing.T) {
	store := newTestStore(t)

	alert, err := store.AddAlert(Alert{Contract: "0xaaaa000000000000000000000000000000000000"})
	require.NoError(t, err)

	acked, err := store.SetAlertStatus(alert.ID, AlertAcknowledged)
	require.NoError(t, err)
	require.NotNil(t, acked)
	require.Equal(t, AlertAcknowledged, acked.Status)

	resolved, err := store.SetAlertStatus(alert.ID, AlertResolved)
	require.NoError(t, err)
	require.Equal(t, AlertResolved, resolved.Status)

	missing, err := store.SetAlertStatus("alert-0-deadbeef", AlertResolved)
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestOverviewTVLAggregation(t *testing.T) {
	store := newTestStore(t)

	contracts := seedWithOverrides(store, func(contracts []MonitoredContract) {
		contracts[0].TVL = "$1.0M"
		contracts[1].TVL = "$500K"
		contracts[2].TVL = "$0.0M"
	})
	require.Len(t, contracts, 3)

	overview, err := store.GetOverview()
	require.NoError(t, err)
	require.InDelta(t, 1_500_000, overview.KPIs.TotalValueLocked, 1e-6)
}

func TestOverviewRiskScoreHeuristic(t *testing.T) {
	store := newTestStore(t)

	seedWithOverrides(store, func(contracts []MonitoredContract) {
		levels := []RiskLevel{RiskLow, RiskMedium, RiskHigh}
		for i := range contracts {
			contracts[i].RiskLevel = levels[i]
			contracts[i].RiskScore = nil
		}
	})

	overview, err := store.GetOverview()
	require.NoError(t, err)
	require.Equal(t, 45, overview.KPIs.RiskScore)
}

// ActiveAlerts intentionally counts HIGH/CRITICAL contracts, not alerts in
// "active" status. Both readings are pinned here so a change to either is
// loud.
func TestOverviewActiveAlertsCountsContracts(t *testing.T) {
	store := newTestStore(t)

	seedWithOverrides(store, func(contracts []MonitoredContract) {
		contracts[0].Status = StatusHigh
		contracts[1].Status = StatusCritical
		contracts[2].Status = StatusLow
	})

	_, err := store.AddAlert(Alert{Contract: "0x514910771af9ca656af840dff83e8264ecf986ca"})
	require.NoError(t, err)

	overview, err := store.GetOverview()
	require.NoError(t, err)
	require.Equal(t, 2, overview.KPIs.ActiveAlerts)

	alerts, err := store.ListAlerts()
	require.NoError(t, err)
	active := 0
	for _, a := range alerts {
		if a.Status == AlertActive {
			active++
		}
	}
	require.Equal(t, 1, active)
	require.NotEqual(t, active, overview.KPIs.ActiveAlerts)
}

func TestOverviewSeedsLikeListContracts(t *testing.T) {
	store := newTestStore(t)

	// First-ever overview call runs through the same seeding path as
	// ListContracts.
	overview, err := store.GetOverview()
	require.NoError(t, err)
	require.Equal(t, 3, overview.KPIs.MonitoredContracts)
	require.Empty(t, overview.RecentAlerts)
}

func TestOverviewRecentAlertsLimit(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 8; i++ {
		_, err := store.AddAlert(Alert{Contract: "0xaaaa000000000000000000000000000000000000", Message: fmt.Sprintf("a%d", i)})
		require.NoError(t, err)
	}

	overview, err := store.GetOverview()
	require.NoError(t, err)
	require.Len(t, overview.RecentAlerts, recentAlertCount)
	require.Equal(t, "a7", overview.RecentAlerts[0].Message)
}

func TestMalformedCollectionsTreatedAsEmpty(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.kv.Set(keyContracts, []byte("{not json")))
	require.NoError(t, store.kv.Set(keyAlerts, []byte("[broken")))

	contracts, err := store.ListContracts()
	require.NoError(t, err)
	require.Len(t, contracts, 3) // reseeded

	alerts, err := store.ListAlerts()
	require.NoError(t, err)
	require.Empty(t, alerts)
}

func TestUpdateSyncTimestamp(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.UpdateSyncTimestamp())
	overview, err := store.GetOverview()
	require.NoError(t, err)
	require.Equal(t, "2026-03-14T09:30:00Z", overview.System.LastSync)
}

func TestParseTVL(t *testing.T) {
	cases := map[string]float64{
		"$1.0M":  1_000_000,
		"$500K":  500_000,
		"$0.0M":  0,
		"$1234":  1234,
		"":       0,
		"n/a":    0,
		"$12.5M": 12_500_000,
	}
	for display, want := range cases {
		require.InDelta(t, want, parseTVL(display).InexactFloat64(), 1e-6, "display %q", display)
	}
}

// seedWithOverrides seeds the store, applies mutations to the seeded slice,
// and saves it back, bypassing UpdateContract's derivation logic.
func seedWithOverrides(store *ContractStore, mutate func([]MonitoredContract)) []MonitoredContract {
	contracts, _ := store.ListContracts()
	mutate(contracts)
	_ = store.SaveContracts(contracts)
	return contracts
}

func strPtr(s string) *string { return &s }

func riskPtr(r RiskLevel) *RiskLevel { return &r }
