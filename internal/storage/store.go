package storage

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	keyContracts = "chainguard:contracts"
	keyAlerts    = "chainguard:alerts"
	keyLastSync  = "chainguard:last_sync"

	maxAlerts        = 100
	maxHistoryPoints = 10
	recentAlertCount = 5
)

// ContractStore is the single source of truth for monitored contracts and
// alerts. All reads and writes of the persisted collections go through it;
// operations are serialized internally, so concurrent callers cannot clobber
// each other's read-modify-write cycles.
type ContractStore struct {
	mu     sync.Mutex
	kv     KV
	logger zerolog.Logger
	now    func() time.Time
}

// NewContractStore wires a KV backend into a ContractStore.
func NewContractStore(kv KV, logger zerolog.Logger) *ContractStore {
	return &ContractStore{
		kv:     kv,
		logger: logger.With().Str("component", "store").Logger(),
		now:    time.Now,
	}
}

// NormalizeAddress lowercases an address and ensures the 0x prefix.
// Idempotent: normalizing twice yields the same result.
func NormalizeAddress(addr string) string {
	a := strings.ToLower(strings.TrimSpace(addr))
	if a == "" {
		return a
	}
	if !strings.HasPrefix(a, "0x") {
		a = "0x" + a
	}
	return a
}

// ListContracts returns the persisted watch list. An empty or absent set is
// initialized from the default seed and persisted; a persisted set missing a
// seed address gets that default appended. Seed entries never overwrite
// fields of an already-present contract.
func (s *ContractStore) ListContracts() ([]MonitoredContract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listContractsLocked()
}

func (s *ContractStore) listContractsLocked() ([]MonitoredContract, error) {
	contracts, err := s.readContracts()
	if err != nil {
		return nil, err
	}

	changed := false
	if len(contracts) == 0 {
		contracts = defaultContracts(s.now())
		changed = true
	} else {
		// Records written before normalization existed are migrated on read.
		for i := range contracts {
			addr := NormalizeAddress(contracts[i].Address)
			if contracts[i].Address != addr || contracts[i].ID != addr {
				contracts[i].Address = addr
				contracts[i].ID = addr
				changed = true
			}
		}
		for _, seed := range defaultContracts(s.now()) {
			if indexOfContract(contracts, seed.Address) < 0 {
				contracts = append(contracts, seed)
				changed = true
			}
		}
	}

	if changed {
		if err := s.writeContracts(contracts); err != nil {
			return nil, err
		}
	}
	return contracts, nil
}

// SaveContracts overwrites the full persisted contract set.
func (s *ContractStore) SaveContracts(contracts []MonitoredContract) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeContracts(contracts)
}

// AddContract registers a contract, replacing any existing entry with the
// same normalized address.
func (s *ContractStore) AddContract(data MonitoredContract) (MonitoredContract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contracts, err := s.listContractsLocked()
	if err != nil {
		return MonitoredContract{}, err
	}

	data.Address = NormalizeAddress(data.Address)
	data.ID = data.Address
	if data.Status == "" {
		data.Status = StatusLow
	}
	data.LastUpdate = s.now().UTC().Format(time.RFC3339)

	if i := indexOfContract(contracts, data.Address); i >= 0 {
		contracts[i] = data
	} else {
		contracts = append(contracts, data)
	}

	if err := s.writeContracts(contracts); err != nil {
		return MonitoredContract{}, err
	}
	return data, nil
}

// UpdateContract applies a partial update to the contract at the given
// address and recomputes derived display fields and bounded history.
// Returns nil (and leaves the collection untouched) when the address is
// unknown.
func (s *ContractStore) UpdateContract(address string, update ContractUpdate) (*MonitoredContract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contracts, err := s.readContracts()
	if err != nil {
		return nil, err
	}

	addr := NormalizeAddress(address)
	i := indexOfContract(contracts, addr)
	if i < 0 {
		return nil, nil
	}

	c := &contracts[i]
	now := s.now()

	if update.Name != nil {
		c.Name = *update.Name
	}
	if update.Chain != nil {
		c.Chain = *update.Chain
	}
	if update.ChainSelectorName != nil {
		c.ChainSelectorName = *update.ChainSelectorName
	}
	if update.TVL != nil {
		c.TVL = *update.TVL
	}
	if update.Volatility != nil {
		c.Volatility = *update.Volatility
	}
	if update.RiskLevel != nil {
		c.RiskLevel = *update.RiskLevel
	}
	if update.Status != nil {
		c.Status = *update.Status
	}
	if update.PriceFeeds != nil {
		c.PriceFeeds = update.PriceFeeds
	}
	if update.RiskThresholds != nil {
		c.RiskThresholds = update.RiskThresholds
	}

	if update.Metrics != nil {
		mergeMetrics(&c.Metrics, update.Metrics)

		if c.Metrics.TVL != nil {
			c.TVL = formatTVL(*c.Metrics.TVL)
		}
		if c.Metrics.Price != nil {
			c.Price = formatPrice(*c.Metrics.Price)
		}
		// A raw fractional volatility wins over any caller-supplied
		// display override.
		if c.Metrics.Volatility != nil {
			c.Volatility = formatVolatility(*c.Metrics.Volatility)
		}
		if update.Metrics.Volatility != nil {
			c.History.Volatility = appendCapped(c.History.Volatility, HistoryPoint{
				Time:  now.Format("15:04"),
				Value: roundTo(*update.Metrics.Volatility*100, 1),
			})
		}
	}

	if update.Status != nil || update.RiskLevel != nil || update.RiskScore != nil {
		score := scoreFromUpdate(update, c)
		c.RiskScore = &score
		c.History.RiskScore = appendCapped(c.History.RiskScore, HistoryPoint{
			Time:  now.Format("15:04"),
			Value: score,
		})
	}

	c.LastUpdate = now.UTC().Format(time.RFC3339)

	if err := s.writeContracts(contracts); err != nil {
		return nil, err
	}
	updated := *c
	return &updated, nil
}

// DeleteContract removes a contract and every alert raised against it.
func (s *ContractStore) DeleteContract(address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contracts, err := s.readContracts()
	if err != nil {
		return err
	}

	addr := NormalizeAddress(address)
	kept := contracts[:0]
	for _, c := range contracts {
		if NormalizeAddress(c.Address) != addr {
			kept = append(kept, c)
		}
	}
	if err := s.writeContracts(kept); err != nil {
		return err
	}

	alerts, err := s.readAlerts()
	if err != nil {
		return err
	}
	keptAlerts := alerts[:0]
	for _, a := range alerts {
		if NormalizeAddress(a.Contract) != addr {
			keptAlerts = append(keptAlerts, a)
		}
	}
	return s.writeAlerts(keptAlerts)
}

// ListAlerts returns the persisted alert list, newest first.
func (s *ContractStore) ListAlerts() ([]Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAlerts()
}

// SaveAlerts overwrites the full persisted alert list.
func (s *ContractStore) SaveAlerts(alerts []Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeAlerts(alerts)
}

// AddAlert assigns an id and timestamp, prepends the alert, and trims the
// list to the most recent entries.
func (s *ContractStore) AddAlert(data Alert) (Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alerts, err := s.readAlerts()
	if err != nil {
		return Alert{}, err
	}

	now := s.now()
	data.ID = newAlertID(now)
	if data.Timestamp == "" {
		data.Timestamp = now.UTC().Format(time.RFC3339)
	}
	if data.Status == "" {
		data.Status = AlertActive
	}
	data.Contract = NormalizeAddress(data.Contract)

	alerts = append([]Alert{data}, alerts...)
	if len(alerts) > maxAlerts {
		alerts = alerts[:maxAlerts]
	}

	if err := s.writeAlerts(alerts); err != nil {
		return Alert{}, err
	}
	return data, nil
}

// SetAlertStatus transitions an alert to the given status. Returns nil when
// the id is unknown. No transition guard is enforced.
func (s *ContractStore) SetAlertStatus(id string, status AlertStatus) (*Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alerts, err := s.readAlerts()
	if err != nil {
		return nil, err
	}

	for i := range alerts {
		if alerts[i].ID == id {
			alerts[i].Status = status
			if err := s.writeAlerts(alerts); err != nil {
				return nil, err
			}
			updated := alerts[i]
			return &updated, nil
		}
	}
	return nil, nil
}

// GetOverview aggregates KPIs over the current contract set and returns the
// most recent alerts plus the system status block.
//
// Note: ActiveAlerts counts contracts in HIGH/CRITICAL status, not alerts
// with status "active". The dashboard has always presented it this way.
func (s *ContractStore) GetOverview() (Overview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contracts, err := s.listContractsLocked()
	if err != nil {
		return Overview{}, err
	}
	alerts, err := s.readAlerts()
	if err != nil {
		return Overview{}, err
	}

	kpis := KPIs{MonitoredContracts: len(contracts)}

	totalTVL := decimal.Zero
	scoreSum := 0.0
	for _, c := range contracts {
		if c.Status == StatusHigh || c.Status == StatusCritical {
			kpis.ActiveAlerts++
		}
		totalTVL = totalTVL.Add(parseTVL(c.TVL))
		scoreSum += overviewScore(c)
	}
	kpis.TotalValueLocked = totalTVL.InexactFloat64()
	if len(contracts) > 0 {
		kpis.RiskScore = int(math.Round(scoreSum / float64(len(contracts))))
	}

	recent := alerts
	if len(recent) > recentAlertCount {
		recent = recent[:recentAlertCount]
	}

	lastSync := s.readLastSync()

	return Overview{
		KPIs:         kpis,
		RecentAlerts: recent,
		System: SystemStatus{
			Oracle:       "Chainlink CRE",
			RiskEngine:   "OpenRouter",
			AlertService: "operational",
			LastSync:     lastSync,
		},
	}, nil
}

// UpdateSyncTimestamp stamps the current time as the last-sync marker.
func (s *ContractStore) UpdateSyncTimestamp() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Set(keyLastSync, []byte(s.now().UTC().Format(time.RFC3339)))
}

func (s *ContractStore) readContracts() ([]MonitoredContract, error) {
	raw, ok, err := s.kv.Get(keyContracts)
	if err != nil {
		return nil, fmt.Errorf("read contracts: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var contracts []MonitoredContract
	if err := json.Unmarshal(raw, &contracts); err != nil {
		s.logger.Error().Err(err).Msg("malformed contract collection; treating as empty")
		return nil, nil
	}
	return contracts, nil
}

func (s *ContractStore) writeContracts(contracts []MonitoredContract) error {
	if contracts == nil {
		contracts = []MonitoredContract{}
	}
	raw, err := json.Marshal(contracts)
	if err != nil {
		return fmt.Errorf("marshal contracts: %w", err)
	}
	return s.kv.Set(keyContracts, raw)
}

func (s *ContractStore) readAlerts() ([]Alert, error) {
	raw, ok, err := s.kv.Get(keyAlerts)
	if err != nil {
		return nil, fmt.Errorf("read alerts: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var alerts []Alert
	if err := json.Unmarshal(raw, &alerts); err != nil {
		s.logger.Error().Err(err).Msg("malformed alert collection; treating as empty")
		return nil, nil
	}
	return alerts, nil
}

func (s *ContractStore) writeAlerts(alerts []Alert) error {
	if alerts == nil {
		alerts = []Alert{}
	}
	raw, err := json.Marshal(alerts)
	if err != nil {
		return fmt.Errorf("marshal alerts: %w", err)
	}
	return s.kv.Set(keyAlerts, raw)
}

func (s *ContractStore) readLastSync() string {
	raw, ok, err := s.kv.Get(keyLastSync)
	if err != nil || !ok {
		return ""
	}
	return string(raw)
}

func indexOfContract(contracts []MonitoredContract, normalized string) int {
	for i := range contracts {
		if NormalizeAddress(contracts[i].Address) == normalized {
			return i
		}
	}
	return -1
}

func mergeMetrics(dst, src *Metrics) {
	if src.TVL != nil {
		dst.TVL = src.TVL
	}
	if src.Price != nil {
		dst.Price = src.Price
	}
	if src.Volume24h != nil {
		dst.Volume24h = src.Volume24h
	}
	if src.Volatility != nil {
		dst.Volatility = src.Volatility
	}
	if src.Liquidity != nil {
		dst.Liquidity = src.Liquidity
	}
}

func appendCapped(series []HistoryPoint, point HistoryPoint) []HistoryPoint {
	series = append(series, point)
	if len(series) > maxHistoryPoints {
		series = series[len(series)-maxHistoryPoints:]
	}
	return series
}

// scoreFromUpdate resolves the risk score written to history: an explicit
// value wins, otherwise the score is inferred from the merged status and
// risk level.
func scoreFromUpdate(update ContractUpdate, c *MonitoredContract) float64 {
	if update.RiskScore != nil {
		return *update.RiskScore
	}
	switch {
	case c.RiskLevel == RiskHigh || c.Status == StatusCritical:
		return 85
	case c.RiskLevel == RiskMedium || c.Status == StatusHigh:
		return 65
	default:
		return 15
	}
}

// overviewScore feeds the KPI average: explicit score when present, a
// coarser heuristic by risk level otherwise.
func overviewScore(c MonitoredContract) float64 {
	if c.RiskScore != nil {
		return *c.RiskScore
	}
	switch c.RiskLevel {
	case RiskHigh:
		return 75
	case RiskMedium:
		return 45
	default:
		return 15
	}
}

func formatTVL(v float64) string {
	return "$" + decimal.NewFromFloat(v/1e6).StringFixed(1) + "M"
}

func formatPrice(v float64) string {
	return "$" + decimal.NewFromFloat(v).StringFixed(2)
}

func formatVolatility(frac float64) string {
	return decimal.NewFromFloat(frac * 100).StringFixed(1) + "%"
}

var tvlPattern = regexp.MustCompile(`^\$([0-9]*\.?[0-9]+)([MK])?$`)

func parseTVL(display string) decimal.Decimal {
	m := tvlPattern.FindStringSubmatch(strings.TrimSpace(display))
	if m == nil {
		return decimal.Zero
	}
	value, err := decimal.NewFromString(m[1])
	if err != nil {
		return decimal.Zero
	}
	switch m[2] {
	case "M":
		return value.Mul(decimal.NewFromInt(1_000_000))
	case "K":
		return value.Mul(decimal.NewFromInt(1_000))
	default:
		return value
	}
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow10(places)
	return math.Round(v*scale) / scale
}

func newAlertID(now time.Time) string {
	return fmt.Sprintf("alert-%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}
