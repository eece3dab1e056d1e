package storage

// RiskLevel is the coarse classification driving badges and KPI heuristics.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Severity grades an individual alert.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// AlertStatus tracks the lifecycle of an alert.
type AlertStatus string

const (
	AlertActive       AlertStatus = "active"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
)

// Risk status strings carried on a contract. Free-form by contract, but
// these are the values the pipeline writes.
const (
	StatusLow      = "LOW"
	StatusMedium   = "MEDIUM"
	StatusHigh     = "HIGH"
	StatusCritical = "CRITICAL"
)

// Metrics holds the numeric facts known about a contract. Every field is
// optional; absent fields survive merges untouched.
type Metrics struct {
	TVL        *float64 `json:"tvl,omitempty"`
	Price      *float64 `json:"price,omitempty"`
	Volume24h  *float64 `json:"volume24h,omitempty"`
	Volatility *float64 `json:"volatility,omitempty"`
	Liquidity  *float64 `json:"liquidity,omitempty"`
}

// HistoryPoint is one sample in a bounded display series.
type HistoryPoint struct {
	Time  string  `json:"time"`
	Value float64 `json:"value"`
}

// History carries the bounded per-contract time series rendered by charts.
type History struct {
	Volatility []HistoryPoint `json:"volatility,omitempty"`
	RiskScore  []HistoryPoint `json:"riskScore,omitempty"`
}

// PriceFeed references a Chainlink price feed relevant to a contract.
type PriceFeed struct {
	PairName    string `json:"pairName"`
	FeedAddress string `json:"feedAddress"`
	Decimals    int    `json:"decimals"`
}

// MonitoredContract is one registered contract with its assessment state.
// ID always equals the normalized address.
type MonitoredContract struct {
	ID                string             `json:"id"`
	Address           string             `json:"address"`
	Name              string             `json:"name"`
	Chain             string             `json:"chain,omitempty"`
	ChainSelectorName string             `json:"chainSelectorName,omitempty"`
	TVL               string             `json:"tvl,omitempty"`
	Price             string             `json:"price,omitempty"`
	Volatility        string             `json:"volatility,omitempty"`
	RiskLevel         RiskLevel          `json:"riskLevel,omitempty"`
	Status            string             `json:"status,omitempty"`
	RiskScore         *float64           `json:"riskScore,omitempty"`
	Metrics           Metrics            `json:"metrics"`
	History           History            `json:"history"`
	PriceFeeds        []PriceFeed        `json:"priceFeeds,omitempty"`
	RiskThresholds    map[string]float64 `json:"riskThresholds,omitempty"`
	LastUpdate        string             `json:"lastUpdate"`
}

// ContractUpdate is a partial update applied by UpdateContract. Nil fields
// are left alone; Metrics is shallow-merged field by field.
type ContractUpdate struct {
	Name              *string
	Chain             *string
	ChainSelectorName *string
	TVL               *string
	Volatility        *string
	RiskLevel         *RiskLevel
	Status            *string
	RiskScore         *float64
	Metrics           *Metrics
	PriceFeeds        []PriceFeed
	RiskThresholds    map[string]float64
}

// Alert is a raised risk event tied to a contract address.
type Alert struct {
	ID           string      `json:"id"`
	Timestamp    string      `json:"timestamp"`
	Contract     string      `json:"contract"`
	ContractName string      `json:"contractName"`
	Type         string      `json:"type"`
	Message      string      `json:"message"`
	Severity     Severity    `json:"severity"`
	Status       AlertStatus `json:"status"`
}

// KPIs are the aggregate dashboard figures.
type KPIs struct {
	MonitoredContracts int     `json:"monitoredContracts"`
	ActiveAlerts       int     `json:"activeAlerts"`
	TotalValueLocked   float64 `json:"totalValueLocked"`
	RiskScore          int     `json:"riskScore"`
}

// SystemStatus labels the backing services plus the last sync marker.
type SystemStatus struct {
	Oracle       string `json:"oracle"`
	RiskEngine   string `json:"riskEngine"`
	AlertService string `json:"alertService"`
	LastSync     string `json:"lastSync"`
}

// Overview is the payload behind the dashboard landing view.
type Overview struct {
	KPIs         KPIs         `json:"kpis"`
	RecentAlerts []Alert      `json:"recentAlerts"`
	System       SystemStatus `json:"system"`
}
