package risk

import (
	"chainguard-sentinel/internal/storage"
)

// Assessment is the normalized result of one risk evaluation, whichever
// engine produced it.
type Assessment struct {
	RiskScore  float64  `json:"riskScore"`
	RiskLevel  string   `json:"riskLevel"`
	Status     string   `json:"status"`
	Volatility *float64 `json:"volatility,omitempty"`
	Factors    []string `json:"factors,omitempty"`
	Summary    string   `json:"summary,omitempty"`

	// Source names the producing engine ("simulation", "llm").
	Source string `json:"-"`
}

// Normalize fills missing level/status fields from the score so downstream
// consumers always see a coherent triple.
func (a *Assessment) Normalize() {
	if a.RiskLevel == "" {
		a.RiskLevel = string(LevelForScore(a.RiskScore))
	}
	if a.Status == "" {
		a.Status = StatusForScore(a.RiskScore)
	}
}

// Merge folds another assessment into this one, keeping the worse score and
// its level/status, and accumulating factors.
func (a *Assessment) Merge(other Assessment) {
	if other.RiskScore > a.RiskScore {
		a.RiskScore = other.RiskScore
		a.RiskLevel = other.RiskLevel
		a.Status = other.Status
	}
	if a.Volatility == nil {
		a.Volatility = other.Volatility
	}
	a.Factors = append(a.Factors, other.Factors...)
	if a.Summary == "" {
		a.Summary = other.Summary
	}
}

// LevelForScore maps a 0-100 score to the coarse risk level.
func LevelForScore(score float64) storage.RiskLevel {
	switch {
	case score >= 70:
		return storage.RiskHigh
	case score >= 40:
		return storage.RiskMedium
	default:
		return storage.RiskLow
	}
}

// StatusForScore maps a 0-100 score to the contract status string.
func StatusForScore(score float64) string {
	switch {
	case score >= 85:
		return storage.StatusCritical
	case score >= 70:
		return storage.StatusHigh
	case score >= 40:
		return storage.StatusMedium
	default:
		return storage.StatusLow
	}
}

// SeverityForStatus grades the alert raised for a status.
func SeverityForStatus(status string) storage.Severity {
	switch status {
	case storage.StatusCritical, storage.StatusHigh:
		return storage.SeverityHigh
	case storage.StatusMedium:
		return storage.SeverityMedium
	default:
		return storage.SeverityLow
	}
}
