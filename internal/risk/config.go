package risk

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Config holds the risk engine thresholds and keyword lists.
// The engine keeps its own copy; changing a Config after NewEngine has no effect.
type Config struct {
	// Affordability
	MaxExpenseRatio decimal.Decimal `json:"max_expense_ratio"` // Default 0.60

	// Structuring
	ReportingLimit       decimal.Decimal `json:"reporting_limit"`       // Default 5000
	StructuringMin       decimal.Decimal `json:"structuring_min"`       // Default 4000
	StructuringThreshold int             `json:"structuring_threshold"` // Count must exceed this, default 1
	CashMarker           string          `json:"cash_marker"`           // Default "cash"

	// Compliance
	HighRiskKeywords      []string `json:"high_risk_keywords"`
	UnclearWealthPenalty  int      `json:"unclear_wealth_penalty"`   // Default 30
	HighRiskEntityPenalty int      `json:"high_risk_entity_penalty"` // Default 50
	StructuringPenalty    int      `json:"structuring_penalty"`      // Default 100
	HighRiskScore         int      `json:"high_risk_score"`          // Default 50
	MediumRiskScore       int      `json:"medium_risk_score"`        // Default 30
}

// DefaultHighRiskKeywords are entity name fragments that mark a risk flag as high risk
var DefaultHighRiskKeywords = []string{"Binance", "Casino", "Betting", "Luno", "Coinhako"}

// DefaultConfig returns the production screening policy
func DefaultConfig() Config {
	return Config{
		MaxExpenseRatio:       decimal.RequireFromString("0.60"),
		ReportingLimit:        decimal.NewFromInt(5000),
		StructuringMin:        decimal.NewFromInt(4000),
		StructuringThreshold:  1,
		CashMarker:            "cash",
		HighRiskKeywords:      append([]string(nil), DefaultHighRiskKeywords...),
		UnclearWealthPenalty:  30,
		HighRiskEntityPenalty: 50,
		StructuringPenalty:    100,
		HighRiskScore:         50,
		MediumRiskScore:       30,
	}
}

// Validate checks that the thresholds are internally consistent
func (c Config) Validate() error {
	if !c.MaxExpenseRatio.IsPositive() {
		return fmt.Errorf("max expense ratio must be positive, got %s", c.MaxExpenseRatio)
	}
	if !c.ReportingLimit.IsPositive() {
		return fmt.Errorf("reporting limit must be positive, got %s", c.ReportingLimit)
	}
	if c.StructuringMin.IsNegative() {
		return fmt.Errorf("structuring minimum must not be negative, got %s", c.StructuringMin)
	}
	if c.StructuringMin.GreaterThanOrEqual(c.ReportingLimit) {
		return fmt.Errorf("structuring minimum %s must be below reporting limit %s", c.StructuringMin, c.ReportingLimit)
	}
	if c.StructuringThreshold < 0 {
		return fmt.Errorf("structuring threshold must not be negative, got %d", c.StructuringThreshold)
	}
	if c.CashMarker == "" {
		return fmt.Errorf("cash marker must not be empty")
	}
	if c.UnclearWealthPenalty < 0 || c.HighRiskEntityPenalty < 0 || c.StructuringPenalty < 0 {
		return fmt.Errorf("penalties must not be negative")
	}
	if c.MediumRiskScore < 0 || c.MediumRiskScore > c.HighRiskScore {
		return fmt.Errorf("medium risk score %d must be between 0 and high risk score %d", c.MediumRiskScore, c.HighRiskScore)
	}
	for i, kw := range c.HighRiskKeywords {
		if kw == "" {
			return fmt.Errorf("high risk keyword %d is empty", i)
		}
	}
	return nil
}

func (c Config) clone() Config {
	c.HighRiskKeywords = append([]string(nil), c.HighRiskKeywords...)
	return c
}
