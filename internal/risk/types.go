package risk

import (
	"github.com/shopspring/decimal"
)

// Decision is the terminal screening verdict
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// AffordabilityStatus is the outcome of the expense ratio check
type AffordabilityStatus string

const (
	AffordabilityPass     AffordabilityStatus = "PASS"
	AffordabilityFail     AffordabilityStatus = "FAIL_AFFORDABILITY"
	AffordabilityNoIncome AffordabilityStatus = "CRITICAL_NO_INCOME"
)

// Category is the AML risk category of a client
type Category string

const (
	CategoryLow    Category = "LOW_RISK"
	CategoryMedium Category = "MEDIUM_RISK"
	CategoryHigh   Category = "HIGH_RISK"
)

// Reason texts
const (
	ReasonUnclearWealth     = "Unclear Source of Wealth (No Salary Detected)"
	reasonHighRiskEntityFmt = "High Risk Entity: %s"
)

// RiskReport is the full result of one analysis
type RiskReport struct {
	ClientName          string              `json:"client_name"`
	FinalDecision       Decision            `json:"final_decision"`
	MathAnalysis        MathAnalysis        `json:"math_analysis"`
	ComplianceAnalysis  ComplianceAnalysis  `json:"compliance_analysis"`
	StructuringAnalysis StructuringAnalysis `json:"structuring_analysis"`
	DataQuality         *DataQuality        `json:"data_quality,omitempty"`
}

// MathAnalysis is the affordability sub-report
type MathAnalysis struct {
	Ratio    float64             `json:"ratio"`
	Status   AffordabilityStatus `json:"status"`
	Income   decimal.Decimal     `json:"income"`
	Spending decimal.Decimal     `json:"spending"`
}

// ComplianceAnalysis is the AML/KYC sub-report
type ComplianceAnalysis struct {
	RiskScore int      `json:"risk_score"`
	Category  Category `json:"category"`
	Reasons   []string `json:"reasons"`
}

// StructuringAnalysis is the result of the smurfing velocity check
type StructuringAnalysis struct {
	Detected bool     `json:"detected"`
	Count    int      `json:"count"`
	Evidence []string `json:"evidence"`
	Reason   string   `json:"reason,omitempty"`
}

// DataQuality lists transactions that were excluded from scoring
type DataQuality struct {
	ExcludedTransactions int      `json:"excluded_transactions"`
	Issues               []string `json:"issues"`
}
