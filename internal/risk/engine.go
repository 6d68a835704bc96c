// Package risk implements the deterministic screening engine: a structuring
// (smurfing) detector, an affordability ratio check and an AML keyword scorer,
// integrated into a single APPROVE/REJECT decision.
//
// The engine holds no mutable state. Analyze may be called concurrently.
package risk

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/savegress/sentinel/pkg/models"
)

// Engine evaluates financial extractions against a fixed screening policy
type Engine struct {
	config     Config
	keywords   []string // lowercased HighRiskKeywords
	cashMarker string   // lowercased CashMarker
	logger     zerolog.Logger
}

// NewEngine creates a risk engine from a validated copy of config
func NewEngine(config Config, logger zerolog.Logger) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("risk config: %w", err)
	}

	config = config.clone()
	keywords := make([]string, len(config.HighRiskKeywords))
	for i, kw := range config.HighRiskKeywords {
		keywords[i] = strings.ToLower(kw)
	}

	return &Engine{
		config:     config,
		keywords:   keywords,
		cashMarker: strings.ToLower(config.CashMarker),
		logger:     logger.With().Str("component", "risk_engine").Logger(),
	}, nil
}

// Config returns a copy of the engine's policy
func (e *Engine) Config() Config {
	return e.config.clone()
}

// Analyze runs structuring, affordability and compliance checks and
// integrates them into a RiskReport. It returns a *ValidationError only for
// structurally invalid input.
func (e *Engine) Analyze(ext *models.FinancialExtraction) (*RiskReport, error) {
	if err := Validate(ext); err != nil {
		return nil, err
	}

	structuring := e.DetectStructuring(ext.Transactions)
	affordability := e.CheckAffordability(ext)
	compliance := e.ScoreCompliance(ext, structuring)

	report := &RiskReport{
		ClientName:          ext.ClientName,
		FinalDecision:       Integrate(affordability, compliance),
		MathAnalysis:        affordability,
		ComplianceAnalysis:  compliance,
		StructuringAnalysis: structuring,
		DataQuality:         inspectTransactions(ext.Transactions),
	}

	e.logger.Debug().
		Str("client", ext.ClientName).
		Str("decision", string(report.FinalDecision)).
		Str("affordability", string(affordability.Status)).
		Str("category", string(compliance.Category)).
		Int("risk_score", compliance.RiskScore).
		Int("structuring_count", structuring.Count).
		Msg("risk analysis complete")

	return report, nil
}

// Integrate combines the sub-reports: any affordability failure or a
// HIGH_RISK compliance category rejects.
func Integrate(math MathAnalysis, compliance ComplianceAnalysis) Decision {
	if math.Status != AffordabilityPass || compliance.Category == CategoryHigh {
		return DecisionReject
	}
	return DecisionApprove
}

func inspectTransactions(txns []models.Transaction) *DataQuality {
	var dq *DataQuality
	for i, txn := range txns {
		if txn.Usable() {
			continue
		}
		if dq == nil {
			dq = &DataQuality{Issues: []string{}}
		}
		dq.ExcludedTransactions++
		dq.Issues = append(dq.Issues, fmt.Sprintf("transaction %d: %s", i, txn.Defect))
	}
	return dq
}
