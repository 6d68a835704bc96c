package pipeline

import (
	"fmt"
	"time"

	"github.com/savegress/sentinel/internal/risk"
	"github.com/savegress/sentinel/pkg/models"
)

// Decision is the verdict of one pipeline run
type Decision string

const (
	DecisionApprove         Decision = "APPROVE"
	DecisionReject          Decision = "REJECT"
	DecisionErrorReadingPDF Decision = "ERROR_READING_PDF"
	DecisionManualReview    Decision = "MANUAL_REVIEW"
)

// Route is the advisory branch taken after risk assessment
type Route string

const (
	RouteLegalReview    Route = "legal_review"
	RouteWealthAdvisory Route = "wealth_advisory"
)

// ValidationPolicy decides the verdict for a structurally invalid extraction
type ValidationPolicy string

const (
	PolicyManualReview ValidationPolicy = "manual_review"
	PolicyReject       ValidationPolicy = "reject"
)

// ParseValidationPolicy parses a policy name; empty means manual_review
func ParseValidationPolicy(s string) (ValidationPolicy, error) {
	switch ValidationPolicy(s) {
	case "", PolicyManualReview:
		return PolicyManualReview, nil
	case PolicyReject:
		return PolicyReject, nil
	}
	return "", fmt.Errorf("unknown validation policy %q", s)
}

// Outcome records one screening run from source to verdict
type Outcome struct {
	ID           string                      `json:"id"`
	Source       string                      `json:"source"`
	Decision     Decision                    `json:"decision"`
	Route        Route                       `json:"route,omitempty"`
	Extraction   *models.FinancialExtraction `json:"extraction,omitempty"`
	Report       *risk.RiskReport            `json:"report,omitempty"`
	LegalOpinion string                      `json:"legal_opinion,omitempty"`
	WealthPlan   string                      `json:"wealth_plan,omitempty"`
	Summary      []string                    `json:"summary"`
	Warnings     []string                    `json:"warnings,omitempty"`
	Error        string                      `json:"error,omitempty"`
	StartedAt    time.Time                   `json:"started_at"`
	CompletedAt  time.Time                   `json:"completed_at"`
}

// ClientName returns the client from the report or the extraction, if any
func (o *Outcome) ClientName() string {
	if o.Report != nil {
		return o.Report.ClientName
	}
	if o.Extraction != nil {
		return o.Extraction.ClientName
	}
	return ""
}

// Duration returns the wall time of the run
func (o *Outcome) Duration() time.Duration {
	return o.CompletedAt.Sub(o.StartedAt)
}

func (o *Outcome) warn(format string, args ...interface{}) {
	o.Warnings = append(o.Warnings, fmt.Sprintf(format, args...))
}
