// Package advisory produces the narrative stages of a screening run: a legal
// memo that justifies a rejection, and a product recommendation for an
// approved applicant.
package advisory

import (
	"context"

	"github.com/shopspring/decimal"
)

// Risk profile labels passed to WealthAdvisor.Recommend
const (
	ProfileHighRisk = "High Risk"
	ProfileLowRisk  = "Low Risk"
)

// LegalAdvisor writes a rejection justification for the given risk reasons
type LegalAdvisor interface {
	Consult(ctx context.Context, reasons []string) (string, error)
}

// WealthAdvisor recommends products for an applicant
type WealthAdvisor interface {
	Recommend(ctx context.Context, income decimal.Decimal, profile string) (string, error)
}
