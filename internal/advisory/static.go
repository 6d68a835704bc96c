package advisory

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// StaticAdvisor implements LegalAdvisor and WealthAdvisor with fixed
// templates. It needs no network access and always returns the same text
// for the same input.
type StaticAdvisor struct{}

// NewStaticAdvisor creates a template-based advisor
func NewStaticAdvisor() *StaticAdvisor {
	return &StaticAdvisor{}
}

// Consult returns a rejection memo listing reasons
func (s *StaticAdvisor) Consult(ctx context.Context, reasons []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(reasons) == 0 {
		return "The application is declined on affordability grounds. No AML red flags were recorded.", nil
	}
	return fmt.Sprintf(
		"The application is declined. Enhanced due diligence is required before onboarding a client presenting: %s. "+
			"Source of funds must be verified and the case escalated to the compliance desk.",
		strings.Join(reasons, "; "),
	), nil
}

// Recommend returns a product pairing for the risk profile
func (s *StaticAdvisor) Recommend(ctx context.Context, income decimal.Decimal, profile string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch profile {
	case ProfileHighRisk:
		return fmt.Sprintf(
			"For a monthly income of $%s we recommend a Priority Banking account with a diversified equity portfolio "+
				"and a supplementary retirement scheme to optimise tax relief.",
			income.StringFixed(2),
		), nil
	default:
		return fmt.Sprintf(
			"For a monthly income of $%s we recommend a Multiplier savings account paired with a regular savings plan "+
				"into a low-cost index fund.",
			income.StringFixed(2),
		), nil
	}
}
