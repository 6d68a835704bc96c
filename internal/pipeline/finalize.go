package pipeline

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/savegress/sentinel/internal/advisory"
	"github.com/savegress/sentinel/internal/risk"
)

// DefaultWealthPlan is the next step for an approved applicant without a recommendation
const DefaultWealthPlan = "Open Standard Account"

// Route sends HIGH_RISK clients to legal review and everyone else to wealth advisory
func Route(report *risk.RiskReport) Route {
	if report.ComplianceAnalysis.Category == risk.CategoryHigh {
		return RouteLegalReview
	}
	return RouteWealthAdvisory
}

// WealthProfile labels income above threshold as High Risk
func WealthProfile(income, threshold decimal.Decimal) string {
	if income.GreaterThan(threshold) {
		return advisory.ProfileHighRisk
	}
	return advisory.ProfileLowRisk
}

// Finalize renders the verdict summary lines for a report. policyLimit is
// the engine's maximum expense ratio.
func Finalize(report *risk.RiskReport, legalOpinion, wealthPlan string, policyLimit decimal.Decimal) []string {
	lines := []string{}

	if report.FinalDecision != risk.DecisionReject {
		if wealthPlan == "" {
			wealthPlan = DefaultWealthPlan
		}
		return append(lines, "Next steps: "+wealthPlan)
	}

	if math := report.MathAnalysis; math.Status != risk.AffordabilityPass {
		lines = append(lines,
			"[FINANCIAL RISK]: Unsustainable Spending Patterns",
			fmt.Sprintf("- Expense Ratio: %.1f%% (Policy Limit: %.1f%%)",
				math.Ratio*100, policyLimit.Mul(decimal.NewFromInt(100)).InexactFloat64()),
			"- Assessment: Applicant has insufficient Net Disposable Income (NDI).",
		)
	}

	if compliance := report.ComplianceAnalysis; compliance.Category == risk.CategoryHigh {
		lines = append(lines,
			"[COMPLIANCE RISK]: AML Red Flags Detected",
			"- Flags: "+strings.Join(compliance.Reasons, ", "),
		)
		if legalOpinion != "" {
			lines = append(lines, "[LEGAL MEMO]: "+legalOpinion)
		}
	}

	return lines
}

// validationSummary renders the lines for an extraction that failed validation
func validationSummary(err *risk.ValidationError) []string {
	return []string{
		"[DATA QUALITY]: Extraction failed structural validation",
		"- Problems: " + strings.Join(err.Problems, "; "),
	}
}
