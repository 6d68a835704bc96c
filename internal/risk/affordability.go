package risk

import (
	"github.com/savegress/sentinel/pkg/models"
)

// noIncomeRatio is reported when there is no income to divide by
const noIncomeRatio = 1.0

// CheckAffordability computes the expense-to-income ratio from the reported
// totals. The transaction list is not consulted.
func (e *Engine) CheckAffordability(ext *models.FinancialExtraction) MathAnalysis {
	income := ext.TotalIncome
	spending := ext.TotalExpenditure

	if income.IsZero() {
		return MathAnalysis{
			Ratio:    noIncomeRatio,
			Status:   AffordabilityNoIncome,
			Income:   income,
			Spending: spending,
		}
	}

	ratio := spending.Div(income)

	status := AffordabilityFail
	if ratio.LessThan(e.config.MaxExpenseRatio) {
		status = AffordabilityPass
	}

	return MathAnalysis{
		Ratio:    ratio.Round(2).InexactFloat64(),
		Status:   status,
		Income:   income,
		Spending: spending,
	}
}
