package risk

import (
	"errors"
	"fmt"
	"strings"

	"github.com/savegress/sentinel/pkg/models"
)

// ErrInvalidExtraction is matched by every ValidationError via errors.Is
var ErrInvalidExtraction = errors.New("invalid extraction")

// ValidationError reports a structurally invalid extraction record.
// Callers decide whether it is fatal or needs manual review.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidExtraction, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidExtraction
}

// Validate checks the structural invariants the engine relies on.
// Unusual but valid inputs (zero income, no flags, no transactions) pass.
func Validate(ext *models.FinancialExtraction) error {
	if ext == nil {
		return &ValidationError{Problems: []string{"extraction record is missing"}}
	}

	var problems []string
	if !models.AmountInRange(ext.TotalIncome) {
		problems = append(problems, "total_income is out of range")
	} else if ext.TotalIncome.IsNegative() {
		problems = append(problems, fmt.Sprintf("total_income is negative (%s)", ext.TotalIncome))
	}
	if !models.AmountInRange(ext.TotalExpenditure) {
		problems = append(problems, "total_expenditure is out of range")
	} else if ext.TotalExpenditure.IsNegative() {
		problems = append(problems, fmt.Sprintf("total_expenditure is negative (%s)", ext.TotalExpenditure))
	}
	if ext.SourceOfWealth != "" && !ext.SourceOfWealth.Valid() {
		problems = append(problems, fmt.Sprintf("source_of_wealth %q is not recognized", ext.SourceOfWealth))
	}
	for i, txn := range ext.Transactions {
		if !txn.Usable() {
			continue
		}
		if !models.AmountInRange(txn.Amount) {
			problems = append(problems, fmt.Sprintf("transaction %d amount is out of range", i))
		} else if txn.Amount.IsNegative() {
			problems = append(problems, fmt.Sprintf("transaction %d has negative amount %s", i, txn.Amount))
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
