package risk

import (
	"fmt"
	"strings"

	"github.com/savegress/sentinel/pkg/models"
)

// DetectStructuring counts cash credits sized just under the reporting limit.
// More than StructuringThreshold such deposits is treated as smurfing.
func (e *Engine) DetectStructuring(txns []models.Transaction) StructuringAnalysis {
	result := StructuringAnalysis{Evidence: []string{}}

	for _, txn := range txns {
		if !e.inSmurfingZone(txn) {
			continue
		}
		result.Count++
		result.Evidence = append(result.Evidence, fmt.Sprintf("$%s on %s", txn.Amount.StringFixed(2), dateOrUnknown(txn.Date)))
	}

	if result.Count > e.config.StructuringThreshold {
		result.Detected = true
		result.Reason = fmt.Sprintf(
			"POTENTIAL STRUCTURING: Detected %d deposits in the 'Smurfing Zone' ($%s-$%s). Logic suggests evasion of the $%s reporting threshold.",
			result.Count, e.config.StructuringMin, e.config.ReportingLimit, e.config.ReportingLimit,
		)
	}

	return result
}

func (e *Engine) inSmurfingZone(txn models.Transaction) bool {
	if !txn.IsCredit() {
		return false
	}
	if !strings.Contains(strings.ToLower(txn.Description), e.cashMarker) {
		return false
	}
	return txn.Amount.GreaterThanOrEqual(e.config.StructuringMin) && txn.Amount.LessThan(e.config.ReportingLimit)
}

func dateOrUnknown(date string) string {
	if strings.TrimSpace(date) == "" {
		return "Unknown"
	}
	return date
}
