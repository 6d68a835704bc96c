package risk

import (
	"fmt"
	"strings"

	"github.com/savegress/sentinel/pkg/models"
)

// reasonList is an ordered list of reasons deduplicated by exact text
type reasonList struct {
	items []string
	seen  map[string]bool
}

func newReasonList() *reasonList {
	return &reasonList{items: []string{}, seen: make(map[string]bool)}
}

func (l *reasonList) add(reason string) {
	if l.seen[reason] {
		return
	}
	l.seen[reason] = true
	l.items = append(l.items, reason)
}

// ScoreCompliance scores source of wealth and risk flags, categorizes the
// result, then applies the structuring override.
func (e *Engine) ScoreCompliance(ext *models.FinancialExtraction, structuring StructuringAnalysis) ComplianceAnalysis {
	score := 0
	reasons := newReasonList()

	if ext.SourceOfWealth != models.SourceOfWealthSalary {
		score += e.config.UnclearWealthPenalty
		reasons.add(ReasonUnclearWealth)
	}

	for _, flag := range ext.RiskFlags {
		if !e.matchesHighRiskKeyword(flag) {
			continue
		}
		score += e.config.HighRiskEntityPenalty
		reasons.add(fmt.Sprintf(reasonHighRiskEntityFmt, flag))
	}

	// Category is taken before the structuring override is applied
	category := e.categorize(score)

	if structuring.Detected {
		category = CategoryHigh
		score += e.config.StructuringPenalty
		reasons.add(structuring.Reason)
	}

	return ComplianceAnalysis{
		RiskScore: score,
		Category:  category,
		Reasons:   reasons.items,
	}
}

func (e *Engine) matchesHighRiskKeyword(flag string) bool {
	flag = strings.ToLower(flag)
	for _, kw := range e.keywords {
		if strings.Contains(flag, kw) {
			return true
		}
	}
	return false
}

func (e *Engine) categorize(score int) Category {
	switch {
	case score >= e.config.HighRiskScore:
		return CategoryHigh
	case score >= e.config.MediumRiskScore:
		return CategoryMedium
	default:
		return CategoryLow
	}
}
