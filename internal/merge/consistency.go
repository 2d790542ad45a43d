package merge

import (
	"fmt"

	"github.com/meridian-lending/intake-cli/internal/model"
)

// Cross-field identity check: netWorth should equal totalAssets minus
// totalLiabilities. A mismatch is advisory; it is logged in the conflict
// log under the consistency category and never blocks the merge.

// checkConsistency runs after all field writes for a merge.
func (s *mergeState) checkConsistency() {
	assets, aok := s.financialNumber("totalAssets", "total_assets")
	liabilities, lok := s.financialNumber("totalLiabilities", "total_liabilities")
	netWorth, nok := s.financialNumber("netWorth", "net_worth")
	if !aok || !lok || !nok {
		return
	}

	expected := assets - liabilities
	diff := expected - netWorth
	if diff < 0 {
		diff = -diff
	}

	// Tolerance: $1 or 0.1% of net worth, whichever is larger.
	tol := 1.0
	if pct := abs(netWorth) * 0.001; pct > tol {
		tol = pct
	}
	if diff <= tol {
		return
	}

	s.rec.ConflictLog = append(s.rec.ConflictLog, model.ConflictEntry{
		FieldPath:     "financial.netWorth",
		OldValue:      netWorth,
		NewValue:      expected,
		WinningSource: s.inc.DocumentID,
		Reason:        fmt.Sprintf("netWorth %.2f != totalAssets %.2f - totalLiabilities %.2f", netWorth, assets, liabilities),
		Category:      model.ConflictConsistency,
		Timestamp:     s.now,
	})
}

// financialNumber looks up a numeric value in the financial category
// under any of the given field names.
func (s *mergeState) financialNumber(names ...string) (float64, bool) {
	fields, ok := s.rec.Categories[model.CategoryFinancial]
	if !ok {
		return 0, false
	}
	for _, name := range names {
		if v, ok := fields[name]; ok {
			if f, ok := model.ToFloat64(v); ok {
				return f, true
			}
		}
	}
	return 0, false
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
