package merge

import (
	"math"
	"sort"

	"github.com/meridian-lending/intake-cli/internal/model"
)

// reviewGap is the confidence margin under which a resolved conflict is
// flagged for manual review: the loser was nearly as credible as the
// winner.
const reviewGap = 0.1

// Analysis summarizes a record's conflict log.
type Analysis struct {
	TotalConflicts    int            `json:"total_conflicts"`
	ByCategory        map[string]int `json:"by_category,omitempty"`
	ByField           map[string]int `json:"by_field,omitempty"`
	NeedsManualReview []string       `json:"needs_manual_review,omitempty"`
}

// Analyze walks the conflict log and reports counts per category and
// field, plus the fields whose winning margin was under the review gap.
func Analyze(rec *model.MasterRecord) Analysis {
	a := Analysis{
		TotalConflicts: len(rec.ConflictLog),
		ByCategory:     make(map[string]int),
		ByField:        make(map[string]int),
	}

	review := make(map[string]bool)
	for _, c := range rec.ConflictLog {
		a.ByCategory[string(c.Category)]++
		a.ByField[c.FieldPath]++
		if c.Category == model.ConflictResolution &&
			math.Abs(c.NewConfidence-c.OldConfidence) < reviewGap {
			review[c.FieldPath] = true
		}
	}

	for path := range review {
		a.NeedsManualReview = append(a.NeedsManualReview, path)
	}
	sort.Strings(a.NeedsManualReview)
	return a
}
