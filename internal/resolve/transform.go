package resolve

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/meridian-lending/intake-cli/internal/model"
)

// reviewPenalty scales a resolution's confidence when a transform could
// not be applied cleanly and the value passed through for manual review.
const reviewPenalty = 0.5

// ApplyTransform formats a resolved value per the field spec's transform.
// needsReview is true when the input did not fit the transform and was
// passed through unchanged.
func ApplyTransform(t model.Transform, v any) (out any, needsReview bool) {
	switch t {
	case model.TransformSSN:
		return formatSSN(v)
	case model.TransformCurrency:
		return formatCurrency(v)
	case model.TransformPercentage:
		return formatPercentage(v)
	case model.TransformDate:
		return formatDate(v)
	default:
		return v, false
	}
}

func formatSSN(v any) (any, bool) {
	digits := keepDigits(model.CoerceString(v))
	if len(digits) != 9 {
		// Wrong length passes through unchanged, flagged for review.
		return v, true
	}
	return digits[:3] + "-" + digits[3:5] + "-" + digits[5:], false
}

func formatCurrency(v any) (any, bool) {
	f, ok := model.ToFloat64(v)
	if !ok {
		return v, true
	}
	return fmt.Sprintf("%.2f", f), false
}

func formatPercentage(v any) (any, bool) {
	f, ok := model.ToFloat64(v)
	if !ok {
		return v, true
	}
	if f > 1 {
		// Ambiguous: may already be scaled. Pass through for review
		// rather than guessing.
		return v, true
	}
	return fmt.Sprintf("%.2f%%", f*100), false
}

// dateLayouts are the accepted input formats, tried in order.
var dateLayouts = []string{
	"01/02/2006",
	"1/2/2006",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
}

// canonicalDate is the single output format for date fields.
const canonicalDate = "01/02/2006"

func formatDate(v any) (any, bool) {
	s := strings.TrimSpace(model.CoerceString(v))
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(canonicalDate), false
		}
	}
	return v, true
}

func keepDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
