package merge

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/meridian-lending/intake-cli/internal/model"
)

// Array rows (debt schedule entries and the like) are append-only across
// merges. A row whose composite key matches an existing row is treated as
// the same real-world entry: its fields go through the normal conflict
// logic instead of producing a near-duplicate row.

var entitySuffixes = regexp.MustCompile(
	`(?i)\s*,?\s*(LLC|L\.?L\.?C\.?|INC\.?|INCORPORATED|CORP\.?|CORPORATION|` +
		`CO\.?|COMPANY|LTD\.?|LIMITED|L\.?P\.?|LLP|PLLC|P\.?C\.?|DBA|D/B/A)\s*\.?\s*$`)

var multiSpace = regexp.MustCompile(`\s{2,}`)

// normalizeEntityName upper-cases, strips legal entity suffixes, and
// collapses whitespace so "Acme Co, LLC" and "ACME CO" key identically.
func normalizeEntityName(name string) string {
	n := strings.ToUpper(strings.TrimSpace(name))
	n = entitySuffixes.ReplaceAllString(n, "")
	n = multiSpace.ReplaceAllString(n, " ")
	return strings.TrimSpace(n)
}

// nameKeys and amountKeys are tried in order when building a row's
// composite key.
var (
	nameKeys   = []string{"creditor", "creditor_name", "lender", "name", "description"}
	amountKeys = []string{"original_amount", "original_balance", "amount", "balance", "current_balance"}
)

// rowKey derives the composite dedupe key for an array row. Rows with no
// recognizable name component key on their full normalized contents, so
// truly identical rows still dedupe.
func rowKey(row map[string]any) string {
	var name, amount string
	for _, k := range nameKeys {
		if v, ok := row[k]; ok {
			if s := model.CoerceString(v); s != "" {
				name = normalizeEntityName(s)
				break
			}
		}
	}
	for _, k := range amountKeys {
		if v, ok := row[k]; ok {
			if f, ok := model.ToFloat64(v); ok {
				amount = fmt.Sprintf("%.2f", f)
				break
			}
		}
	}
	if name == "" && amount == "" {
		parts := make([]string, 0, len(row))
		for _, k := range sortedKeys(row) {
			parts = append(parts, k+"="+strings.ToLower(strings.TrimSpace(model.CoerceString(row[k]))))
		}
		return strings.Join(parts, "|")
	}
	return name + "|" + amount
}

// mergeArray appends incoming rows to the named array, deduplicating on
// the composite key and conflict-resolving fields of matched rows.
func (s *mergeState) mergeArray(name string, incoming []map[string]any) {
	existing := s.rec.Arrays[name]

	index := make(map[string]int, len(existing))
	for i, row := range existing {
		index[rowKey(row)] = i
	}

	for _, row := range incoming {
		key := rowKey(row)
		if i, ok := index[key]; ok {
			rowPath := fmt.Sprintf("arrays.%s[%d]", name, i)
			for _, k := range sortedKeys(row) {
				s.mergeInto(existing[i], k, rowPath+"."+k, row[k])
			}
			continue
		}

		copied := make(map[string]any, len(row))
		for k, v := range row {
			copied[k] = model.CopyValue(v)
		}
		existing = append(existing, copied)
		index[key] = len(existing) - 1

		rowPath := fmt.Sprintf("arrays.%s[%d]", name, len(existing)-1)
		for _, k := range sortedKeys(copied) {
			s.recordLeafProvenance(rowPath+"."+k, copied[k])
		}
		s.contributed++
	}

	s.rec.Arrays[name] = existing
}
