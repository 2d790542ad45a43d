// Package categorize buckets raw extracted keys into semantic categories
// using name-pattern heuristics. Miscategorization is tolerated: the
// resolver searches across category boundaries, so a field landing in the
// wrong bucket is still findable.
package categorize

import (
	"strings"

	"github.com/meridian-lending/intake-cli/internal/model"
)

// Rule pairs a category with its keyword set. Rules are evaluated in
// slice order; the first match wins, which keeps the mapping
// deterministic when a key matches multiple categories.
type Rule struct {
	Category string
	Keywords []string
}

// DefaultRules is the shipped categorization table. The lists are tuning
// parameters, not a contract; callers may supply their own via New.
var DefaultRules = []Rule{
	{model.CategoryIdentity, []string{"name", "ssn", "social_security", "address", "phone", "email", "dob", "date_of_birth", "city", "state", "zip"}},
	{model.CategoryBusiness, []string{"business", "ein", "company", "llc", "corporation", "dba", "entity", "ownership"}},
	{model.CategoryFinancial, []string{"asset", "liability", "liabilities", "income", "worth", "revenue", "cash", "salary", "expense"}},
	{model.CategoryTax, []string{"tax", "return", "agi", "irs", "filing"}},
	{model.CategoryDebt, []string{"debt", "loan", "creditor", "balance", "payment", "interest_rate", "mortgage"}},
}

// Categorizer routes raw extraction fields into categories.
type Categorizer struct {
	rules []Rule
}

// New creates a Categorizer with the given rule table, or DefaultRules
// when rules is empty.
func New(rules []Rule) *Categorizer {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Categorizer{rules: rules}
}

// Categorize folds a RawExtraction into a CategorizedExtraction. Every
// raw field lands in exactly one category; keys matching no keyword go to
// uncategorized. Field-level confidences are re-keyed by dotted path.
func (c *Categorizer) Categorize(raw *model.RawExtraction) model.CategorizedExtraction {
	out := model.CategorizedExtraction{
		DocumentID:   raw.DocumentID,
		DocumentType: raw.DocumentType,
		Timestamp:    raw.Timestamp,
		Categories:   make(map[string]map[string]any),
		Confidences:  make(map[string]float64),
	}

	for key, value := range raw.Fields {
		cat := c.categoryFor(key)
		if out.Categories[cat] == nil {
			out.Categories[cat] = make(map[string]any)
		}
		out.Categories[cat][key] = normalizeShape(value)

		if conf, ok := raw.Confidences[key]; ok {
			out.Confidences[cat+"."+key] = conf
		}
	}

	return out
}

// categoryFor tests the lower-cased key against each rule's keywords in
// priority order.
func (c *Categorizer) categoryFor(key string) string {
	lower := strings.ToLower(key)
	for _, rule := range c.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				return rule.Category
			}
		}
	}
	return model.CategoryUncategorized
}

// normalizeShape makes an arbitrary decoded JSON value safe for the merge
// engine: maps and slices keep their structure, anything else that isn't
// a primitive is string-coerced. The walk is total; unexpected shapes
// never panic.
func normalizeShape(v any) any {
	switch t := v.(type) {
	case nil, string, bool, float64, int, int64:
		return t
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = normalizeShape(vv)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = normalizeShape(vv)
		}
		return s
	default:
		return model.CoerceString(t)
	}
}
