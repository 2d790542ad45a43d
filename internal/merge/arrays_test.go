package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-lending/intake-cli/internal/model"
)

func TestNormalizeEntityName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme Co, LLC", "ACME CO"},
		{"ACME CO", "ACME CO"},
		{"First Meridian Bank, Inc.", "FIRST MERIDIAN BANK"},
		{"Coastal   Trust  Corp", "COASTAL TRUST"},
		{"  Riverside Holdings L.P. ", "RIVERSIDE HOLDINGS"},
		{"Plain Name", "PLAIN NAME"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeEntityName(tt.in))
		})
	}
}

func TestRowKey(t *testing.T) {
	a := map[string]any{"creditor": "Acme Co, LLC", "balance": 42000.0}
	b := map[string]any{"creditor": "ACME CO", "balance": "42,000.00"}
	c := map[string]any{"creditor": "Acme Co, LLC", "balance": 9000.0}

	assert.Equal(t, rowKey(a), rowKey(b), "same entity and amount key identically")
	assert.NotEqual(t, rowKey(a), rowKey(c), "different amounts are different rows")
}

func TestRowKey_NoNameFallsBackToContents(t *testing.T) {
	a := map[string]any{"note": "quarterly", "rate": 4.25}
	b := map[string]any{"note": "quarterly", "rate": 4.25}
	c := map[string]any{"note": "monthly", "rate": 4.25}

	assert.Equal(t, rowKey(a), rowKey(b))
	assert.NotEqual(t, rowKey(a), rowKey(c))
}

func TestMergeArray_AccumulatesAcrossDocuments(t *testing.T) {
	e := New(nil)

	first := extraction("doc-1", model.DocTypeDebtSchedule, map[string]map[string]any{
		"debt": {"loans": []any{
			map[string]any{"creditor": "Acme Co, LLC", "balance": 42000.0},
			map[string]any{"creditor": "First Meridian Bank", "balance": 180000.0},
		}},
	})
	second := extraction("doc-2", model.DocTypeBankStatement, map[string]map[string]any{
		"debt": {"loans": []any{
			map[string]any{"creditor": "Coastal Trust", "balance": 9000.0},
		}},
	})

	rec, err := e.Merge(model.NewMasterRecord("app-1"), first, Options{})
	require.NoError(t, err)
	rec, err = e.Merge(rec, second, Options{})
	require.NoError(t, err)

	assert.Len(t, rec.Arrays["loans"], 3, "distinct rows accumulate")
	assert.Empty(t, rec.ConflictLog)
}

func TestMergeArray_DedupesMatchingRows(t *testing.T) {
	e := New(nil)

	first := extraction("doc-1", model.DocTypeDebtSchedule, map[string]map[string]any{
		"debt": {"loans": []any{
			map[string]any{"creditor": "Acme Co, LLC", "balance": 42000.0, "rate": 4.25},
		}},
	})
	// Same creditor and balance, different formatting; matched row's new
	// field merges in instead of appending a near-duplicate.
	second := extraction("doc-2", model.DocTypePFS, map[string]map[string]any{
		"debt": {"loans": []any{
			map[string]any{"creditor": "ACME CO, LLC", "balance": "42,000.00", "term_months": 60.0},
		}},
	})

	rec, err := e.Merge(model.NewMasterRecord("app-1"), first, Options{})
	require.NoError(t, err)
	rec, err = e.Merge(rec, second, Options{})
	require.NoError(t, err)

	require.Len(t, rec.Arrays["loans"], 1)
	row := rec.Arrays["loans"][0]
	assert.Equal(t, "Acme Co, LLC", row["creditor"], "existing spelling retained on equal values")
	assert.Equal(t, 4.25, row["rate"])
	assert.Equal(t, 60.0, row["term_months"])
	assert.Empty(t, rec.ConflictLog)
}

func TestMergeArray_MatchedRowFieldConflicts(t *testing.T) {
	e := New(nil)

	first := extraction("doc-1", model.DocTypeDebtSchedule, map[string]map[string]any{
		"debt": {"loans": []any{
			map[string]any{"creditor": "Acme Co", "balance": 42000.0, "rate": 4.25},
		}},
	})
	second := extraction("doc-2", model.DocTypeDebtSchedule, map[string]map[string]any{
		"debt": {"loans": []any{
			map[string]any{"creditor": "Acme Co", "balance": 42000.0, "rate": 4.75},
		}},
	})

	rec, err := e.Merge(model.NewMasterRecord("app-1"), first, Options{Strategy: LastWins})
	require.NoError(t, err)
	rec, err = e.Merge(rec, second, Options{Strategy: LastWins})
	require.NoError(t, err)

	require.Len(t, rec.Arrays["loans"], 1)
	assert.Equal(t, 4.75, rec.Arrays["loans"][0]["rate"])

	require.Len(t, rec.ConflictLog, 1)
	assert.Equal(t, "arrays.loans[0].rate", rec.ConflictLog[0].FieldPath)
}

func TestMergeArray_UsesCategorizedConfidences(t *testing.T) {
	e := New(nil)

	// The extraction scores the array under its categorized key, not the
	// arrays.loans[0] path the row lands on.
	first := extraction("doc-1", model.DocTypeTaxReturn, map[string]map[string]any{
		"debt": {"loans": []any{
			map[string]any{"creditor": "Acme Co", "balance": 42000.0, "rate": 4.25},
		}},
	})
	first.Confidences = map[string]float64{"debt.loans": 0.95}

	second := extraction("doc-2", model.DocTypeTaxReturn, map[string]map[string]any{
		"debt": {"loans": []any{
			map[string]any{"creditor": "Acme Co", "balance": 42000.0, "rate": 4.75},
		}},
	})

	rec, err := e.Merge(model.NewMasterRecord("app-1"), first, Options{})
	require.NoError(t, err)

	prov, ok := rec.Provenance["arrays.loans[0].rate"]
	require.True(t, ok)
	assert.Equal(t, 0.95, prov.Confidence, "explicit array confidence beats the doc-type prior")

	rec, err = e.Merge(rec, second, Options{})
	require.NoError(t, err)

	// Scored 0.95 vs the second doc's 0.90 prior: existing value holds.
	assert.Equal(t, 4.25, rec.Arrays["loans"][0]["rate"])
	require.Len(t, rec.ConflictLog, 1)
	assert.Equal(t, 0.95, rec.ConflictLog[0].OldConfidence)
	assert.Equal(t, 0.90, rec.ConflictLog[0].NewConfidence)
}

func TestMergeArray_FieldLevelCategorizedConfidence(t *testing.T) {
	e := New(nil)

	inc := extraction("doc-1", model.DocTypeUnknown, map[string]map[string]any{
		"debt": {"loans": []any{
			map[string]any{"creditor": "Acme Co", "balance": 42000.0, "rate": 4.25},
		}},
	})
	inc.Confidences = map[string]float64{"debt.loans.rate": 0.7}

	rec, err := e.Merge(model.NewMasterRecord("app-1"), inc, Options{})
	require.NoError(t, err)

	assert.Equal(t, 0.7, rec.Provenance["arrays.loans[0].rate"].Confidence)
	assert.Equal(t, 0.5, rec.Provenance["arrays.loans[0].balance"].Confidence,
		"unscored fields keep the doc-type prior")
}

func TestMergeArray_ReingestIsIdempotent(t *testing.T) {
	e := New(nil)

	inc := extraction("doc-1", model.DocTypeDebtSchedule, map[string]map[string]any{
		"debt": {"loans": []any{
			map[string]any{"creditor": "Acme Co", "balance": 42000.0},
		}},
	})

	rec, err := e.Merge(model.NewMasterRecord("app-1"), inc, Options{})
	require.NoError(t, err)

	reingest := extraction("doc-1-again", model.DocTypeDebtSchedule, map[string]map[string]any{
		"debt": {"loans": []any{
			map[string]any{"creditor": "Acme Co", "balance": 42000.0},
		}},
	})
	rec, err = e.Merge(rec, reingest, Options{})
	require.NoError(t, err)

	assert.Len(t, rec.Arrays["loans"], 1)
	assert.Empty(t, rec.ConflictLog)
}

func TestObjectRows(t *testing.T) {
	rows, ok := objectRows([]any{map[string]any{"a": 1}, map[string]any{"b": 2}})
	require.True(t, ok)
	assert.Len(t, rows, 2)

	_, ok = objectRows([]any{"plain", "strings"})
	assert.False(t, ok, "scalar slices are not array data")

	_, ok = objectRows([]any{})
	assert.False(t, ok)

	_, ok = objectRows("not a slice")
	assert.False(t, ok)
}
