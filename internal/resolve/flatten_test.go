package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-lending/intake-cli/internal/model"
)

func flattenFixture() *model.MasterRecord {
	rec := model.NewMasterRecord("app-1")
	rec.Categories["identity"] = map[string]any{
		"borrower_name": "Jane Smith",
		"ssn":           "123456789",
		"address": map[string]any{
			"city":  "Portland",
			"state": "OR",
		},
	}
	rec.Categories["financial"] = map[string]any{
		"total_assets": 500000.0,
		"notes":        []any{"reviewed", "pending"},
	}
	rec.Arrays["loans"] = []map[string]any{
		{"creditor": "Acme Co", "balance": 42000.0},
		{"creditor": "Coastal Trust", "balance": 9000.0},
	}
	return rec
}

func TestFlatten_LeafPaths(t *testing.T) {
	flat := Flatten(flattenFixture())

	assert.Equal(t, "Jane Smith", flat["identity.borrower_name"])
	assert.Equal(t, "Portland", flat["identity.address.city"])
	assert.Equal(t, 500000.0, flat["financial.total_assets"])

	_, hasContainer := flat["identity.address"]
	assert.False(t, hasContainer, "containers never appear as values")
}

func TestFlatten_Arrays(t *testing.T) {
	flat := Flatten(flattenFixture())

	assert.Equal(t, "Acme Co", flat["arrays.loans[0].creditor"])
	assert.Equal(t, 9000.0, flat["arrays.loans[1].balance"])

	// First row is addressable without an index.
	assert.Equal(t, "Acme Co", flat["arrays.loans.creditor"])
}

func TestFlatten_ScalarSlices(t *testing.T) {
	flat := Flatten(flattenFixture())

	assert.Equal(t, "reviewed", flat["financial.notes[0]"])
	assert.Equal(t, "pending", flat["financial.notes[1]"])
	assert.Equal(t, "reviewed", flat["financial.notes"], "first element doubles as the unindexed value")
}

func TestFlatten_ShortKeys(t *testing.T) {
	flat := Flatten(flattenFixture())

	assert.Equal(t, "123456789", flat["ssn"])
	assert.Equal(t, "Portland", flat["city"])

	_, present := flat["borrower_name"]
	assert.False(t, present, "only whitelisted identity fields get short keys")
}

func TestFlatten_SkipsEmptyLeaves(t *testing.T) {
	rec := model.NewMasterRecord("app-1")
	rec.Categories["identity"] = map[string]any{
		"borrower_name": "",
		"phone":         nil,
		"email":         "jane@example.com",
	}

	flat := Flatten(rec)

	require.Len(t, flat, 2) // identity.email plus the short key
	assert.Equal(t, "jane@example.com", flat["identity.email"])
	assert.Equal(t, "jane@example.com", flat["email"])
}

func TestFlatten_EmptyRecord(t *testing.T) {
	assert.Empty(t, Flatten(model.NewMasterRecord("app-1")))
}
