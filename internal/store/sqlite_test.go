package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-lending/intake-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testRecord(appID string, version int64) *model.MasterRecord {
	rec := model.NewMasterRecord(appID)
	rec.Version = version
	rec.Categories["identity"] = map[string]any{"borrower_name": "Jane Smith"}
	rec.Provenance["identity.borrower_name"] = model.FieldProvenance{
		FieldPath:        "identity.borrower_name",
		Value:            "Jane Smith",
		Confidence:       0.9,
		SourceDocumentID: "doc-1",
		WrittenAt:        time.Now().UTC(),
	}
	rec.DocumentHistory = append(rec.DocumentHistory, model.DocumentEntry{
		DocumentID:        "doc-1",
		Timestamp:         time.Now().UTC(),
		FieldsContributed: 1,
	})
	return rec
}

func TestSQLite_SaveAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rec := testRecord("app-1", 1)
	require.NoError(t, st.Save(ctx, rec, 0))

	got, err := st.Get(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, "app-1", got.ApplicationID)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, "Jane Smith", got.Categories["identity"]["borrower_name"])
	assert.Len(t, got.Provenance, 1)
	assert.Len(t, got.DocumentHistory, 1)
}

func TestSQLite_Get_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.Get(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_Save_VersionConflict(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.Save(ctx, testRecord("app-1", 1), 0))

	// A second writer that read version 0 must be rejected.
	err := st.Save(ctx, testRecord("app-1", 1), 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVersionConflict))

	// The stored record is untouched.
	got, err := st.Get(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
}

func TestSQLite_VersionHistory(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rec := testRecord("app-1", 1)
	require.NoError(t, st.Save(ctx, rec, 0))

	rec2 := rec.Clone()
	rec2.Version = 2
	rec2.Categories["financial"] = map[string]any{"total_assets": 500000.0}
	require.NoError(t, st.Save(ctx, rec2, 1))

	versions, err := st.ListVersions(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, versions)

	v1, err := st.GetVersion(ctx, "app-1", 1)
	require.NoError(t, err)
	assert.NotContains(t, v1.Categories["financial"], "total_assets")

	v2, err := st.GetVersion(ctx, "app-1", 2)
	require.NoError(t, err)
	assert.Equal(t, 500000.0, v2.Categories["financial"]["total_assets"])

	_, err = st.GetVersion(ctx, "app-1", 99)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_ListApplications(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.Save(ctx, testRecord("app-a", 1), 0))
	require.NoError(t, st.Save(ctx, testRecord("app-b", 1), 0))

	apps, err := st.ListApplications(ctx)
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, "app-a", apps[0].ApplicationID)
	assert.Equal(t, int64(1), apps[0].Version)
	assert.Equal(t, 1, apps[0].Documents)
	assert.Equal(t, 0, apps[0].Conflicts)
}

func TestSQLite_SaveFormResults(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	results := []model.MappedFormResult{
		{
			ApplicationID:    "app-1",
			FormID:           "bank_4506c",
			RecordVersion:    2,
			FieldValues:      map[string]any{"name": "Jane Smith"},
			FieldConfidences: map[string]float64{"name": 0.9},
			Coverage:         0.6,
			GeneratedAt:      time.Now().UTC(),
		},
	}
	require.NoError(t, st.SaveFormResults(ctx, results))

	// Same version re-generation overwrites rather than erroring.
	require.NoError(t, st.SaveFormResults(ctx, results))

	// Empty slice is a no-op.
	require.NoError(t, st.SaveFormResults(ctx, nil))
}
