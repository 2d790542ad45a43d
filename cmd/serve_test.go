package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-lending/intake-cli/internal/intake"
	"github.com/meridian-lending/intake-cli/internal/model"
	"github.com/meridian-lending/intake-cli/internal/registry"
	"github.com/meridian-lending/intake-cli/internal/store"
)

// fakeIntake returns canned responses so router tests need no model calls.
type fakeIntake struct {
	report  *intake.BatchReport
	results []model.MappedFormResult
	err     error
}

func (f *fakeIntake) IngestBatch(_ context.Context, _ string, _ []model.Document) (*intake.BatchReport, error) {
	return f.report, f.err
}

func (f *fakeIntake) GenerateOutputs(_ context.Context, _ string, _ []model.FormSpec) ([]model.MappedFormResult, error) {
	return f.results, f.err
}

func newTestRouter(t *testing.T, svc intakeAPI) (http.Handler, store.Store) {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "intake.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	reg, err := registry.NewFromSpecs(model.FormSpec{
		FormID: "bank_4506c",
		Bank:   "First Meridian",
		Fields: []model.FormFieldSpec{{ID: "name", SourcePath: "identity.borrower_name"}},
	})
	require.NoError(t, err)

	return buildRouter(svc, st, reg), st
}

func seedRecord(t *testing.T, st store.Store, appID string) *model.MasterRecord {
	t.Helper()
	rec := model.NewMasterRecord(appID)
	rec.Version = 1
	rec.Categories["identity"] = map[string]any{"borrower_name": "Jane Smith"}
	require.NoError(t, st.Save(context.Background(), rec, 0))
	return rec
}

func TestRouter_Health(t *testing.T) {
	router, _ := newTestRouter(t, &fakeIntake{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_GetRecord(t *testing.T) {
	router, st := newTestRouter(t, &fakeIntake{})
	seedRecord(t, st, "app-1")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/applications/app-1/record", nil))

	require.Equal(t, http.StatusOK, rr.Code)

	var rec model.MasterRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	assert.Equal(t, "app-1", rec.ApplicationID)
	assert.EqualValues(t, 1, rec.Version)
}

func TestRouter_GetRecord_NotFound(t *testing.T) {
	router, _ := newTestRouter(t, &fakeIntake{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/applications/missing/record", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouter_GetRecord_BadVersion(t *testing.T) {
	router, st := newTestRouter(t, &fakeIntake{})
	seedRecord(t, st, "app-1")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/applications/app-1/record?version=abc", nil))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_ListApplications(t *testing.T) {
	router, st := newTestRouter(t, &fakeIntake{})
	seedRecord(t, st, "app-1")
	seedRecord(t, st, "app-2")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/applications", nil))

	require.Equal(t, http.StatusOK, rr.Code)

	var apps []store.ApplicationSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &apps))
	assert.Len(t, apps, 2)
}

func TestRouter_Versions(t *testing.T) {
	router, st := newTestRouter(t, &fakeIntake{})
	seedRecord(t, st, "app-1")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/applications/app-1/versions", nil))

	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Versions []int64 `json:"versions"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, []int64{1}, body.Versions)
}

func TestRouter_IngestDocuments(t *testing.T) {
	fake := &fakeIntake{report: &intake.BatchReport{
		ApplicationID: "app-1",
		Succeeded:     []string{"doc-1"},
		FinalVersion:  1,
	}}
	router, _ := newTestRouter(t, fake)

	payload, _ := json.Marshal(map[string]any{
		"documents": []map[string]string{{"id": "doc-1", "path": "/tmp/return.pdf", "type": "tax_return"}},
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/applications/app-1/documents", bytes.NewReader(payload)))

	require.Equal(t, http.StatusOK, rr.Code)

	var report intake.BatchReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.Equal(t, []string{"doc-1"}, report.Succeeded)
}

func TestRouter_IngestDocuments_EmptyBody(t *testing.T) {
	router, _ := newTestRouter(t, &fakeIntake{})

	payload := []byte(`{"documents": []}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/applications/app-1/documents", bytes.NewReader(payload)))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "documents is required")
}

func TestRouter_Distribute(t *testing.T) {
	fake := &fakeIntake{results: []model.MappedFormResult{{
		FormID:        "bank_4506c",
		ApplicationID: "app-1",
		Coverage:      1.0,
	}}}
	router, st := newTestRouter(t, fake)
	seedRecord(t, st, "app-1")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/applications/app-1/distribute", nil))

	require.Equal(t, http.StatusOK, rr.Code)

	var results []model.MappedFormResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "bank_4506c", results[0].FormID)
}

func TestRouter_Distribute_UnknownForm(t *testing.T) {
	router, _ := newTestRouter(t, &fakeIntake{})

	payload := []byte(`{"forms": ["missing"]}`)
	req := httptest.NewRequest(http.MethodPost, "/applications/app-1/distribute", bytes.NewReader(payload))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
