package extract

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-lending/intake-cli/internal/model"
	"github.com/meridian-lending/intake-cli/internal/preprocess"
	"github.com/meridian-lending/intake-cli/pkg/anthropic"
)

// fakeClient returns one canned response per call, in order.
type fakeClient struct {
	responses []string
	err       error
	calls     []anthropic.MessageRequest
}

func (f *fakeClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	idx := len(f.calls) - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: f.responses[idx]}},
	}, nil
}

// fakePreprocessor returns a fixed page count of text pages.
type fakePreprocessor struct {
	pages int
	err   error
}

func (f *fakePreprocessor) Preprocess(_ context.Context, _ string) ([]preprocess.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	pages := make([]preprocess.Page, f.pages)
	for i := range pages {
		pages[i] = preprocess.Page{Number: i + 1, Text: fmt.Sprintf("page %d", i+1)}
	}
	return pages, nil
}

func TestExtract_SinglePage(t *testing.T) {
	client := &fakeClient{responses: []string{
		`{"borrower_name": "Jane Smith", "_confidence": {"borrower_name": 0.95}}`,
	}}
	g := New(client, &fakePreprocessor{pages: 1}, Config{Model: "test-model"})

	raw, err := g.Extract(context.Background(), model.Document{ID: "doc-1", Path: "/tmp/return.pdf", Type: model.DocTypeTaxReturn})
	require.NoError(t, err)

	assert.Equal(t, "doc-1", raw.DocumentID)
	assert.Equal(t, model.DocTypeTaxReturn, raw.DocumentType)
	assert.Equal(t, "Jane Smith", raw.Fields["borrower_name"])
	assert.InDelta(t, 0.95, raw.Confidences["borrower_name"], 0.001)

	require.Len(t, client.calls, 1)
	// Prompt (1) plus one text part per page.
	assert.Len(t, client.calls[0].Messages[0].Content, 2)
}

func TestExtract_GeneratesDocumentID(t *testing.T) {
	client := &fakeClient{responses: []string{`{"a": 1}`}}
	g := New(client, &fakePreprocessor{pages: 1}, Config{})

	raw, err := g.Extract(context.Background(), model.Document{Path: "/tmp/doc.pdf"})
	require.NoError(t, err)
	assert.NotEmpty(t, raw.DocumentID)
}

func TestExtract_ChunksByPageBudget(t *testing.T) {
	client := &fakeClient{responses: []string{
		`{"borrower_name": "Jane Smith", "total_income": 185000}`,
		`{"borrower_name": "DIFFERENT", "loan_balance": 42000}`,
		`{"filing_status": "single"}`,
	}}
	g := New(client, &fakePreprocessor{pages: 5}, Config{PageBudget: 2})

	raw, err := g.Extract(context.Background(), model.Document{ID: "doc-1", Path: "/tmp/big.pdf"})
	require.NoError(t, err)

	require.Len(t, client.calls, 3, "5 pages at budget 2 is 3 chunks")

	// Earlier chunks win on key collisions.
	assert.Equal(t, "Jane Smith", raw.Fields["borrower_name"])
	assert.Equal(t, 185000.0, raw.Fields["total_income"])
	assert.Equal(t, 42000.0, raw.Fields["loan_balance"])
	assert.Equal(t, "single", raw.Fields["filing_status"])
}

func TestExtract_PreprocessFailureWrapped(t *testing.T) {
	g := New(&fakeClient{}, &fakePreprocessor{err: errors.New("unsupported format")}, Config{})

	_, err := g.Extract(context.Background(), model.Document{ID: "doc-1", Path: "/tmp/doc.xyz"})
	require.Error(t, err)

	var fe *FailureError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "doc-1", fe.DocumentID)
}

func TestExtract_ModelFailureWrapped(t *testing.T) {
	g := New(&fakeClient{err: errors.New("invalid_request_error")}, &fakePreprocessor{pages: 1}, Config{})

	_, err := g.Extract(context.Background(), model.Document{ID: "doc-1", Path: "/tmp/doc.pdf"})
	require.Error(t, err)

	var fe *FailureError
	assert.ErrorAs(t, err, &fe)
}

func TestDocTypeHint(t *testing.T) {
	assert.Equal(t, "tax_return", docTypeHint(model.DocTypeTaxReturn))
	assert.Equal(t, "unknown", docTypeHint(""))
}
