// Package extract wraps the vision-model call: it converts one document
// into a flat bag of field candidates with no guaranteed schema.
package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/meridian-lending/intake-cli/internal/cost"
	"github.com/meridian-lending/intake-cli/internal/model"
	"github.com/meridian-lending/intake-cli/internal/preprocess"
	"github.com/meridian-lending/intake-cli/internal/resilience"
	"github.com/meridian-lending/intake-cli/pkg/anthropic"
)

// defaultPageBudget caps pages per model request to stay under the
// provider's request-size ceiling.
const defaultPageBudget = 20

// defaultCallTimeout bounds one model call so a hung request degrades to
// a recoverable document failure instead of stalling the batch.
const defaultCallTimeout = 3 * time.Minute

// FailureError reports a document whose extraction failed after retries.
// It is document-scoped and never aborts sibling documents.
type FailureError struct {
	DocumentID string
	Cause      error
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("extraction failed for document %q: %v", e.DocumentID, e.Cause)
}

func (e *FailureError) Unwrap() error { return e.Cause }

// Config tunes gateway behavior.
type Config struct {
	Model       string
	MaxTokens   int64
	PageBudget  int
	CallTimeout time.Duration
	// RequestsPerMinute throttles model calls; 0 disables throttling.
	RequestsPerMinute int
}

// Gateway turns documents into raw extractions via the vision model.
type Gateway struct {
	client  anthropic.Client
	pre     preprocess.Preprocessor
	cfg     Config
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	costs   *cost.Calculator
}

// New creates a Gateway.
func New(client anthropic.Client, pre preprocess.Preprocessor, cfg Config) *Gateway {
	if cfg.PageBudget <= 0 {
		cfg.PageBudget = defaultPageBudget
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8192
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
	}
	return &Gateway{
		client:  client,
		pre:     pre,
		cfg:     cfg,
		limiter: limiter,
		retry:   resilience.DefaultRetryConfig(),
		costs:   cost.NewCalculator(nil),
	}
}

// Extract converts one document into a RawExtraction. Large documents
// are chunked by page budget; chunk outputs merge into one field bag
// with earlier chunks winning on key collisions.
func (g *Gateway) Extract(ctx context.Context, doc model.Document) (*model.RawExtraction, error) {
	docID := doc.ID
	if docID == "" {
		docID = uuid.New().String()
	}

	pages, err := g.pre.Preprocess(ctx, doc.Path)
	if err != nil {
		return nil, &FailureError{DocumentID: docID, Cause: err}
	}

	raw := &model.RawExtraction{
		DocumentID:   docID,
		SourcePath:   doc.Path,
		DocumentType: doc.Type,
		Timestamp:    time.Now().UTC(),
		Fields:       make(map[string]any),
		Confidences:  make(map[string]float64),
	}

	var usage anthropic.TokenUsage
	for start := 0; start < len(pages); start += g.cfg.PageBudget {
		end := start + g.cfg.PageBudget
		if end > len(pages) {
			end = len(pages)
		}

		fields, confs, chunkUsage, err := g.extractChunk(ctx, doc, pages[start:end])
		if err != nil {
			return nil, &FailureError{DocumentID: docID, Cause: err}
		}
		usage.Add(chunkUsage)
		for k, v := range fields {
			if _, exists := raw.Fields[k]; !exists {
				raw.Fields[k] = v
			}
		}
		for k, c := range confs {
			if _, exists := raw.Confidences[k]; !exists {
				raw.Confidences[k] = c
			}
		}
	}

	zap.L().Info("extract: document extracted",
		zap.String("document", docID),
		zap.String("path", doc.Path),
		zap.Int("pages", len(pages)),
		zap.Int("fields", len(raw.Fields)),
		zap.Float64("est_cost_usd", g.costs.Claude(g.cfg.Model, usage)),
	)
	return raw, nil
}

// extractChunk runs one model call for a window of pages, with rate
// limiting, per-call timeout, and transient-error retry.
func (g *Gateway) extractChunk(ctx context.Context, doc model.Document, pages []preprocess.Page) (map[string]any, map[string]float64, anthropic.TokenUsage, error) {
	content := []anthropic.ContentPart{
		anthropic.TextPart(fmt.Sprintf(userPromptText, docTypeHint(doc.Type))),
	}
	for _, p := range pages {
		if p.IsImage() {
			content = append(content, anthropic.ImagePart(p.MediaType, p.Image))
		} else {
			content = append(content, anthropic.TextPart(fmt.Sprintf("--- Page %d ---\n%s", p.Number, p.Text)))
		}
	}

	req := anthropic.MessageRequest{
		Model:     g.cfg.Model,
		MaxTokens: g.cfg.MaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(systemText),
		Messages:  []anthropic.Message{{Role: "user", Content: content}},
	}

	resp, err := resilience.DoVal(ctx, g.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
		defer cancel()
		return g.client.CreateMessage(callCtx, req)
	})
	if err != nil {
		return nil, nil, anthropic.TokenUsage{}, err
	}

	resp.Usage.LogUsage(g.cfg.Model, "extract")
	fields, confs, err := decodeExtraction(resp.Text())
	return fields, confs, resp.Usage, err
}

func docTypeHint(dt model.DocumentType) string {
	if dt == "" {
		return string(model.DocTypeUnknown)
	}
	return string(dt)
}
