// Package intake coordinates the full document pipeline: extraction,
// categorization, merge, persistence, and output generation.
package intake

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-lending/intake-cli/internal/categorize"
	"github.com/meridian-lending/intake-cli/internal/distribute"
	"github.com/meridian-lending/intake-cli/internal/merge"
	"github.com/meridian-lending/intake-cli/internal/model"
	"github.com/meridian-lending/intake-cli/internal/store"
)

// defaultExtractConcurrency bounds parallel document extraction in a batch.
const defaultExtractConcurrency = 4

// saveRetries is how many times a merge is replayed onto a fresh
// snapshot after an optimistic-concurrency conflict from another process.
const saveRetries = 3

// Extractor produces a raw extraction from one document.
type Extractor interface {
	Extract(ctx context.Context, doc model.Document) (*model.RawExtraction, error)
}

// Service wires the pipeline stages together. Merges for one
// application are serialized in-process; cross-process writers are
// handled by the store's version check.
type Service struct {
	extractor   Extractor
	categorizer *categorize.Categorizer
	engine      *merge.Engine
	store       store.Store
	distributor *distribute.Orchestrator
	mergeOpts   merge.Options
	concurrency int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Config holds the service's tunables.
type Config struct {
	MergeOptions       merge.Options
	ExtractConcurrency int
}

// New creates a Service.
func New(extractor Extractor, categorizer *categorize.Categorizer, engine *merge.Engine, st store.Store, distributor *distribute.Orchestrator, cfg Config) *Service {
	concurrency := cfg.ExtractConcurrency
	if concurrency <= 0 {
		concurrency = defaultExtractConcurrency
	}
	return &Service{
		extractor:   extractor,
		categorizer: categorizer,
		engine:      engine,
		store:       st,
		distributor: distributor,
		mergeOpts:   cfg.MergeOptions,
		concurrency: concurrency,
		locks:       make(map[string]*sync.Mutex),
	}
}

// appLock returns the per-application mutex, creating it on first use.
func (s *Service) appLock(applicationID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[applicationID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[applicationID] = l
	}
	return l
}

// IngestDocument extracts one document and merges it into the
// application's master record, returning the committed record.
func (s *Service) IngestDocument(ctx context.Context, applicationID string, doc model.Document) (*model.MasterRecord, error) {
	raw, err := s.extractor.Extract(ctx, doc)
	if err != nil {
		return nil, eris.Wrapf(err, "intake: extract document %s", doc.ID)
	}
	return s.mergeExtraction(ctx, applicationID, raw)
}

// mergeExtraction categorizes a raw extraction and commits the merge
// under the application's lock, replaying on store version conflicts.
func (s *Service) mergeExtraction(ctx context.Context, applicationID string, raw *model.RawExtraction) (*model.MasterRecord, error) {
	cat := s.categorizer.Categorize(raw)

	lock := s.appLock(applicationID)
	lock.Lock()
	defer lock.Unlock()

	var lastErr error
	for attempt := 0; attempt <= saveRetries; attempt++ {
		rec, err := s.store.Get(ctx, applicationID)
		if err != nil {
			if !eris.Is(err, store.ErrNotFound) {
				return nil, eris.Wrapf(err, "intake: load record %s", applicationID)
			}
			rec = model.NewMasterRecord(applicationID)
		}

		merged, err := s.engine.Merge(rec, cat, s.mergeOpts)
		if err != nil {
			return nil, eris.Wrapf(err, "intake: merge document %s", raw.DocumentID)
		}

		if err := s.store.Save(ctx, merged, rec.Version); err != nil {
			if eris.Is(err, store.ErrVersionConflict) {
				lastErr = err
				continue
			}
			return nil, eris.Wrapf(err, "intake: save record %s", applicationID)
		}
		return merged, nil
	}
	return nil, eris.Wrapf(lastErr, "intake: gave up after %d version conflicts", saveRetries)
}

// BatchReport summarizes one batch ingestion.
type BatchReport struct {
	ApplicationID string            `json:"application_id"`
	Succeeded     []string          `json:"succeeded"`
	Failed        map[string]string `json:"failed,omitempty"`
	FinalVersion  int64             `json:"final_version"`
	Conflicts     int               `json:"conflicts"`
}

// IngestBatch extracts all documents in parallel, then merges the
// successful extractions in input order so results are deterministic.
// Individual failures are reported; the call errors only when every
// document fails.
func (s *Service) IngestBatch(ctx context.Context, applicationID string, docs []model.Document) (*BatchReport, error) {
	report := &BatchReport{
		ApplicationID: applicationID,
		Failed:        make(map[string]string),
	}
	if len(docs) == 0 {
		return report, nil
	}

	extractions := make([]*model.RawExtraction, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	var failMu sync.Mutex
	for i, doc := range docs {
		g.Go(func() error {
			raw, err := s.extractor.Extract(gctx, doc)
			if err != nil {
				failMu.Lock()
				report.Failed[doc.ID] = err.Error()
				failMu.Unlock()
				zap.L().Warn("intake: document extraction failed",
					zap.String("application", applicationID),
					zap.String("document", doc.ID),
					zap.Error(err),
				)
				return nil
			}
			extractions[i] = raw
			return nil
		})
	}
	_ = g.Wait()

	var rec *model.MasterRecord
	for i, raw := range extractions {
		if raw == nil {
			continue
		}
		merged, err := s.mergeExtraction(ctx, applicationID, raw)
		if err != nil {
			report.Failed[docs[i].ID] = err.Error()
			continue
		}
		rec = merged
		report.Succeeded = append(report.Succeeded, docs[i].ID)
	}

	if rec != nil {
		report.FinalVersion = rec.Version
		report.Conflicts = len(rec.ConflictLog)
	}

	if len(report.Succeeded) == 0 {
		return report, eris.Errorf("intake: all %d documents failed for application %s", len(docs), applicationID)
	}

	zap.L().Info("intake: batch complete",
		zap.String("application", applicationID),
		zap.Int("succeeded", len(report.Succeeded)),
		zap.Int("failed", len(report.Failed)),
		zap.Int64("version", report.FinalVersion),
	)
	return report, nil
}

// GetMasterRecord returns the current record, or a specific archived
// version when version > 0.
func (s *Service) GetMasterRecord(ctx context.Context, applicationID string, version int64) (*model.MasterRecord, error) {
	if version > 0 {
		return s.store.GetVersion(ctx, applicationID, version)
	}
	return s.store.Get(ctx, applicationID)
}

// GenerateOutputs maps one committed snapshot of the record onto the
// given forms and persists the results. The snapshot is read once so a
// concurrent merge cannot produce outputs spanning two versions.
func (s *Service) GenerateOutputs(ctx context.Context, applicationID string, forms []model.FormSpec) ([]model.MappedFormResult, error) {
	rec, err := s.store.Get(ctx, applicationID)
	if err != nil {
		return nil, eris.Wrapf(err, "intake: load record %s", applicationID)
	}

	results := s.distributor.Distribute(ctx, rec, forms)
	if err := s.store.SaveFormResults(ctx, results); err != nil {
		return nil, eris.Wrap(err, "intake: persist form results")
	}
	return results, nil
}
