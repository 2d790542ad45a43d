// Package store persists master records with version history and
// optimistic concurrency control.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/meridian-lending/intake-cli/internal/model"
)

// Sentinel errors. Implementations wrap these so callers can test with
// eris.Is.
var (
	// ErrNotFound is returned when no record exists for an application
	// or requested version.
	ErrNotFound = eris.New("store: record not found")

	// ErrVersionConflict is returned by Save when the stored version no
	// longer matches the caller's expected version.
	ErrVersionConflict = eris.New("store: version conflict")
)

// ApplicationSummary is a lightweight listing row for an application's
// current record.
type ApplicationSummary struct {
	ApplicationID string `json:"application_id"`
	Version       int64  `json:"version"`
	Documents     int    `json:"documents"`
	Conflicts     int    `json:"conflicts"`
}

// Store defines the persistence interface for master records.
//
// Save is the atomic commit point of a merge: it replaces the current
// record and archives the new version snapshot in a single transaction,
// rejecting the write with ErrVersionConflict if another writer got
// there first.
type Store interface {
	// Get returns the current record for an application, or ErrNotFound.
	Get(ctx context.Context, applicationID string) (*model.MasterRecord, error)

	// GetVersion returns a specific archived version, or ErrNotFound.
	GetVersion(ctx context.Context, applicationID string, version int64) (*model.MasterRecord, error)

	// Save commits rec as the new current record. expectedVersion is the
	// version the caller read before merging (0 for a new application).
	Save(ctx context.Context, rec *model.MasterRecord, expectedVersion int64) error

	// ListVersions returns the archived version numbers in ascending order.
	ListVersions(ctx context.Context, applicationID string) ([]int64, error)

	// ListApplications returns summaries for all known applications.
	ListApplications(ctx context.Context) ([]ApplicationSummary, error)

	// SaveFormResults persists generated form outputs for auditability.
	SaveFormResults(ctx context.Context, results []model.MappedFormResult) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
