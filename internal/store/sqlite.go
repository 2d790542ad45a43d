package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/meridian-lending/intake-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Suitable for
// single-process CLI use; record documents are stored as JSON text.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS master_records (
	application_id TEXT PRIMARY KEY,
	version        INTEGER NOT NULL,
	record         TEXT NOT NULL,
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS record_versions (
	application_id TEXT NOT NULL,
	version        INTEGER NOT NULL,
	record         TEXT NOT NULL,
	saved_at       DATETIME NOT NULL,
	PRIMARY KEY (application_id, version)
);

CREATE TABLE IF NOT EXISTS form_results (
	application_id TEXT NOT NULL,
	form_id        TEXT NOT NULL,
	record_version INTEGER NOT NULL,
	result         TEXT NOT NULL,
	generated_at   DATETIME NOT NULL,
	PRIMARY KEY (application_id, form_id, record_version)
);

CREATE INDEX IF NOT EXISTS idx_record_versions_app ON record_versions(application_id);
CREATE INDEX IF NOT EXISTS idx_form_results_app ON form_results(application_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, applicationID string) (*model.MasterRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT record FROM master_records WHERE application_id = ?`,
		applicationID,
	)
	return scanRecord(row, applicationID)
}

func (s *SQLiteStore) GetVersion(ctx context.Context, applicationID string, version int64) (*model.MasterRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT record FROM record_versions WHERE application_id = ? AND version = ?`,
		applicationID, version,
	)
	return scanRecord(row, applicationID)
}

func (s *SQLiteStore) Save(ctx context.Context, rec *model.MasterRecord, expectedVersion int64) error {
	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal record")
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	var current int64
	err = tx.QueryRowContext(ctx,
		`SELECT version FROM master_records WHERE application_id = ?`,
		rec.ApplicationID,
	).Scan(&current)
	if err != nil && err != sql.ErrNoRows {
		return eris.Wrapf(err, "sqlite: read current version %s", rec.ApplicationID)
	}
	if current != expectedVersion {
		return eris.Wrapf(ErrVersionConflict, "application %s: expected version %d, stored %d",
			rec.ApplicationID, expectedVersion, current)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO master_records (application_id, version, record, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (application_id) DO UPDATE SET
		   version = excluded.version, record = excluded.record, updated_at = excluded.updated_at`,
		rec.ApplicationID, rec.Version, string(recordJSON), rec.CreatedAt.UTC(), now,
	); err != nil {
		return eris.Wrapf(err, "sqlite: upsert record %s", rec.ApplicationID)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO record_versions (application_id, version, record, saved_at)
		 VALUES (?, ?, ?, ?)`,
		rec.ApplicationID, rec.Version, string(recordJSON), now,
	); err != nil {
		return eris.Wrapf(err, "sqlite: archive version %d for %s", rec.Version, rec.ApplicationID)
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

func (s *SQLiteStore) ListVersions(ctx context.Context, applicationID string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT version FROM record_versions WHERE application_id = ? ORDER BY version ASC`,
		applicationID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list versions")
	}
	defer rows.Close()

	var versions []int64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan version")
		}
		versions = append(versions, v)
	}
	return versions, eris.Wrap(rows.Err(), "sqlite: list versions iterate")
}

func (s *SQLiteStore) ListApplications(ctx context.Context) ([]ApplicationSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT application_id, version,
		        json_array_length(record, '$.document_history'),
		        json_array_length(record, '$.conflict_log')
		 FROM master_records ORDER BY application_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list applications")
	}
	defer rows.Close()

	var out []ApplicationSummary
	for rows.Next() {
		var a ApplicationSummary
		var docs, conflicts sql.NullInt64
		if err := rows.Scan(&a.ApplicationID, &a.Version, &docs, &conflicts); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan application")
		}
		a.Documents = int(docs.Int64)
		a.Conflicts = int(conflicts.Int64)
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list applications iterate")
}

func (s *SQLiteStore) SaveFormResults(ctx context.Context, results []model.MappedFormResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	for _, r := range results {
		resultJSON, err := json.Marshal(r)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal form result %s", r.FormID)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO form_results (application_id, form_id, record_version, result, generated_at)
			 VALUES (?, ?, ?, ?, ?)`,
			r.ApplicationID, r.FormID, r.RecordVersion, string(resultJSON), r.GeneratedAt.UTC(),
		); err != nil {
			return eris.Wrapf(err, "sqlite: save form result %s", r.FormID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit form results")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable, applicationID string) (*model.MasterRecord, error) {
	var recordJSON string
	err := row.Scan(&recordJSON)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "application %s", applicationID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: scan record %s", applicationID)
	}

	var rec model.MasterRecord
	if err := json.Unmarshal([]byte(recordJSON), &rec); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal record %s", applicationID)
	}
	return &rec, nil
}
