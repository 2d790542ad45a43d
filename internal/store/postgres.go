package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/meridian-lending/intake-cli/internal/db"
	"github.com/meridian-lending/intake-cli/internal/model"
)

// PostgresStore implements Store using pgxpool. Intended for the server
// mode where several workers share one database.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// the hot-path store operations.
var preparedStatements = map[string]string{
	"get_record":    `SELECT record FROM master_records WHERE application_id = $1`,
	"get_version":   `SELECT record FROM record_versions WHERE application_id = $1 AND version = $2`,
	"list_versions": `SELECT version FROM record_versions WHERE application_id = $1 ORDER BY version ASC`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need
// direct query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS master_records (
	application_id TEXT PRIMARY KEY,
	version        BIGINT NOT NULL,
	record         JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS record_versions (
	application_id TEXT NOT NULL,
	version        BIGINT NOT NULL,
	record         JSONB NOT NULL,
	saved_at       TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (application_id, version)
);

CREATE TABLE IF NOT EXISTS form_results (
	application_id TEXT NOT NULL,
	form_id        TEXT NOT NULL,
	record_version BIGINT NOT NULL,
	result         JSONB NOT NULL,
	generated_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (application_id, form_id, record_version)
);

CREATE INDEX IF NOT EXISTS idx_record_versions_app ON record_versions(application_id);
CREATE INDEX IF NOT EXISTS idx_form_results_app ON form_results(application_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, applicationID string) (*model.MasterRecord, error) {
	var recordJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT record FROM master_records WHERE application_id = $1`,
		applicationID,
	).Scan(&recordJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "application %s", applicationID)
		}
		return nil, eris.Wrapf(err, "postgres: get record %s", applicationID)
	}
	return unmarshalRecord(recordJSON, applicationID)
}

func (s *PostgresStore) GetVersion(ctx context.Context, applicationID string, version int64) (*model.MasterRecord, error) {
	var recordJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT record FROM record_versions WHERE application_id = $1 AND version = $2`,
		applicationID, version,
	).Scan(&recordJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "application %s version %d", applicationID, version)
		}
		return nil, eris.Wrapf(err, "postgres: get version %d for %s", version, applicationID)
	}
	return unmarshalRecord(recordJSON, applicationID)
}

func (s *PostgresStore) Save(ctx context.Context, rec *model.MasterRecord, expectedVersion int64) error {
	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal record")
	}
	now := time.Now().UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx)

	var current int64
	err = tx.QueryRow(ctx,
		`SELECT version FROM master_records WHERE application_id = $1 FOR UPDATE`,
		rec.ApplicationID,
	).Scan(&current)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return eris.Wrapf(err, "postgres: read current version %s", rec.ApplicationID)
	}
	if current != expectedVersion {
		return eris.Wrapf(ErrVersionConflict, "application %s: expected version %d, stored %d",
			rec.ApplicationID, expectedVersion, current)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO master_records (application_id, version, record, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (application_id) DO UPDATE SET
		   version = EXCLUDED.version, record = EXCLUDED.record, updated_at = EXCLUDED.updated_at`,
		rec.ApplicationID, rec.Version, recordJSON, rec.CreatedAt.UTC(), now,
	); err != nil {
		return eris.Wrapf(err, "postgres: upsert record %s", rec.ApplicationID)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO record_versions (application_id, version, record, saved_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (application_id, version) DO UPDATE SET
		   record = EXCLUDED.record, saved_at = EXCLUDED.saved_at`,
		rec.ApplicationID, rec.Version, recordJSON, now,
	); err != nil {
		return eris.Wrapf(err, "postgres: archive version %d for %s", rec.Version, rec.ApplicationID)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit")
}

func (s *PostgresStore) ListVersions(ctx context.Context, applicationID string) ([]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT version FROM record_versions WHERE application_id = $1 ORDER BY version ASC`,
		applicationID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list versions")
	}
	defer rows.Close()

	var versions []int64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, eris.Wrap(err, "postgres: scan version")
		}
		versions = append(versions, v)
	}
	return versions, eris.Wrap(rows.Err(), "postgres: list versions iterate")
}

func (s *PostgresStore) ListApplications(ctx context.Context) ([]ApplicationSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT application_id, version,
		        jsonb_array_length(record->'document_history'),
		        jsonb_array_length(record->'conflict_log')
		 FROM master_records ORDER BY application_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list applications")
	}
	defer rows.Close()

	var out []ApplicationSummary
	for rows.Next() {
		var a ApplicationSummary
		var docs, conflicts *int
		if err := rows.Scan(&a.ApplicationID, &a.Version, &docs, &conflicts); err != nil {
			return nil, eris.Wrap(err, "postgres: scan application")
		}
		if docs != nil {
			a.Documents = *docs
		}
		if conflicts != nil {
			a.Conflicts = *conflicts
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list applications iterate")
}

// SaveFormResults bulk-upserts generated form outputs keyed by
// application, form, and record version.
func (s *PostgresStore) SaveFormResults(ctx context.Context, results []model.MappedFormResult) error {
	if len(results) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(results))
	for _, r := range results {
		resultJSON, err := json.Marshal(r)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal form result %s", r.FormID)
		}
		rows = append(rows, []any{r.ApplicationID, r.FormID, r.RecordVersion, resultJSON, r.GeneratedAt.UTC()})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "form_results",
		Columns:      []string{"application_id", "form_id", "record_version", "result", "generated_at"},
		ConflictKeys: []string{"application_id", "form_id", "record_version"},
	}, rows)
	return eris.Wrap(err, "postgres: save form results")
}

func unmarshalRecord(recordJSON []byte, applicationID string) (*model.MasterRecord, error) {
	var rec model.MasterRecord
	if err := json.Unmarshal(recordJSON, &rec); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal record %s", applicationID)
	}
	return &rec, nil
}
