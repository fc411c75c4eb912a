package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxPool abstracts the subset of pgxpool.Pool used by the repository to allow mocking in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ PgxPool = (*pgxpool.Pool)(nil)

var _ IngestRepository = (*PostgresIngestRepository)(nil)

// targetAlias names the existing row inside ON CONFLICT DO UPDATE.
const targetAlias = "existing"

// PostgresIngestRepository implements IngestRepository using PostgreSQL
type PostgresIngestRepository struct {
	pool PgxPool
}

// NewPostgresIngestRepository creates a new PostgreSQL-backed ingest repository
func NewPostgresIngestRepository(pool PgxPool) *PostgresIngestRepository {
	return &PostgresIngestRepository{pool: pool}
}

// Upsert writes rows in chunks of ChunkSize, one statement per chunk, awaiting each chunk before the
// next. Incoming NULL or empty values never overwrite stored ones.
func (r *PostgresIngestRepository) Upsert(ctx context.Context, spec TableSpec, rows []Row) (UpsertCounts, error) {
	var counts UpsertCounts
	if len(rows) == 0 {
		return counts, nil
	}
	if err := spec.validate(); err != nil {
		return counts, err
	}

	for offset := 0; offset < len(rows); offset += ChunkSize {
		chunk := rows[offset:min(offset+ChunkSize, len(rows))]
		query, args := BuildUpsert(spec, chunk)

		pgRows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return counts, &ChunkError{Offset: offset, Size: len(chunk), Err: err}
		}

		inserted, err := pgx.CollectRows(pgRows, pgx.RowTo[bool])
		if err != nil {
			return counts, &ChunkError{Offset: offset, Size: len(chunk), Err: err}
		}

		for _, ins := range inserted {
			if ins {
				counts.Inserted++
			} else {
				counts.Updated++
			}
		}
	}

	return counts, nil
}

// BuildUpsert renders the INSERT ... ON CONFLICT statement for one chunk together with its arguments.
func BuildUpsert(spec TableSpec, rows []Row) (string, []any) {
	cols := make([]string, len(spec.Columns))
	for i, c := range spec.Columns {
		cols[i] = pgx.Identifier{c}.Sanitize()
	}

	conflict := make([]string, len(spec.ConflictColumns))
	for i, c := range spec.ConflictColumns {
		conflict[i] = pgx.Identifier{c}.Sanitize()
	}

	updates := make([]string, 0, len(spec.Columns))
	for _, c := range spec.UpdateColumns() {
		col := pgx.Identifier{c}.Sanitize()
		updates = append(updates, fmt.Sprintf(
			`%[1]s = CASE WHEN EXCLUDED.%[1]s IS NOT NULL AND (EXCLUDED.%[1]s::text IS DISTINCT FROM ''::text) THEN EXCLUDED.%[1]s ELSE %[2]s.%[1]s END`,
			col, targetAlias,
		))
	}

	args := make([]any, 0, len(rows)*len(spec.Columns))
	values := make([]string, len(rows))
	for i, row := range rows {
		ph := make([]string, len(spec.Columns))
		for j, c := range spec.Columns {
			args = append(args, row[c])
			ph[j] = fmt.Sprintf("$%d", i*len(spec.Columns)+j+1)
		}
		values[i] = "(" + strings.Join(ph, ", ") + ")"
	}

	query := fmt.Sprintf(
		`INSERT INTO %s AS %s (%s) VALUES %s ON CONFLICT (%s) DO UPDATE SET %s RETURNING (xmax = 0) AS inserted`,
		pgx.Identifier{spec.Schema, spec.Table}.Sanitize(),
		targetAlias,
		strings.Join(cols, ", "),
		strings.Join(values, ", "),
		strings.Join(conflict, ", "),
		strings.Join(updates, ", "),
	)
	return query, args
}

// FindMembersByName returns registry entries whose name matches an ILIKE pattern
func (r *PostgresIngestRepository) FindMembersByName(ctx context.Context, schema, pattern string) ([]Member, error) {
	query := fmt.Sprintf(`
		SELECT id_socio, COALESCE(socio, '') AS socio
		FROM %s
		WHERE id_socio IS NOT NULL AND socio ILIKE $1
	`, pgx.Identifier{schema, "socios"}.Sanitize())

	rows, err := r.pool.Query(ctx, query, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}

	members, err := pgx.CollectRows(rows, pgx.RowToStructByName[Member])
	if err != nil {
		return nil, fmt.Errorf("failed to scan members: %w", err)
	}
	return members, nil
}

// CreateIngestRun inserts a new ingest run in the running state
func (r *PostgresIngestRepository) CreateIngestRun(ctx context.Context, run *IngestRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = RunStatusRunning
	}

	query := `
		INSERT INTO ingest_runs (id, schema_name, table_name, status, admin, fingerprints)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING started_at
	`

	err := r.pool.QueryRow(ctx, query,
		run.ID, run.SchemaName, run.TableName, run.Status, run.Admin, run.Fingerprints,
	).Scan(&run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to create ingest run: %w", err)
	}

	return nil
}

// FinishIngestRun records the final status and counters of an ingest run
func (r *PostgresIngestRepository) FinishIngestRun(ctx context.Context, id uuid.UUID, status string, counts RunCounts, errorMessage *string) error {
	query := `
		UPDATE ingest_runs SET
			status = $2, rows_mapped = $3, rows_inserted = $4, rows_updated = $5,
			rows_skipped = $6, error_message = $7, finished_at = NOW()
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id, status, counts.Mapped, counts.Inserted, counts.Updated, counts.Skipped, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to finish ingest run: %w", err)
	}
	return nil
}
