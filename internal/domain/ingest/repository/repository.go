// Package repository provides the storage side of ingestion: the chunked upsert engine, the member
// registry lookup and the ingest run log.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChunkSize bounds the number of rows sent in one statement.
const ChunkSize = 300

// SignatureColumn holds the content signature every ingested table is unique on.
const SignatureColumn = "ingest_sig"

// Ingest run statuses
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
	RunStatusRejected  = "rejected"
)

var ErrInvalidTableSpec = errors.New("invalid table spec")

// Row maps column names to query arguments.
type Row map[string]any

// TableSpec describes an upsert target.
type TableSpec struct {
	Schema          string
	Table           string
	Columns         []string
	ConflictColumns []string
}

// UpsertCounts aggregates the per-row insert/update classification.
type UpsertCounts struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

// ChunkError reports the rows of the chunk whose statement failed. Earlier chunks stay committed.
type ChunkError struct {
	Offset int
	Size   int
	Err    error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("failed to upsert rows %d-%d: %v", e.Offset, e.Offset+e.Size-1, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

// Member is a registry entry used to resolve payment subjects.
type Member struct {
	IDSocio string `db:"id_socio"`
	Socio   string `db:"socio"`
}

// IngestRun tracks one ingestion call
type IngestRun struct {
	ID           uuid.UUID  `db:"id"`
	SchemaName   string     `db:"schema_name"`
	TableName    string     `db:"table_name"`
	Status       string     `db:"status"`
	Admin        bool       `db:"admin"`
	Fingerprints []string   `db:"fingerprints"`
	RowsMapped   int        `db:"rows_mapped"`
	RowsInserted int        `db:"rows_inserted"`
	RowsUpdated  int        `db:"rows_updated"`
	RowsSkipped  int        `db:"rows_skipped"`
	ErrorMessage *string    `db:"error_message"`
	StartedAt    time.Time  `db:"started_at"`
	FinishedAt   *time.Time `db:"finished_at"`
}

// RunCounts are the final counters recorded on an ingest run.
type RunCounts struct {
	Mapped   int
	Inserted int
	Updated  int
	Skipped  int
}

// IngestRepository defines data access operations for ingestion
type IngestRepository interface {
	// Upserts
	Upsert(ctx context.Context, spec TableSpec, rows []Row) (UpsertCounts, error)

	// Member registry
	FindMembersByName(ctx context.Context, schema, pattern string) ([]Member, error)

	// Ingest runs
	CreateIngestRun(ctx context.Context, run *IngestRun) error
	FinishIngestRun(ctx context.Context, id uuid.UUID, status string, counts RunCounts, errorMessage *string) error
}

// UpdateColumns are the columns merged on conflict: every column except the conflict target.
func (s TableSpec) UpdateColumns() []string {
	conflict := make(map[string]struct{}, len(s.ConflictColumns))
	for _, c := range s.ConflictColumns {
		conflict[c] = struct{}{}
	}

	out := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		if _, skip := conflict[c]; !skip {
			out = append(out, c)
		}
	}
	return out
}

// HasConflictValues reports whether a row carries a non-empty value for every conflict column.
func (s TableSpec) HasConflictValues(row Row) bool {
	for _, c := range s.ConflictColumns {
		switch v := row[c].(type) {
		case nil:
			return false
		case string:
			if v == "" {
				return false
			}
		}
	}
	return true
}

// ConflictKey renders the row's conflict-column values as one comparable string.
func (s TableSpec) ConflictKey(row Row) string {
	parts := make([]string, len(s.ConflictColumns))
	for i, c := range s.ConflictColumns {
		parts[i] = fmt.Sprint(row[c])
	}
	return strings.Join(parts, "\x1f")
}

// WithConflict returns a copy of the spec targeting other conflict columns.
func (s TableSpec) WithConflict(columns ...string) TableSpec {
	s.ConflictColumns = columns
	return s
}

func (s TableSpec) validate() error {
	if s.Schema == "" || s.Table == "" {
		return fmt.Errorf("%w: schema and table are required", ErrInvalidTableSpec)
	}
	if len(s.ConflictColumns) == 0 {
		return fmt.Errorf("%w: no conflict columns for %s.%s", ErrInvalidTableSpec, s.Schema, s.Table)
	}

	known := make(map[string]struct{}, len(s.Columns))
	for _, c := range s.Columns {
		known[c] = struct{}{}
	}
	for _, c := range s.ConflictColumns {
		if _, ok := known[c]; !ok {
			return fmt.Errorf("%w: conflict column %q not in columns", ErrInvalidTableSpec, c)
		}
	}
	if len(s.UpdateColumns()) == 0 {
		return fmt.Errorf("%w: nothing to update for %s.%s", ErrInvalidTableSpec, s.Schema, s.Table)
	}
	return nil
}

// Nullable unwraps an optional value into a query argument.
func Nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// Numeric unwraps an optional decimal into a query argument.
func Numeric(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal
}
