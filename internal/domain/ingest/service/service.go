// Package service provides the ingestion orchestration logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/classifier"
	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/entities"
	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/payments"
	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/reconcile"
	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/repository"
	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/resolver"
	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/sheet"
	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/window"
	"github.com/FACorreiaa/sukhavati-ingest/pkg/observability"
)

var (
	ErrSchemaNotAllowed = errors.New("schema not allowed")
	ErrUnknownTable     = errors.New("unknown table")
	ErrNotEnoughFiles   = errors.New("not enough files")
)

// DefaultSchema is the only schema accepted when none is configured.
const DefaultSchema = "reportes_sukhavati"

// PaymentsTable is the upload name of the two-file payments flow.
const PaymentsTable = "payments"

// Upload is one uploaded file.
type Upload struct {
	Filename string
	Data     []byte
}

// PaymentsRequest ingests a transactional and a historical export, in any order.
type PaymentsRequest struct {
	Schema     string
	FileA      Upload
	FileB      Upload
	Admin      bool
	NaturalKey bool
}

// EntityRequest ingests one single-file export.
type EntityRequest struct {
	Schema     string
	Table      string
	File       Upload
	Admin      bool
	NaturalKey bool
}

// Request is a table-dispatched upload.
type Request struct {
	Schema     string
	Table      string
	Files      []Upload
	Admin      bool
	NaturalKey bool
}

// Options configures an IngestService.
type Options struct {
	AllowedSchemas []string
	WindowDays     int
	Now            func() time.Time
}

// IngestService orchestrates reading, reconciling, mapping and storing uploads
type IngestService struct {
	repo   repository.IngestRepository
	logger *slog.Logger
	tracer trace.Tracer
	opts   Options
}

// NewIngestService creates a new ingest service
func NewIngestService(repo repository.IngestRepository, logger *slog.Logger, opts Options) *IngestService {
	if len(opts.AllowedSchemas) == 0 {
		opts.AllowedSchemas = []string{DefaultSchema}
	}
	if opts.WindowDays <= 0 {
		opts.WindowDays = window.DefaultDays
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestService{
		repo:   repo,
		logger: logger,
		tracer: otel.Tracer("sukhavati/ingest"),
		opts:   opts,
	}
}

// FilesRequired returns how many files an upload to table needs.
func FilesRequired(table string) (int, bool) {
	if strings.EqualFold(strings.TrimSpace(table), PaymentsTable) {
		return 2, true
	}
	if _, ok := entities.Lookup(table); ok {
		return 1, true
	}
	return 0, false
}

// Ingest dispatches an upload by table name.
func (s *IngestService) Ingest(ctx context.Context, req Request) (*Summary, error) {
	required, ok := FilesRequired(req.Table)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, req.Table)
	}
	if len(req.Files) < required {
		return nil, fmt.Errorf("%w: %q needs %d file(s), got %d", ErrNotEnoughFiles, req.Table, required, len(req.Files))
	}

	if required == 2 {
		return s.IngestPayments(ctx, PaymentsRequest{
			Schema:     req.Schema,
			FileA:      req.Files[0],
			FileB:      req.Files[1],
			Admin:      req.Admin,
			NaturalKey: req.NaturalKey,
		})
	}
	return s.IngestEntity(ctx, EntityRequest{
		Schema:     req.Schema,
		Table:      req.Table,
		File:       req.Files[0],
		Admin:      req.Admin,
		NaturalKey: req.NaturalKey,
	})
}

// IngestPayments reconciles both exports into payment records and upserts them.
func (s *IngestService) IngestPayments(ctx context.Context, req PaymentsRequest) (summary *Summary, err error) {
	if err := s.checkSchema(req.Schema); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "ingest.payments")
	defer func() { endSpan(span, err) }()
	defer observeDuration(payments.Table, time.Now())

	a, err := readUpload(req.FileA)
	if err != nil {
		return nil, err
	}
	b, err := readUpload(req.FileB)
	if err != nil {
		return nil, err
	}

	roles := classifier.AssignRoles(
		classifier.Upload{Filename: req.FileA.Filename, Sheet: a},
		classifier.Upload{Filename: req.FileB.Filename, Sheet: b},
	)
	span.SetAttributes(
		attribute.String("ingest.decision", string(roles.Decision)),
		attribute.String("ingest.transactional", roles.Transactional.Filename),
	)
	s.logger.InfoContext(ctx, "payments roles assigned",
		"transactional", roles.Transactional.Filename,
		"historical", roles.Historical.Filename,
		"decision", roles.Decision,
		"transactional_score", roles.Transactional.Result.TransactionalScore,
		"historical_score", roles.Historical.Result.HistoricalScore,
	)

	run, err := s.startRun(ctx, req.Schema, payments.Table, req.Admin,
		roles.Transactional.Result.Fingerprint, roles.Historical.Result.Fingerprint)
	if err != nil {
		return nil, err
	}

	outcome := reconcile.Merge(roles.Transactional.Sheet.Rows, roles.Historical.Sheet.Rows)
	if outcome.DuplicateKeys > 0 || outcome.UnkeyedHistorical > 0 {
		s.logger.WarnContext(ctx, "historical rows not indexed",
			"duplicate_keys", outcome.DuplicateKeys,
			"unkeyed", outcome.UnkeyedHistorical,
		)
	}

	records, mapMisses := payments.MapAll(outcome.Pairs)
	misses := append(outcome.Misses, mapMisses...)

	records, duplicates := payments.DedupeBySignature(records)

	summary = &Summary{
		Table:      payments.Table,
		Mapped:     len(outcome.Pairs),
		Duplicates: duplicates,
		RunID:      &run.ID,
	}

	if !req.Admin {
		kept, err := window.Filter(records, window.Pointer(func(r payments.Record) *time.Time {
			return r.FechaDeRegistro
		}), s.opts.Now(), s.opts.WindowDays)
		if errors.Is(err, window.ErrNoRowsInWindow) {
			return s.reject(ctx, run, summary, misses), nil
		}
		summary.OutOfWindow = len(records) - len(kept)
		records = kept
	}

	res := resolver.New(s.repo, req.Schema, s.logger)
	for i := range records {
		if records[i].IDSocio == nil {
			records[i].IDSocio = res.Resolve(ctx, subjectName(records[i]))
		}
	}

	spec := repository.TableSpec{
		Schema:          req.Schema,
		Table:           payments.Table,
		Columns:         payments.Columns,
		ConflictColumns: []string{repository.SignatureColumn},
	}
	rows := make([]repository.Row, 0, len(records))
	for _, r := range records {
		rows = append(rows, r.Values())
	}

	return s.store(ctx, run, summary, spec, payments.NaturalKey, req.NaturalKey, rows, misses)
}

// IngestEntity maps a single-file export and upserts it.
func (s *IngestService) IngestEntity(ctx context.Context, req EntityRequest) (summary *Summary, err error) {
	if err := s.checkSchema(req.Schema); err != nil {
		return nil, err
	}
	mapper, ok := entities.Lookup(req.Table)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, req.Table)
	}

	ctx, span := s.tracer.Start(ctx, "ingest."+mapper.Table)
	defer func() { endSpan(span, err) }()
	defer observeDuration(mapper.Table, time.Now())

	sh, err := readUpload(req.File)
	if err != nil {
		return nil, err
	}
	if err := mapper.CheckHeaders(sh.Headers); err != nil {
		observability.IngestRuns.WithLabelValues(mapper.Table, repository.RunStatusRejected).Inc()
		return nil, err
	}

	run, err := s.startRun(ctx, req.Schema, mapper.Table, req.Admin, classifier.Fingerprint(sh.Headers))
	if err != nil {
		return nil, err
	}

	rows, duplicates := mapper.MapAll(sh.Rows)
	summary = &Summary{
		Table:      mapper.Table,
		Mapped:     len(rows),
		Duplicates: duplicates,
		RunID:      &run.ID,
	}

	if !req.Admin && len(mapper.WindowColumns) > 0 {
		kept, err := window.Filter(rows, mapper.DateOf, s.opts.Now(), s.opts.WindowDays)
		if errors.Is(err, window.ErrNoRowsInWindow) {
			return s.reject(ctx, run, summary, nil), nil
		}
		summary.OutOfWindow = len(rows) - len(kept)
		rows = kept
	}

	return s.store(ctx, run, summary, mapper.Spec(req.Schema), mapper.NaturalKey, req.NaturalKey, rows, nil)
}

// store upserts rows, on the natural key when requested and available, and closes the run.
func (s *IngestService) store(ctx context.Context, run *repository.IngestRun, summary *Summary, spec repository.TableSpec,
	naturalKey []string, useNatural bool, rows []repository.Row, misses []reconcile.Miss) (*Summary, error) {
	if useNatural && len(naturalKey) > 0 {
		spec = spec.WithConflict(naturalKey...)
		keyed := make([]repository.Row, 0, len(rows))
		seen := make(map[string]struct{}, len(rows))
		for _, row := range rows {
			if !spec.HasConflictValues(row) {
				misses = append(misses, reconcile.Miss{Row: sheet.Row(row), Reason: reconcile.ReasonMissingNaturalKey})
				continue
			}
			// one ON CONFLICT statement cannot touch the same target row twice; first row wins
			key := spec.ConflictKey(row)
			if _, dup := seen[key]; dup {
				misses = append(misses, reconcile.Miss{Row: sheet.Row(row), Reason: reconcile.ReasonDuplicateNatural})
				continue
			}
			seen[key] = struct{}{}
			keyed = append(keyed, row)
		}
		rows = keyed
	}

	counts, err := s.repo.Upsert(ctx, spec, rows)
	summary.Inserted = counts.Inserted
	summary.Updated = counts.Updated
	summary.setMisses(misses)

	if err != nil {
		s.finishRun(ctx, run, repository.RunStatusFailed, summary, err)
		return nil, fmt.Errorf("failed to upsert %s: %w", spec.Table, err)
	}

	summary.OK = true
	s.finishRun(ctx, run, repository.RunStatusSucceeded, summary, nil)
	s.logger.InfoContext(ctx, "ingestion completed",
		"table", spec.Table,
		"run_id", run.ID,
		"inserted", summary.Inserted,
		"updated", summary.Updated,
		"mapped", summary.Mapped,
		"skipped", summary.Skipped,
		"duplicates", summary.Duplicates,
	)
	return summary, nil
}

func (s *IngestService) reject(ctx context.Context, run *repository.IngestRun, summary *Summary, misses []reconcile.Miss) *Summary {
	summary.OK = false
	summary.Error = window.ErrNoRowsInWindow.Error()
	summary.setMisses(misses)
	s.finishRun(ctx, run, repository.RunStatusRejected, summary, window.ErrNoRowsInWindow)
	s.logger.InfoContext(ctx, "ingestion rejected", "table", summary.Table, "reason", summary.Error)
	return summary
}

func (s *IngestService) checkSchema(schema string) error {
	if !slices.Contains(s.opts.AllowedSchemas, schema) {
		return fmt.Errorf("%w: %q", ErrSchemaNotAllowed, schema)
	}
	return nil
}

func (s *IngestService) startRun(ctx context.Context, schema, table string, admin bool, fingerprints ...string) (*repository.IngestRun, error) {
	run := &repository.IngestRun{
		SchemaName:   schema,
		TableName:    table,
		Status:       repository.RunStatusRunning,
		Admin:        admin,
		Fingerprints: fingerprints,
	}
	if err := s.repo.CreateIngestRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create ingest run: %w", err)
	}
	return run, nil
}

func (s *IngestService) finishRun(ctx context.Context, run *repository.IngestRun, status string, summary *Summary, cause error) {
	var msg *string
	if cause != nil {
		m := cause.Error()
		msg = &m
	}

	counts := repository.RunCounts{
		Mapped:   summary.Mapped,
		Inserted: summary.Inserted,
		Updated:  summary.Updated,
		Skipped:  summary.Skipped,
	}
	if err := s.repo.FinishIngestRun(ctx, run.ID, status, counts, msg); err != nil {
		s.logger.WarnContext(ctx, "failed to finish ingest run", "run_id", run.ID, "error", err)
	}

	observability.IngestRuns.WithLabelValues(summary.Table, status).Inc()
	observability.IngestRows.WithLabelValues(summary.Table, "inserted").Add(float64(summary.Inserted))
	observability.IngestRows.WithLabelValues(summary.Table, "updated").Add(float64(summary.Updated))
	observability.IngestRows.WithLabelValues(summary.Table, "skipped").Add(float64(summary.Skipped))
	for _, m := range summary.Misses {
		observability.IngestMisses.WithLabelValues(summary.Table, m.Reason).Inc()
	}
}

func readUpload(u Upload) (*sheet.Sheet, error) {
	sh, err := sheet.Read(u.Data, u.Filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", u.Filename, err)
	}
	return sh, nil
}

func subjectName(r payments.Record) string {
	if r.Socio != nil {
		return *r.Socio
	}
	var parts []string
	if r.Nombre != nil {
		parts = append(parts, *r.Nombre)
	}
	if r.Apellidos != nil {
		parts = append(parts, *r.Apellidos)
	}
	return strings.Join(parts, " ")
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "ok")
	}
	span.End()
}

func observeDuration(table string, start time.Time) {
	observability.IngestDuration.WithLabelValues(table).Observe(time.Since(start).Seconds())
}
