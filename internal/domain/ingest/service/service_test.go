package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/entities"
	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/reconcile"
	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/repository"
)

const schema = "reportes_sukhavati"

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) Upsert(ctx context.Context, spec repository.TableSpec, rows []repository.Row) (repository.UpsertCounts, error) {
	args := m.Called(ctx, spec, rows)
	return args.Get(0).(repository.UpsertCounts), args.Error(1)
}

func (m *mockRepo) FindMembersByName(ctx context.Context, schema, pattern string) ([]repository.Member, error) {
	args := m.Called(ctx, schema, pattern)
	members, _ := args.Get(0).([]repository.Member)
	return members, args.Error(1)
}

func (m *mockRepo) CreateIngestRun(ctx context.Context, run *repository.IngestRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *mockRepo) FinishIngestRun(ctx context.Context, id uuid.UUID, status string, counts repository.RunCounts, errorMessage *string) error {
	args := m.Called(ctx, id, status, counts, errorMessage)
	return args.Error(0)
}

func newService(repo repository.IngestRepository, now time.Time) *IngestService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewIngestService(repo, logger, Options{Now: func() time.Time { return now }})
}

func expectRun(repo *mockRepo, table string) uuid.UUID {
	id := uuid.New()
	repo.On("CreateIngestRun", mock.Anything, mock.MatchedBy(func(run *repository.IngestRun) bool {
		return run.TableName == table && run.SchemaName == schema && len(run.Fingerprints) > 0
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*repository.IngestRun).ID = id
	}).Return(nil).Once()
	return id
}

func workbook(t *testing.T, rows [][]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func paymentUploads(t *testing.T) []Upload {
	t.Helper()

	report := workbook(t, [][]any{
		{"Socio", "Fecha de registro", "Hora", "Bruto", "Subtotal", "Impuesto", "Producto", "Método de pago", "Cód. Autorización", "Centro"},
		{"Ana Ruiz", "01/03/2024", "10:15", "1,200.00", "1,000.00", "200.00", "Yoga Mensual", "", "AUTH-77", "Centro Norte"},
		{"Sin Pareja", "02/03/2024", "09:00", "50.00", "40.00", "10.00", "Clase suelta", "Efectivo", "", ""},
	})
	history := workbook(t, [][]any{
		{"Nombre", "Apellidos", "Fecha registro", "Total", "Concepto", "Método de pago", "Id. Transacción", "Id. Suscripción", "Estado"},
		{"Ana", "Ruiz", "2024-03-01 10:15", "1200.00", "Yoga Mensual", "Tarjeta", "TX-9", "SUS-1", "Pagado"},
	})

	// history first: roles come from the headers, not the upload order
	return []Upload{
		{Filename: "export-2.xlsx", Data: history},
		{Filename: "export-1.xlsx", Data: report},
	}
}

func TestIngest_Dispatch(t *testing.T) {
	svc := newService(&mockRepo{}, time.Now())
	ctx := context.Background()

	_, err := svc.Ingest(ctx, Request{Schema: schema, Table: "coupons", Files: []Upload{{}}})
	assert.True(t, errors.Is(err, ErrUnknownTable))

	_, err = svc.Ingest(ctx, Request{Schema: schema, Table: "payments", Files: []Upload{{}}})
	assert.True(t, errors.Is(err, ErrNotEnoughFiles))

	_, err = svc.Ingest(ctx, Request{Schema: "public", Table: "products", Files: []Upload{{}}})
	assert.True(t, errors.Is(err, ErrSchemaNotAllowed))
}

func TestFilesRequired(t *testing.T) {
	tests := map[string]int{"payments": 2, "partners": 1, "subscriptions": 1, "products": 1, "activities": 1}
	for table, want := range tests {
		got, ok := FilesRequired(table)
		assert.True(t, ok, table)
		assert.Equal(t, want, got, table)
	}
	_, ok := FilesRequired("coupons")
	assert.False(t, ok)
}

func TestIngestPayments_AnaRuiz(t *testing.T) {
	repo := &mockRepo{}
	runID := expectRun(repo, "pagos")

	repo.On("FindMembersByName", mock.Anything, schema, "%Ruiz%").
		Return([]repository.Member{{IDSocio: "S-001", Socio: "Ana Ruiz"}}, nil).Once()

	repo.On("Upsert", mock.Anything,
		mock.MatchedBy(func(spec repository.TableSpec) bool {
			return spec.Table == "pagos" && spec.ConflictColumns[0] == repository.SignatureColumn
		}),
		mock.MatchedBy(func(rows []repository.Row) bool {
			return len(rows) == 1 &&
				rows[0]["id_socio"] == "S-001" &&
				rows[0]["metodo_de_pago"] == "tarjeta" &&
				rows[0]["id_transaccion"] == "TX-9"
		}),
	).Return(repository.UpsertCounts{Inserted: 1}, nil).Once()

	repo.On("FinishIngestRun", mock.Anything, runID, repository.RunStatusSucceeded,
		repository.RunCounts{Mapped: 1, Inserted: 1, Skipped: 1}, (*string)(nil)).Return(nil).Once()

	svc := newService(repo, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC))
	summary, err := svc.Ingest(context.Background(), Request{Schema: schema, Table: "payments", Files: paymentUploads(t)})

	require.NoError(t, err)
	assert.True(t, summary.OK)
	assert.Equal(t, 1, summary.Inserted)
	assert.Equal(t, 0, summary.Updated)
	assert.Equal(t, 1, summary.Mapped)
	assert.Equal(t, 1, summary.Skipped)
	require.Len(t, summary.Misses, 1)
	assert.Equal(t, reconcile.ReasonNotFound, summary.Misses[0].Reason)
	assert.Equal(t, runID, *summary.RunID)

	repo.AssertExpectations(t)
}

func TestIngestPayments_OutsideWindowIsSoftFailure(t *testing.T) {
	repo := &mockRepo{}
	runID := expectRun(repo, "pagos")
	repo.On("FinishIngestRun", mock.Anything, runID, repository.RunStatusRejected,
		mock.Anything, mock.Anything).Return(nil).Once()

	svc := newService(repo, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	summary, err := svc.IngestPayments(context.Background(), PaymentsRequest{
		Schema: schema,
		FileA:  paymentUploads(t)[0],
		FileB:  paymentUploads(t)[1],
	})

	require.NoError(t, err)
	assert.False(t, summary.OK)
	assert.Equal(t, "no rows within window", summary.Error)
	repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestIngestPayments_UpsertFailure(t *testing.T) {
	repo := &mockRepo{}
	runID := expectRun(repo, "pagos")
	repo.On("FindMembersByName", mock.Anything, schema, mock.Anything).Return(nil, errors.New("timeout"))

	boom := &repository.ChunkError{Offset: 0, Size: 1, Err: errors.New("deadlock detected")}
	repo.On("Upsert", mock.Anything, mock.Anything, mock.Anything).Return(repository.UpsertCounts{}, boom).Once()
	repo.On("FinishIngestRun", mock.Anything, runID, repository.RunStatusFailed,
		mock.Anything, mock.MatchedBy(func(msg *string) bool { return msg != nil })).Return(nil).Once()

	svc := newService(repo, time.Now())
	files := paymentUploads(t)
	_, err := svc.IngestPayments(context.Background(), PaymentsRequest{Schema: schema, FileA: files[0], FileB: files[1], Admin: true})

	var chunkErr *repository.ChunkError
	require.True(t, errors.As(err, &chunkErr))
	repo.AssertExpectations(t)
}

func TestIngestEntity_HeaderMismatch(t *testing.T) {
	repo := &mockRepo{}
	svc := newService(repo, time.Now())

	data := []byte("Producto;Precio;Tipo;Pago\nYoga;45,00;Clase;Único\n")
	_, err := svc.IngestEntity(context.Background(), EntityRequest{
		Schema: schema,
		Table:  "products",
		File:   Upload{Filename: "productos.csv", Data: data},
	})

	var headerErr *entities.HeaderError
	require.True(t, errors.As(err, &headerErr))
	assert.Equal(t, []string{"Características", "Suscritos", "Stock", "Disponibilidad"}, headerErr.Missing)
	assert.Empty(t, headerErr.Extra)

	summary := HeaderMismatch(headerErr)
	assert.Equal(t, "invalid file structure", summary.Error)
	repo.AssertNotCalled(t, "CreateIngestRun", mock.Anything, mock.Anything)
}

func TestIngestEntity_ProductsAreNeverWindowed(t *testing.T) {
	repo := &mockRepo{}
	runID := expectRun(repo, "productos")
	repo.On("Upsert", mock.Anything,
		mock.MatchedBy(func(spec repository.TableSpec) bool { return spec.Table == "productos" }),
		mock.MatchedBy(func(rows []repository.Row) bool { return len(rows) == 2 }),
	).Return(repository.UpsertCounts{Inserted: 1, Updated: 1}, nil).Once()
	repo.On("FinishIngestRun", mock.Anything, runID, repository.RunStatusSucceeded,
		repository.RunCounts{Mapped: 2, Inserted: 1, Updated: 1}, (*string)(nil)).Return(nil).Once()

	data := []byte("Producto;Precio;Tipo;Pago;Características;Suscritos;Stock;Disponibilidad\n" +
		"Yoga Mensual;45,00;Suscripción;Recurrente;;10;;Disponible\n" +
		"Clase suelta;12,50;Clase;Único;;;;Disponible\n" +
		"Yoga Mensual;45,00;SUSCRIPCIÓN;recurrente;Otra;;;\n")

	svc := newService(repo, time.Now())
	summary, err := svc.Ingest(context.Background(), Request{
		Schema: schema,
		Table:  "products",
		Files:  []Upload{{Filename: "productos.csv", Data: data}},
	})

	require.NoError(t, err)
	assert.True(t, summary.OK)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Equal(t, 0, summary.OutOfWindow)
	repo.AssertExpectations(t)
}

func TestIngestEntity_ActivitiesOutsideWindow(t *testing.T) {
	repo := &mockRepo{}
	runID := expectRun(repo, "actividades")
	repo.On("FinishIngestRun", mock.Anything, runID, repository.RunStatusRejected,
		mock.Anything, mock.Anything).Return(nil).Once()

	data := []byte("Img;Nombre;Apellidos;Fecha registro;Evento;Fecha evento;Canje;Producto;Estado;Id. Suscripción\n" +
		";Ana;Ruiz;01/01/2024;Hatha;02/01/2024;;Yoga Mensual;Asistió;SUS-1\n")

	svc := newService(repo, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	summary, err := svc.IngestEntity(context.Background(), EntityRequest{
		Schema: schema,
		Table:  "activities",
		File:   Upload{Filename: "actividades.csv", Data: data},
	})

	require.NoError(t, err)
	assert.False(t, summary.OK)
	assert.Equal(t, "no rows within window", summary.Error)
	repo.AssertExpectations(t)
}

func TestIngestEntity_NaturalKeyMisses(t *testing.T) {
	repo := &mockRepo{}
	runID := expectRun(repo, "suscripciones")
	repo.On("Upsert", mock.Anything,
		mock.MatchedBy(func(spec repository.TableSpec) bool {
			return len(spec.ConflictColumns) == 1 && spec.ConflictColumns[0] == "id_suscripcion"
		}),
		mock.MatchedBy(func(rows []repository.Row) bool { return len(rows) == 1 }),
	).Return(repository.UpsertCounts{Updated: 1}, nil).Once()
	repo.On("FinishIngestRun", mock.Anything, runID, repository.RunStatusSucceeded,
		repository.RunCounts{Mapped: 2, Updated: 1, Skipped: 1}, (*string)(nil)).Return(nil).Once()

	data := []byte("Nombre;Apellidos;Producto;Precio;Método de pago;Periodicidad;Sesiones disponibles;Fecha de inicio;Próximo pago;Fecha de fin;Estado;Empleado;Id. Suscripción\n" +
		"Ana;Ruiz;Yoga Mensual;45,00;Tarjeta;Mensual;8;01/02/2024;01/03/2024;;Activa;Laura;SUS-1\n" +
		"Luis;Gil;Yoga Mensual;45,00;Efectivo;Mensual;8;03/02/2024;03/03/2024;;Activa;Laura;\n")

	svc := newService(repo, time.Now())
	summary, err := svc.IngestEntity(context.Background(), EntityRequest{
		Schema:     schema,
		Table:      "subscriptions",
		File:       Upload{Filename: "suscripciones.csv", Data: data},
		Admin:      true,
		NaturalKey: true,
	})

	require.NoError(t, err)
	require.Len(t, summary.Misses, 1)
	assert.Equal(t, reconcile.ReasonMissingNaturalKey, summary.Misses[0].Reason)
	assert.Equal(t, "Luis", summary.Misses[0].Row["nombre"])
	repo.AssertExpectations(t)
}

func TestIngestEntity_NaturalKeyDuplicatesKeepFirstRow(t *testing.T) {
	repo := &mockRepo{}
	runID := expectRun(repo, "productos")
	repo.On("Upsert", mock.Anything,
		mock.MatchedBy(func(spec repository.TableSpec) bool {
			return slices.Equal(spec.ConflictColumns, []string{"producto", "tipo"})
		}),
		mock.MatchedBy(func(rows []repository.Row) bool {
			if len(rows) != 1 {
				return false
			}
			price, ok := rows[0]["precio"].(decimal.Decimal)
			return ok && price.Equal(decimal.NewFromInt(500))
		}),
	).Return(repository.UpsertCounts{Inserted: 1}, nil).Once()
	repo.On("FinishIngestRun", mock.Anything, runID, repository.RunStatusSucceeded,
		mock.Anything, (*string)(nil)).Return(nil).Once()

	data := []byte("Producto;Precio;Tipo;Pago;Características;Suscritos;Stock;Disponibilidad\n" +
		"Yoga Mensual;500,00;Plan;Recurrente;;;;Disponible\n" +
		"Yoga Mensual;550,00;Plan;Recurrente;;;;Disponible\n")

	svc := newService(repo, time.Now())
	summary, err := svc.Ingest(context.Background(), Request{
		Schema:     schema,
		Table:      "products",
		Files:      []Upload{{Filename: "productos.csv", Data: data}},
		NaturalKey: true,
	})

	require.NoError(t, err)
	assert.True(t, summary.OK)
	assert.Equal(t, 1, summary.Inserted)
	require.Len(t, summary.Misses, 1)
	assert.Equal(t, reconcile.ReasonDuplicateNatural, summary.Misses[0].Reason)
	repo.AssertExpectations(t)
}

func TestSummary_JSONCarriesBothNamingFamilies(t *testing.T) {
	key := "k"
	summary := Summary{
		OK:       true,
		Inserted: 2,
		Updated:  1,
		Mapped:   3,
		Skipped:  1,
		Misses:   []reconcile.Miss{{Key: &key, Reason: reconcile.ReasonNotFound}},
	}

	raw, err := json.Marshal(summary)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, true, decoded["ok"])
	assert.EqualValues(t, 3, decoded["merged"])
	assert.EqualValues(t, 3, decoded["total_mapped"])
	assert.EqualValues(t, 1, decoded["missesTotal"])
	assert.EqualValues(t, 1, decoded["total_skipped"])
	assert.Len(t, decoded["misses"], 1)
	assert.Len(t, decoded["skipped"], 1)
	assert.NotContains(t, decoded, "error")
}
