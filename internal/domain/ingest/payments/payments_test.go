package payments

import (
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/reconcile"
	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/sheet"
)

func anaRuizPair(t *testing.T) reconcile.Pair {
	t.Helper()

	rep := sheet.Row{
		"Socio":             "Ana Ruiz",
		"Fecha de registro": "01/03/2024",
		"Hora":              "10:15",
		"Bruto":             "1,200.00",
		"Subtotal":          "1,000.00",
		"Impuesto":          "200.00",
		"Producto":          "Yoga Mensual",
		"Método de pago":    nil,
		"Cód. Autorización": " AUTH-77 ",
		"Centro":            "Centro Norte",
	}
	his := sheet.Row{
		"Nombre":          "Ana",
		"Apellidos":       "Ruiz",
		"Fecha registro":  "2024-03-01 10:15",
		"Total":           "1200.00",
		"Concepto":        "Yoga Mensual",
		"Método de pago":  "Tarjeta",
		"Id. Transacción": "TX-9",
		"Id. Suscripción": "SUS-1",
		"Estado":          "Pagado",
		"Notas":           "  ",
	}

	out := reconcile.Merge([]sheet.Row{rep}, []sheet.Row{his})
	require.Len(t, out.Pairs, 1)
	return out.Pairs[0]
}

func TestMapPair_AnaRuiz(t *testing.T) {
	rec := MapPair(anaRuizPair(t))

	require.NotNil(t, rec.Socio)
	assert.Equal(t, "Ana Ruiz", *rec.Socio)
	require.NotNil(t, rec.FechaDeRegistro)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *rec.FechaDeRegistro)
	require.NotNil(t, rec.Hora)
	assert.Equal(t, "10:15:00", *rec.Hora)

	assert.True(t, rec.Bruto.Decimal.Equal(decimal.RequireFromString("1200")))
	assert.True(t, rec.Total.Decimal.Equal(decimal.RequireFromString("1200")))
	assert.True(t, rec.Subtotal.Decimal.Equal(decimal.RequireFromString("1000")))
	assert.Equal(t, rec.Subtotal, rec.Precio)
	assert.True(t, rec.Cantidad.Decimal.Equal(decimal.NewFromInt(1)))

	require.NotNil(t, rec.MetodoDePago)
	assert.Equal(t, "tarjeta", *rec.MetodoDePago)
	require.NotNil(t, rec.CodAutorizacion)
	assert.Equal(t, "auth-77", *rec.CodAutorizacion)
	require.NotNil(t, rec.IDTransaccion)
	assert.Equal(t, "TX-9", *rec.IDTransaccion)
	require.NotNil(t, rec.Concepto)
	assert.Equal(t, "Yoga Mensual", *rec.Concepto)

	// blank text never reaches the record
	assert.Nil(t, rec.Notas)
	assert.Nil(t, rec.Canal)
	assert.False(t, rec.Descuento.Valid)

	assert.Equal(t, "74685551c66d184a23cdc1e06a5e3528", rec.IngestSig)
	assert.Empty(t, Validate(rec))
}

func TestMapPair_TotalFallsBackToGross(t *testing.T) {
	rec := MapPair(reconcile.Pair{
		Transactional: sheet.Row{"Bruto": "45,50"},
		Historical:    sheet.Row{"Cantidad": "3"},
	})

	assert.True(t, rec.Total.Decimal.Equal(decimal.RequireFromString("45.5")))
	assert.True(t, rec.Cantidad.Decimal.Equal(decimal.NewFromInt(3)))
}

func TestMapPair_IsTotal(t *testing.T) {
	rec := MapPair(reconcile.Pair{})

	assert.Nil(t, rec.Socio)
	assert.False(t, rec.Total.Valid)
	assert.Equal(t, "ef5ee27e0bb68fd9331a59208322c1ed", rec.IngestSig)
	assert.Equal(t, reconcile.ReasonMissingSubject, Validate(rec))
}

func TestValidate(t *testing.T) {
	name := "Ana"
	product := "Yoga"
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	total := decimal.NewNullDecimal(decimal.NewFromInt(10))

	tests := []struct {
		name     string
		rec      Record
		expected string
	}{
		{"no subject", Record{}, reconcile.ReasonMissingSubject},
		{"no date", Record{Nombre: &name}, reconcile.ReasonMissingDate},
		{"no amount", Record{Socio: &name, FechaDeRegistro: &day}, reconcile.ReasonMissingAmount},
		{"no product", Record{Socio: &name, FechaDeRegistro: &day, Total: total}, reconcile.ReasonMissingProduct},
		{"no signature", Record{Socio: &name, FechaDeRegistro: &day, Total: total, Producto: &product}, reconcile.ReasonSignatureFailure},
		{"valid", Record{Socio: &name, FechaDeRegistro: &day, Total: total, Concepto: &product, IngestSig: Hash("x")}, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Validate(tc.rec))
		})
	}
}

func TestSignature_IgnoresCaseAndMemberID(t *testing.T) {
	a := MapPair(anaRuizPair(t))
	b := a

	upper := "ANA RUIZ"
	member := "S-001"
	b.Socio = &upper
	b.IDSocio = &member

	assert.Equal(t, Signature(a), Signature(b))

	changed := decimal.NewNullDecimal(decimal.RequireFromString("1200.01"))
	b.Total = changed
	assert.NotEqual(t, Signature(a), Signature(b))
}

func TestMapAll_ValidationMisses(t *testing.T) {
	good := anaRuizPair(t)
	bad := reconcile.Pair{Transactional: sheet.Row{"Socio": "Sin fecha"}, Key: "k"}

	records, misses := MapAll([]reconcile.Pair{good, bad})

	require.Len(t, records, 1)
	require.Len(t, misses, 1)
	assert.Equal(t, reconcile.ReasonMissingDate, misses[0].Reason)
	require.NotNil(t, misses[0].Key)
	assert.Equal(t, "k", *misses[0].Key)
}

func TestDedupeBySignature(t *testing.T) {
	first := MapPair(anaRuizPair(t))
	second := first
	note := "segunda copia"
	second.Notas = &note

	out, dropped := DedupeBySignature([]Record{first, second, {}})

	require.Len(t, out, 1)
	assert.Nil(t, out[0].Notas)
	assert.Equal(t, 2, dropped)
}

func TestValues_CoversColumns(t *testing.T) {
	values := MapPair(anaRuizPair(t)).Values()

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cols := append([]string(nil), Columns...)
	sort.Strings(cols)

	assert.Equal(t, cols, keys)
	assert.Nil(t, values["notas"])
	assert.Equal(t, "Ana Ruiz", values["socio"])
}
