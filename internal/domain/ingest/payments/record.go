// Package payments maps reconciled report/history row pairs into canonical payment records and
// computes their content signature.
package payments

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/repository"
)

// Table is the target table of payment records.
const Table = "pagos"

// Record is one canonical payment. Text fields are nil rather than empty.
type Record struct {
	IDSocio         *string             `json:"id_socio,omitempty"`
	Factura         *string             `json:"factura,omitempty"`
	IDCargo         *string             `json:"id_cargo,omitempty"`
	CodAutorizacion *string             `json:"cod_autorizacion,omitempty"`
	Socio           *string             `json:"socio,omitempty"`
	Nombre          *string             `json:"nombre,omitempty"`
	Apellidos       *string             `json:"apellidos,omitempty"`
	Email           *string             `json:"email,omitempty"`
	IneCurp         *string             `json:"ine_curp,omitempty"`
	Producto        *string             `json:"producto,omitempty"`
	TipoProducto    *string             `json:"tipo_producto,omitempty"`
	Concepto        *string             `json:"concepto,omitempty"`
	Tipo            *string             `json:"tipo,omitempty"`
	Precio          decimal.NullDecimal `json:"precio"`
	Cantidad        decimal.NullDecimal `json:"cantidad"`
	Descuento       decimal.NullDecimal `json:"descuento"`
	Subtotal        decimal.NullDecimal `json:"subtotal"`
	Bruto           decimal.NullDecimal `json:"bruto"`
	Impuesto        decimal.NullDecimal `json:"impuesto"`
	Total           decimal.NullDecimal `json:"total"`
	MetodoDePago    *string             `json:"metodo_de_pago,omitempty"`
	TipoDePago      *string             `json:"tipo_de_pago,omitempty"`
	CuponCodigo     *string             `json:"cupon_codigo,omitempty"`
	CuponPorcentaje *string             `json:"cupon_porcentaje,omitempty"`
	CuponMonto      decimal.NullDecimal `json:"cupon_monto"`
	Tarjeta         *string             `json:"tarjeta,omitempty"`
	NoDeTarjeta     *string             `json:"no_de_tarjeta,omitempty"`
	OrigenDePago    *string             `json:"origen_de_pago,omitempty"`
	Canal           *string             `json:"canal,omitempty"`
	Centro          *string             `json:"centro,omitempty"`
	Empleado        *string             `json:"empleado,omitempty"`
	Estado          *string             `json:"estado,omitempty"`
	Facturado       *bool               `json:"facturado,omitempty"`
	FechaDeRegistro *time.Time          `json:"fecha_de_registro,omitempty"`
	FechaDeValor    *time.Time          `json:"fecha_de_valor,omitempty"`
	Hora            *string             `json:"hora,omitempty"`
	Notas           *string             `json:"notas,omitempty"`
	Img             *string             `json:"img,omitempty"`
	IDTransaccion   *string             `json:"id_transaccion,omitempty"`
	IDSuscripcion   *string             `json:"id_suscripcion,omitempty"`
	IngestSig       string              `json:"ingest_sig"`
}

// Columns is the column order of the payments table, ingest_sig included.
var Columns = []string{
	"id_socio", "factura", "id_cargo", "cod_autorizacion", "socio", "nombre", "apellidos", "email",
	"ine_curp", "producto", "tipo_producto", "concepto", "tipo", "precio", "cantidad", "descuento",
	"subtotal", "bruto", "impuesto", "total", "metodo_de_pago", "tipo_de_pago", "cupon_codigo",
	"cupon_porcentaje", "cupon_monto", "tarjeta", "no_de_tarjeta", "origen_de_pago", "canal",
	"centro", "empleado", "estado", "facturado", "fecha_de_registro", "fecha_de_valor", "hora",
	"notas", "img", "ingest_sig", "id_transaccion", "id_suscripcion",
}

// NaturalKey is the business key used when uploads are trusted to carry transaction ids.
var NaturalKey = []string{"id_transaccion"}

// Values returns the record as a column -> value map suitable for the upsert engine.
func (r Record) Values() repository.Row {
	return repository.Row{
		"id_socio":          repository.Nullable(r.IDSocio),
		"factura":           repository.Nullable(r.Factura),
		"id_cargo":          repository.Nullable(r.IDCargo),
		"cod_autorizacion":  repository.Nullable(r.CodAutorizacion),
		"socio":             repository.Nullable(r.Socio),
		"nombre":            repository.Nullable(r.Nombre),
		"apellidos":         repository.Nullable(r.Apellidos),
		"email":             repository.Nullable(r.Email),
		"ine_curp":          repository.Nullable(r.IneCurp),
		"producto":          repository.Nullable(r.Producto),
		"tipo_producto":     repository.Nullable(r.TipoProducto),
		"concepto":          repository.Nullable(r.Concepto),
		"tipo":              repository.Nullable(r.Tipo),
		"precio":            repository.Numeric(r.Precio),
		"cantidad":          repository.Numeric(r.Cantidad),
		"descuento":         repository.Numeric(r.Descuento),
		"subtotal":          repository.Numeric(r.Subtotal),
		"bruto":             repository.Numeric(r.Bruto),
		"impuesto":          repository.Numeric(r.Impuesto),
		"total":             repository.Numeric(r.Total),
		"metodo_de_pago":    repository.Nullable(r.MetodoDePago),
		"tipo_de_pago":      repository.Nullable(r.TipoDePago),
		"cupon_codigo":      repository.Nullable(r.CuponCodigo),
		"cupon_porcentaje":  repository.Nullable(r.CuponPorcentaje),
		"cupon_monto":       repository.Numeric(r.CuponMonto),
		"tarjeta":           repository.Nullable(r.Tarjeta),
		"no_de_tarjeta":     repository.Nullable(r.NoDeTarjeta),
		"origen_de_pago":    repository.Nullable(r.OrigenDePago),
		"canal":             repository.Nullable(r.Canal),
		"centro":            repository.Nullable(r.Centro),
		"empleado":          repository.Nullable(r.Empleado),
		"estado":            repository.Nullable(r.Estado),
		"facturado":         repository.Nullable(r.Facturado),
		"fecha_de_registro": repository.Nullable(r.FechaDeRegistro),
		"fecha_de_valor":    repository.Nullable(r.FechaDeValor),
		"hora":              repository.Nullable(r.Hora),
		"notas":             repository.Nullable(r.Notas),
		"img":               repository.Nullable(r.Img),
		"ingest_sig":        r.IngestSig,
		"id_transaccion":    repository.Nullable(r.IDTransaccion),
		"id_suscripcion":    repository.Nullable(r.IDSuscripcion),
	}
}
