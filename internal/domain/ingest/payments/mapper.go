package payments

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/normalizer"
	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/reconcile"
)

// Header variants read from the transactional export.
var (
	repFechaRegistro   = []string{"Fecha de registro", "fecha de registro"}
	repHora            = []string{"Hora", "hora"}
	repFechaValor      = []string{"Fecha de valor", "fecha de valor"}
	repSocio           = []string{"Socio", "socio"}
	repBruto           = []string{"Bruto", "bruto"}
	repSubtotal        = []string{"Subtotal", "subtotal"}
	repDescuento       = []string{"Descuento", "descuento"}
	repImpuesto        = []string{"Impuesto", "impuesto"}
	repTotal           = []string{"Total", "total"}
	repProducto        = []string{"Producto", "producto"}
	repTipoProducto    = []string{"Tipo producto", "tipo producto"}
	repCantidad        = []string{"Cantidad", "cantidad"}
	repCuponCodigo     = []string{"Cupón", "cupon"}
	repCuponPorcentaje = []string{"% cupón", "% Cupón"}
	repCuponMonto      = []string{"$ cupón", "$ Cupón"}
	repIDCargo         = []string{"ID Cargo", "id cargo"}
	repCodAutorizacion = []string{"Cód. Autorización", "Cod. Autorizacion"}
	repTipoDePago      = []string{"Tipo metodo de pago"}
	repCentro          = []string{"Centro", "centro"}
	repOrigenDePago    = []string{"Origen de pago"}
	repMetodo          = []string{"Método de pago", "metodo de pago", "Metodo de pago", reconcile.InjectedMethodHeader}
)

// Header variants read from the historical export.
var (
	hisCantidad      = []string{"Cantidad", "cantidad"}
	hisCanal         = []string{"Canal", "canal"}
	hisEmpleado      = []string{"Empleado", "empleado"}
	hisEstado        = []string{"Estado", "estado"}
	hisIDTransaccion = []string{"Id. Transacción", "id. transacción", "Id Transacción", "id_transaccion"}
	hisIDSuscripcion = []string{"Id. Suscripción", "id. suscripción", "Id Suscripción", "id_suscripcion"}
	hisNoDeTarjeta   = []string{"Nº de Tarjeta", "No. de Tarjeta", "no_de_tarjeta"}
	hisTipoTarjeta   = []string{"Tipo de tarjeta", "tipo de tarjeta", "tipo_de_tarjeta"}
	hisTotal         = []string{"Total", "total"}
	hisNombre        = []string{"Nombre", "nombre"}
	hisApellidos     = []string{"Apellidos", "apellidos"}
	hisConcepto      = []string{"Concepto", "concepto", "Producto", "producto"}
	hisEmail         = []string{"email", "correo"}
	hisTipo          = []string{"Tipo", "Type"}
	hisNotas         = []string{"Notas", "notas"}
	hisMetodo        = []string{"Método de pago", "metodo de pago", "Metodo de pago"}
)

var one = decimal.NewNullDecimal(decimal.NewFromInt(1))

// MapPair projects a matched pair onto a Record. It never fails; validity is checked by Validate.
func MapPair(p reconcile.Pair) Record {
	rep, his := p.Transactional, p.Historical

	var rec Record

	if at, ok := normalizer.CombineDateAndTime(rep.First(repFechaRegistro...), rep.First(repHora...)); ok {
		registered := normalizer.DateOnly(at)
		clock := fmt.Sprintf("%02d:%02d:%02d", at.Hour(), at.Minute(), at.Second())
		rec.FechaDeRegistro = &registered
		rec.Hora = &clock
	}
	if v, ok := normalizer.ParseDateLike(rep.First(repFechaValor...)); ok {
		valued := normalizer.DateOnly(v)
		rec.FechaDeValor = &valued
	}

	rec.Socio = normalizer.PickText(rep.First(repSocio...))
	rec.Bruto = normalizer.ParseMoney(rep.First(repBruto...))
	rec.Subtotal = normalizer.ParseMoney(rep.First(repSubtotal...))
	rec.Descuento = normalizer.ParseMoney(rep.First(repDescuento...))
	rec.Impuesto = normalizer.ParseMoney(rep.First(repImpuesto...))
	rec.Producto = normalizer.PickText(rep.First(repProducto...))
	rec.TipoProducto = normalizer.PickText(rep.First(repTipoProducto...))
	rec.Cantidad = firstValid(
		normalizer.ParseMoney(rep.First(repCantidad...)),
		normalizer.ParseMoney(his.First(hisCantidad...)),
		one,
	)
	rec.CuponCodigo = normalizer.PickText(rep.First(repCuponCodigo...))
	rec.CuponPorcentaje = normalizer.PickText(rep.First(repCuponPorcentaje...))
	rec.CuponMonto = normalizer.ParseMoney(rep.First(repCuponMonto...))
	rec.IDCargo = normalizer.PickNormalized(rep.First(repIDCargo...))
	rec.CodAutorizacion = normalizer.PickNormalized(rep.First(repCodAutorizacion...))
	rec.TipoDePago = normalizer.PickNormalized(rep.First(repTipoDePago...))
	rec.Centro = normalizer.PickText(rep.First(repCentro...))
	rec.OrigenDePago = normalizer.PickText(rep.First(repOrigenDePago...))

	rec.Canal = normalizer.PickText(his.First(hisCanal...))
	rec.Empleado = normalizer.PickText(his.First(hisEmpleado...))
	rec.Estado = normalizer.PickText(his.First(hisEstado...))
	rec.IDTransaccion = normalizer.PickText(his.First(hisIDTransaccion...))
	rec.IDSuscripcion = normalizer.PickText(his.First(hisIDSuscripcion...))
	rec.NoDeTarjeta = normalizer.PickText(his.First(hisNoDeTarjeta...))
	rec.Tarjeta = normalizer.PickText(his.First(hisTipoTarjeta...))
	rec.Total = firstValid(
		normalizer.ParseMoney(his.First(hisTotal...)),
		normalizer.ParseMoney(rep.First(repTotal...)),
		rec.Bruto,
	)
	rec.Nombre = normalizer.PickText(his.First(hisNombre...))
	rec.Apellidos = normalizer.PickText(his.First(hisApellidos...))
	rec.Concepto = normalizer.PickText(his.First(hisConcepto...))
	rec.Email = normalizer.PickNormalized(his.First(hisEmail...))
	rec.Tipo = normalizer.PickNormalized(his.First(hisTipo...))
	rec.Notas = normalizer.PickText(his.First(hisNotas...))

	rec.MetodoDePago = normalizer.PickNormalized(rep.First(repMetodo...))
	if rec.MetodoDePago == nil {
		rec.MetodoDePago = normalizer.PickNormalized(his.First(hisMetodo...))
	}

	rec.Precio = rec.Subtotal

	rec.IngestSig = Signature(rec)
	return rec
}

// Validate returns the first reason a record cannot be stored, or "" when it is complete enough.
func Validate(r Record) string {
	switch {
	case r.Socio == nil && r.Nombre == nil:
		return reconcile.ReasonMissingSubject
	case r.FechaDeRegistro == nil:
		return reconcile.ReasonMissingDate
	case !r.Total.Valid && !r.Bruto.Valid && !r.Subtotal.Valid:
		return reconcile.ReasonMissingAmount
	case r.Producto == nil && r.Concepto == nil:
		return reconcile.ReasonMissingProduct
	case len(r.IngestSig) != signatureLength:
		return reconcile.ReasonSignatureFailure
	default:
		return ""
	}
}

// MapAll maps every pair, turning records that fail Validate into misses.
func MapAll(pairs []reconcile.Pair) ([]Record, []reconcile.Miss) {
	records := make([]Record, 0, len(pairs))
	var misses []reconcile.Miss

	for _, p := range pairs {
		rec := MapPair(p)
		if reason := Validate(rec); reason != "" {
			key := p.Key
			misses = append(misses, reconcile.Miss{Row: p.Transactional, Key: &key, Reason: reason})
			continue
		}
		records = append(records, rec)
	}
	return records, misses
}

// DedupeBySignature keeps the first record of each signature and reports how many were dropped.
func DedupeBySignature(records []Record) ([]Record, int) {
	seen := make(map[string]struct{}, len(records))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.IngestSig == "" {
			continue
		}
		if _, dup := seen[r.IngestSig]; dup {
			continue
		}
		seen[r.IngestSig] = struct{}{}
		out = append(out, r)
	}
	return out, len(records) - len(out)
}

func firstValid(values ...decimal.NullDecimal) decimal.NullDecimal {
	for _, v := range values {
		if v.Valid {
			return v
		}
	}
	return decimal.NullDecimal{}
}

