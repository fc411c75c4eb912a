package reconcile

import (
	"fmt"
	"strings"

	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/normalizer"
	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/sheet"
)

// MissingMethod stands in for the payment method when a row does not carry one.
const MissingMethod = "SIN_METODO"

// InjectedMethodHeader is where a method recovered from the historical export is written.
const InjectedMethodHeader = "Metodo de Pago"

// Header variants observed in the transactional export.
var (
	reporteSocio    = []string{"socio", "Socio"}
	reporteFecha    = []string{"fecha de registro", "Fecha de registro"}
	reporteHora     = []string{"hora", "Hora"}
	reporteBruto    = []string{"bruto", "Bruto"}
	reporteProducto = []string{"producto", "Producto"}
	reporteMetodo   = []string{"método de pago", "metodo de pago", "Método de pago", InjectedMethodHeader}
)

// Header variants observed in the historical export.
var (
	historicoNombre    = []string{"nombre", "Nombre"}
	historicoApellidos = []string{"apellidos", "Apellidos"}
	historicoFecha     = []string{"fecha registro", "Fecha registro"}
	historicoTotal     = []string{"total", "Total"}
	historicoConcepto  = []string{"concepto", "Concepto", "producto", "Producto"}
	historicoMetodo    = []string{"método de pago", "metodo de pago", "Método de pago", "Metodo de pago"}
)

// TransactionalKey builds the match key of a transactional row, or nil when the subject, timestamp,
// gross amount or product is missing.
func TransactionalKey(row sheet.Row) *string {
	subject := normalizer.NormalizeText(row.First(reporteSocio...))
	at, ok := normalizer.CombineDateAndTime(row.First(reporteFecha...), row.First(reporteHora...))
	gross := normalizer.ParseMoney(row.First(reporteBruto...))
	product := normalizer.NormalizeText(row.First(reporteProducto...))
	method := normalizer.NormalizeText(row.First(reporteMetodo...))

	if subject == "" || !ok || !gross.Valid || product == "" {
		return nil
	}
	key := composeKey(subject, at.Format(keyTimeLayout), gross.Decimal.StringFixed(2), product, method)
	return &key
}

// HistoricalKey builds the match key of a historical row from "nombre apellidos", the registration
// timestamp, the total and the concept (or product).
func HistoricalKey(row sheet.Row) *string {
	nombre := normalizer.NormalizeText(row.First(historicoNombre...))
	apellidos := normalizer.NormalizeText(row.First(historicoApellidos...))
	subject := strings.TrimSpace(nombre + " " + apellidos)
	at, ok := normalizer.ParseDateLike(row.First(historicoFecha...))
	total := normalizer.ParseMoney(row.First(historicoTotal...))
	concept := normalizer.NormalizeText(row.First(historicoConcepto...))
	method := HistoricalMethod(row)

	if subject == "" || !ok || !total.Valid || concept == "" {
		return nil
	}
	key := composeKey(subject, at.Format(keyTimeLayout), total.Decimal.StringFixed(2), concept, method)
	return &key
}

// HistoricalMethod returns the normalised payment method of a historical row, "" when absent.
func HistoricalMethod(row sheet.Row) string {
	return normalizer.NormalizeText(row.First(historicoMetodo...))
}

// BaseKey drops the trailing method segment of a key.
func BaseKey(key string) string {
	if i := strings.LastIndex(key, "|"); i >= 0 {
		return key[:i]
	}
	return key
}

// HasMissingMethod reports whether a key was built without a payment method.
func HasMissingMethod(key string) bool {
	return strings.HasSuffix(key, "|"+MissingMethod)
}

const keyTimeLayout = "2006-01-02T15:04"

func composeKey(subject, at, amount, product, method string) string {
	if method == "" {
		method = MissingMethod
	}
	return fmt.Sprintf("%s|%s|%s|%s|%s", subject, at, amount, product, method)
}
