// Package classifier decides which of two payment exports is the transactional report and which is
// the historical one. It scores header vocabularies, then falls back to file names and raw scores.
package classifier

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"

	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/normalizer"
	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/sheet"
)

// Kind is the role a sheet plays in a payments upload.
type Kind string

const (
	KindTransactional Kind = "transactional"
	KindHistorical    Kind = "historical"
	KindUnknown       Kind = "unknown"
)

// Decision records which rule settled the role assignment.
type Decision string

const (
	DecidedByHeaders  Decision = "headers"
	DecidedByFilename Decision = "filename"
	DecidedByScore    Decision = "score"
)

var transactionalKeys = map[string]struct{}{
	"bruto": {}, "cod_autorizacion": {}, "id_transaccion": {}, "id_cargo": {},
	"subtotal": {}, "impuesto": {}, "impuesto_porcentaje": {}, "total": {},
	"centro": {}, "canal": {}, "factura": {}, "producto": {}, "metodo_de_pago": {},
}

var historicalKeys = map[string]struct{}{
	"concepto": {}, "tipo_producto": {}, "tipo": {}, "precio": {}, "cantidad": {},
	"descuento": {}, "cupon_codigo": {}, "cupon_porcentaje": {}, "cupon_monto": {},
	"tipo_metodo_de_pago": {}, "tipo_de_tarjeta": {}, "tarjeta": {}, "no_de_tarjeta": {},
	"origen_de_pago": {}, "estado": {}, "facturado": {}, "notas": {}, "id_suscripcion": {},
	"nombre": {}, "apellidos": {},
}

var (
	transactionalName = regexp.MustCompile(`reporte|reportes|pagos`)
	historicalName    = regexp.MustCompile(`historico|historial`)
)

// Result is the outcome of scoring one sheet's headers.
type Result struct {
	Kind               Kind     `json:"kind"`
	Headers            []string `json:"headers"`
	TransactionalScore int      `json:"transactional_score"`
	HistoricalScore    int      `json:"historical_score"`
	Fingerprint        string   `json:"fingerprint"`
}

// Upload is one uploaded file together with its parsed sheet.
type Upload struct {
	Filename string
	Sheet    *sheet.Sheet
	Result   Result
}

// Assignment is the resolved pair of roles for a payments upload.
type Assignment struct {
	Transactional Upload
	Historical    Upload
	Decision      Decision
}

// ClassifySheet classifies a parsed sheet. A sheet without data rows is unknown with zero scores.
func ClassifySheet(s *sheet.Sheet) Result {
	if s == nil || len(s.Rows) == 0 {
		return Result{Kind: KindUnknown, Headers: []string{}}
	}
	return Classify(s.Headers)
}

// Classify scores header labels against both vocabularies. Ties are unknown.
func Classify(headers []string) Result {
	tokens := make([]string, 0, len(headers))
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		tok := normalizer.SnakeCase(h)
		tokens = append(tokens, tok)
		present[tok] = true
	}

	res := Result{Headers: tokens, Fingerprint: Fingerprint(headers)}
	if len(tokens) == 0 {
		res.Kind = KindUnknown
		return res
	}

	for _, tok := range tokens {
		if _, ok := transactionalKeys[tok]; ok {
			res.TransactionalScore++
		}
		if _, ok := historicalKeys[tok]; ok {
			res.HistoricalScore++
		}
	}

	if present["producto"] {
		res.TransactionalScore += 2
	}
	if present["concepto"] {
		res.HistoricalScore += 2
	}
	if present["bruto"] {
		res.TransactionalScore += 2
	}
	if present["id_transaccion"] || present["cod_autorizacion"] {
		res.TransactionalScore++
	}
	if present["nombre"] || present["apellidos"] {
		res.HistoricalScore++
	}

	switch {
	case res.TransactionalScore > res.HistoricalScore:
		res.Kind = KindTransactional
	case res.HistoricalScore > res.TransactionalScore:
		res.Kind = KindHistorical
	default:
		res.Kind = KindUnknown
	}
	return res
}

// ClassifyFilename looks for role keywords in an upload's file name.
func ClassifyFilename(name string) Kind {
	n := normalizer.SnakeCase(name)
	switch {
	case transactionalName.MatchString(n):
		return KindTransactional
	case historicalName.MatchString(n):
		return KindHistorical
	default:
		return KindUnknown
	}
}

// AssignRoles decides which upload is transactional. Complementary header kinds win, then complementary
// file names; otherwise a is transactional when its transactional score is at least b's.
func AssignRoles(a, b Upload) Assignment {
	a.Result = ClassifySheet(a.Sheet)
	b.Result = ClassifySheet(b.Sheet)

	switch {
	case a.Result.Kind == KindTransactional && b.Result.Kind == KindHistorical:
		return Assignment{Transactional: a, Historical: b, Decision: DecidedByHeaders}
	case a.Result.Kind == KindHistorical && b.Result.Kind == KindTransactional:
		return Assignment{Transactional: b, Historical: a, Decision: DecidedByHeaders}
	}

	fa, fb := ClassifyFilename(a.Filename), ClassifyFilename(b.Filename)
	switch {
	case fa == KindTransactional && fb == KindHistorical:
		return Assignment{Transactional: a, Historical: b, Decision: DecidedByFilename}
	case fa == KindHistorical && fb == KindTransactional:
		return Assignment{Transactional: b, Historical: a, Decision: DecidedByFilename}
	}

	if a.Result.TransactionalScore >= b.Result.TransactionalScore {
		return Assignment{Transactional: a, Historical: b, Decision: DecidedByScore}
	}
	return Assignment{Transactional: b, Historical: a, Decision: DecidedByScore}
}

// Fingerprint creates a stable hash from header names, used to recognise repeated export layouts.
func Fingerprint(headers []string) string {
	var normalized []string
	for _, h := range headers {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, normalizer.StripDiacritics(h))
		if clean != "" {
			normalized = append(normalized, clean)
		}
	}

	hash := sha256.Sum256([]byte(strings.Join(normalized, "|")))
	return hex.EncodeToString(hash[:])
}
