package payments

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"
)

const signatureLength = md5.Size * 2

// Signature hashes the identifying fields of a payment:
//
//	id_transaccion|id_suscripcion|socio|fecha_de_registro|fecha_de_valor|hora|total|producto|metodo_de_pago
//
// Text is lower-cased, dates are YYYY-MM-DD, missing values are empty and a missing total is 0.00.
// Stored rows are keyed on this value, so the field list must not change.
func Signature(r Record) string {
	total := "0.00"
	if r.Total.Valid {
		total = r.Total.Decimal.StringFixed(2)
	}

	base := strings.Join([]string{
		lower(r.IDTransaccion),
		lower(r.IDSuscripcion),
		lower(r.Socio),
		day(r.FechaDeRegistro),
		day(r.FechaDeValor),
		plain(r.Hora),
		total,
		lower(r.Producto),
		lower(r.MetodoDePago),
	}, "|")

	return Hash(base)
}

// Hash is the lowercase hex MD5 of s.
func Hash(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func lower(s *string) string {
	if s == nil {
		return ""
	}
	return strings.ToLower(*s)
}

func plain(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func day(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}
