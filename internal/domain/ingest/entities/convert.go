package entities

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/normalizer"
	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/repository"
)

func text(v any) any {
	return repository.Nullable(normalizer.PickText(v))
}

func lowerText(v any) any {
	s := normalizer.PickText(v)
	if s == nil {
		return nil
	}
	return strings.ToLower(*s)
}

func upperText(v any) any {
	s := normalizer.PickText(v)
	if s == nil {
		return nil
	}
	return strings.ToUpper(*s)
}

func date(v any) any {
	t, ok := normalizer.ParseDateLike(v)
	if !ok {
		return nil
	}
	return normalizer.DateOnly(t)
}

func money(v any) any {
	return repository.Numeric(normalizer.ParseMoney(v))
}

func digitsNumber(v any) any {
	s := normalizer.OnlyDigits(v)
	if s == nil {
		return nil
	}
	n, err := strconv.ParseInt(*s, 10, 64)
	if err != nil {
		return nil
	}
	return n
}

// sigText is the lower-cased text form of a column for signatures.
func sigText(row repository.Row, column string) string {
	switch v := row[column].(type) {
	case nil:
		return ""
	case string:
		return strings.ToLower(v)
	default:
		return strings.ToLower(normalizer.Stringify(v))
	}
}

func sigDate(row repository.Row, column string) string {
	if t, ok := row[column].(time.Time); ok {
		return t.Format(time.DateOnly)
	}
	return ""
}

func sigMoney(row repository.Row, column string) string {
	if d, ok := row[column].(decimal.Decimal); ok {
		return d.StringFixed(2)
	}
	return ""
}
