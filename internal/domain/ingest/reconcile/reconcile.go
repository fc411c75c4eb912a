// Package reconcile pairs rows of the transactional export with rows of the historical export using a
// composite key of subject, minute timestamp, amount, product and payment method.
//
// Historical rows are indexed by full key and by base key (the key without its method). The first row
// seen for a key wins. Transactional rows without a method are matched on the base key and the method
// of the historical row is copied into the transactional row before the full-key lookup.
package reconcile

import (
	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/sheet"
)

// Miss reasons reported back to the caller.
const (
	ReasonKeyNull           = "key-null-reporte"
	ReasonBaseNotFound      = "not-found-in-historico-base"
	ReasonMethodMissing     = "metodo-missing-in-historico"
	ReasonNotFound          = "not-found-in-historico"
	ReasonMissingSubject    = "missing subject/name"
	ReasonMissingDate       = "missing registration date"
	ReasonMissingAmount     = "missing total/gross/subtotal"
	ReasonMissingProduct    = "missing product/concept"
	ReasonSignatureFailure  = "signature generation failed"
	ReasonMissingNaturalKey = "missing natural key"
	ReasonDuplicateNatural  = "duplicate natural key"
)

// Pair is a matched transactional/historical row couple.
type Pair struct {
	Transactional sheet.Row
	Historical    sheet.Row
	Key           string
}

// Miss is a row that could not be keyed, matched or mapped.
type Miss struct {
	Row    sheet.Row `json:"row"`
	Key    *string   `json:"key,omitempty"`
	Reason string    `json:"reason"`
}

// Outcome is the result of one Merge call.
type Outcome struct {
	Pairs  []Pair
	Misses []Miss
	// DuplicateKeys counts historical rows whose full key was already indexed.
	DuplicateKeys int
	// UnkeyedHistorical counts historical rows that could not be keyed and were never indexed.
	UnkeyedHistorical int
}

type index struct {
	byFullKey map[string]sheet.Row
	byBaseKey map[string]sheet.Row
}

func buildIndex(historical []sheet.Row) (index, int, int) {
	idx := index{
		byFullKey: make(map[string]sheet.Row, len(historical)),
		byBaseKey: make(map[string]sheet.Row, len(historical)),
	}
	duplicates, unkeyed := 0, 0

	for _, row := range historical {
		k := HistoricalKey(row)
		if k == nil {
			unkeyed++
			continue
		}
		if _, exists := idx.byFullKey[*k]; exists {
			duplicates++
		} else {
			idx.byFullKey[*k] = row
		}

		base := BaseKey(*k)
		if _, exists := idx.byBaseKey[base]; !exists {
			idx.byBaseKey[base] = row
		}
	}
	return idx, duplicates, unkeyed
}

// Merge matches every transactional row against the historical rows. Input rows are never modified;
// a transactional row that receives a backfilled method is copied first.
func Merge(transactional, historical []sheet.Row) Outcome {
	idx, duplicates, unkeyed := buildIndex(historical)
	out := Outcome{DuplicateKeys: duplicates, UnkeyedHistorical: unkeyed}

	for _, row := range transactional {
		k := TransactionalKey(row)
		if k == nil {
			out.Misses = append(out.Misses, Miss{Row: row, Reason: ReasonKeyNull})
			continue
		}
		key := *k

		if HasMissingMethod(key) {
			base := BaseKey(key)
			hist, ok := idx.byBaseKey[base]
			if !ok {
				out.Misses = append(out.Misses, Miss{Row: row, Key: &base, Reason: ReasonBaseNotFound})
				continue
			}

			method := HistoricalMethod(hist)
			if method == "" {
				out.Misses = append(out.Misses, Miss{Row: row, Key: &base, Reason: ReasonMethodMissing})
				continue
			}

			row = row.Clone()
			row[InjectedMethodHeader] = method
			if rebuilt := TransactionalKey(row); rebuilt != nil {
				key = *rebuilt
			}
		}

		hist, ok := idx.byFullKey[key]
		if !ok {
			missKey := key
			out.Misses = append(out.Misses, Miss{Row: row, Key: &missKey, Reason: ReasonNotFound})
			continue
		}

		out.Pairs = append(out.Pairs, Pair{Transactional: row, Historical: hist, Key: key})
	}

	return out
}
