// Package entities maps single-file exports (members, subscriptions, products and activity logs) into
// table rows. Each export has a fixed header contract and a content signature of its own.
package entities

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/repository"
	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/sheet"
)

var ErrInvalidStructure = errors.New("invalid file structure")

// HeaderError lists the differences between an upload's headers and the expected contract.
type HeaderError struct {
	Table   string
	Missing []string
	Extra   []string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("%s for %s: missing [%s], extra [%s]",
		ErrInvalidStructure, e.Table, strings.Join(e.Missing, ", "), strings.Join(e.Extra, ", "))
}

func (e *HeaderError) Unwrap() error { return ErrInvalidStructure }

// Field maps one source header into a column.
type Field struct {
	Header  string
	Column  string
	Convert func(any) any
}

// Mapper describes one single-file export.
type Mapper struct {
	Name       string
	Table      string
	Fields     []Field
	NaturalKey []string
	// WindowColumns are the date columns the access window checks, in order.
	WindowColumns []string
	signature     func(repository.Row) string
}

// Headers is the exact header contract of the export.
func (m *Mapper) Headers() []string {
	out := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		out[i] = f.Header
	}
	return out
}

// Columns are the target columns, signature last.
func (m *Mapper) Columns() []string {
	out := make([]string, 0, len(m.Fields)+1)
	for _, f := range m.Fields {
		out = append(out, f.Column)
	}
	return append(out, repository.SignatureColumn)
}

// CheckHeaders compares headers against the contract; order is irrelevant.
func (m *Mapper) CheckHeaders(headers []string) error {
	expected := m.Headers()

	var missing, extra []string
	for _, h := range expected {
		if !slices.Contains(headers, h) {
			missing = append(missing, h)
		}
	}
	for _, h := range headers {
		if !slices.Contains(expected, h) {
			extra = append(extra, h)
		}
	}

	if len(missing) > 0 || len(extra) > 0 {
		return &HeaderError{Table: m.Table, Missing: missing, Extra: extra}
	}
	return nil
}

// MapRow converts a sheet row and stamps its signature.
func (m *Mapper) MapRow(raw sheet.Row) repository.Row {
	row := make(repository.Row, len(m.Fields)+1)
	for _, f := range m.Fields {
		v, ok := raw[f.Header]
		if !ok || v == nil {
			row[f.Column] = nil
			continue
		}
		row[f.Column] = f.Convert(v)
	}
	row[repository.SignatureColumn] = m.signature(row)
	return row
}

// MapAll maps every row and drops later rows repeating an earlier signature.
func (m *Mapper) MapAll(raw []sheet.Row) ([]repository.Row, int) {
	seen := make(map[string]struct{}, len(raw))
	out := make([]repository.Row, 0, len(raw))
	for _, r := range raw {
		row := m.MapRow(r)
		sig, _ := row[repository.SignatureColumn].(string)
		if sig == "" {
			continue
		}
		if _, dup := seen[sig]; dup {
			continue
		}
		seen[sig] = struct{}{}
		out = append(out, row)
	}
	return out, len(raw) - len(out)
}

// Spec is the signature-keyed upsert target.
func (m *Mapper) Spec(schema string) repository.TableSpec {
	return repository.TableSpec{
		Schema:          schema,
		Table:           m.Table,
		Columns:         m.Columns(),
		ConflictColumns: []string{repository.SignatureColumn},
	}
}

// DateOf returns the first window column holding a date.
func (m *Mapper) DateOf(row repository.Row) (time.Time, bool) {
	for _, c := range m.WindowColumns {
		if t, ok := row[c].(time.Time); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

var registry = map[string]*Mapper{}

func register(m *Mapper, aliases ...string) *Mapper {
	registry[m.Name] = m
	registry[m.Table] = m
	for _, a := range aliases {
		registry[a] = m
	}
	return m
}

// Lookup finds a mapper by upload name or table name.
func Lookup(name string) (*Mapper, bool) {
	m, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	return m, ok
}

func hash(parts ...string) string {
	sum := md5.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
