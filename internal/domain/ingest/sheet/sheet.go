// Package sheet reads uploaded workbooks (xlsx, legacy xls or csv) into header-keyed rows.
// Only the first sheet that carries data is returned, mirroring how the studio exports are consumed.
package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Row maps the original header text to the raw cell value. Missing cells are nil.
type Row map[string]any

// First returns the value of the first listed header that holds a non-blank value.
func (r Row) First(headers ...string) any {
	for _, h := range headers {
		if v, ok := r[h]; ok && !isBlank(v) {
			return v
		}
	}
	return nil
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case *string:
		return t == nil || strings.TrimSpace(*t) == ""
	default:
		return false
	}
}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Sheet is one worksheet with its ordered headers and non-blank data rows.
type Sheet struct {
	Name    string
	Format  Format
	Headers []string
	Rows    []Row
}

// Format identifies the container the bytes were read from.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
	FormatCSV  Format = "csv"
)

// emptyHeader is the label given to columns without header text.
const emptyHeader = "__EMPTY"

var (
	ErrEmptyWorkbook = errors.New("workbook has no readable rows")
	ErrUnreadable    = errors.New("workbook could not be read")
)

var (
	zipMagic = []byte{0x50, 0x4B, 0x03, 0x04}
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// DetectFormat sniffs the container from its magic bytes, falling back to the file extension.
func DetectFormat(data []byte, filename string) Format {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return FormatXLSX
	case bytes.HasPrefix(data, oleMagic):
		return FormatXLS
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	case ".xls":
		return FormatXLS
	}
	return FormatCSV
}

// Read parses a workbook and returns its first sheet holding data rows. When no sheet has data rows
// the first sheet with a header row is returned with no rows.
func Read(data []byte, filename string) (*Sheet, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyWorkbook
	}

	format := DetectFormat(data, filename)

	var (
		matrices []namedMatrix
		err      error
	)
	switch format {
	case FormatXLSX:
		matrices, err = readXLSX(data)
	case FormatXLS:
		matrices, err = readXLS(data)
	default:
		matrices, err = readCSV(data)
	}
	if err != nil {
		if errors.Is(err, ErrEmptyWorkbook) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, format, err)
	}

	var headerOnly *Sheet
	for _, m := range matrices {
		s, ok := FromMatrix(m.name, m.rows)
		if !ok {
			continue
		}
		s.Format = format
		if len(s.Rows) > 0 {
			return s, nil
		}
		if headerOnly == nil {
			headerOnly = s
		}
	}

	if headerOnly != nil {
		return headerOnly, nil
	}
	return nil, ErrEmptyWorkbook
}

type namedMatrix struct {
	name string
	rows [][]string
}

// FromMatrix turns a cell matrix into a Sheet. The first non-blank line is the header row; blank
// lines are dropped. Returns false when the matrix holds no header row at all.
func FromMatrix(name string, matrix [][]string) (*Sheet, bool) {
	start := -1
	for i, line := range matrix {
		if !isBlank(line) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, false
	}

	width := 0
	for _, line := range matrix[start:] {
		width = max(width, len(line))
	}

	headers := uniqueHeaders(matrix[start], width)
	s := &Sheet{Name: name, Headers: headers}

	for _, line := range matrix[start+1:] {
		if isBlank(line) {
			continue
		}
		row := make(Row, len(headers))
		for i, h := range headers {
			if i < len(line) && strings.TrimSpace(line[i]) != "" {
				row[h] = line[i]
			} else {
				row[h] = nil
			}
		}
		s.Rows = append(s.Rows, row)
	}
	return s, true
}

// uniqueHeaders labels blank headers __EMPTY, __EMPTY_1... and suffixes repeats with _1, _2...
func uniqueHeaders(line []string, width int) []string {
	headers := make([]string, width)
	seen := make(map[string]int, width)

	for i := range width {
		h := ""
		if i < len(line) {
			h = strings.TrimSpace(line[i])
		}
		if h == "" {
			h = emptyHeader
		}

		label := h
		if n, dup := seen[h]; dup {
			label = fmt.Sprintf("%s_%d", h, n)
			for {
				if _, taken := seen[label]; !taken {
					break
				}
				n++
				label = fmt.Sprintf("%s_%d", h, n)
			}
			seen[h] = n + 1
		} else {
			seen[h] = 1
		}
		seen[label] = max(seen[label], 1)
		headers[i] = label
	}
	return headers
}

func isBlank(line []string) bool {
	for _, c := range line {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
