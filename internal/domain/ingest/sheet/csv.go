package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Header keywords seen in the studio exports, matched against lower-cased lines.
var headerKeywords = []string{
	"socio", "fecha", "producto", "concepto", "total", "bruto", "nombre", "apellidos",
	"precio", "evento", "método de pago", "metodo de pago", "email", "estado", "suscripci",
}

var delimiters = []rune{';', '\t', ',', '|'}

var errBinaryContent = errors.New("content is not delimited text")

// csvLayout is the detected shape of a delimited text upload.
type csvLayout struct {
	Delimiter rune
	SkipLines int
}

func readCSV(data []byte) ([]namedMatrix, error) {
	if bytes.IndexByte(data, 0) >= 0 {
		return nil, errBinaryContent
	}

	text, err := decodeText(data)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	layout, ok := detectLayout(lines)
	if !ok {
		return nil, ErrEmptyWorkbook
	}

	reader := csv.NewReader(strings.NewReader(strings.Join(lines[layout.SkipLines:], "\n")))
	reader.Comma = layout.Delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse delimited text: %w", err)
	}
	return []namedMatrix{{name: "csv", rows: rows}}, nil
}

// decodeText strips a UTF-8 BOM and falls back to Windows-1252, the usual encoding of spreadsheet
// "Save as CSV" output on Spanish locales.
func decodeText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xEF\xBB\xBF"))
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("failed to decode text: %w", err)
	}
	return string(decoded), nil
}

// detectLayout locates the header row and its delimiter. A line holding a known header keyword and at
// least three columns wins; otherwise the first non-blank line is taken with its most frequent delimiter.
func detectLayout(lines []string) (csvLayout, bool) {
	for i, line := range lines {
		if i > 20 {
			break
		}

		lower := strings.ToLower(line)
		hasKeyword := false
		for _, kw := range headerKeywords {
			if strings.Contains(lower, kw) {
				hasKeyword = true
				break
			}
		}
		if !hasKeyword {
			continue
		}

		for _, d := range delimiters {
			if strings.Count(line, string(d)) >= 2 {
				return csvLayout{Delimiter: d, SkipLines: i}, true
			}
		}
	}

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		best, bestCount := ',', 0
		for _, d := range delimiters {
			if n := strings.Count(line, string(d)); n > bestCount {
				best, bestCount = d, n
			}
		}
		return csvLayout{Delimiter: best, SkipLines: i}, true
	}

	return csvLayout{}, false
}
