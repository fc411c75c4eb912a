package sheet

import (
	"bytes"
	"fmt"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
)

// readXLSX returns every worksheet in workbook order with formatted cell text.
func readXLSX(data []byte) ([]namedMatrix, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer f.Close()

	var out []namedMatrix
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %q: %w", name, err)
		}
		out = append(out, namedMatrix{name: name, rows: rows})
	}
	return out, nil
}

// readXLS reads legacy BIFF workbooks. Date cells come back as Excel serials, which the normalizer
// understands.
func readXLS(data []byte) ([]namedMatrix, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open xls: %w", err)
	}

	var out []namedMatrix
	for _, ws := range wb.GetSheets() {
		var rows [][]string
		for _, row := range ws.GetRows() {
			var cells []string
			for _, cell := range row.GetCols() {
				cells = append(cells, cell.GetString())
			}
			rows = append(rows, cells)
		}
		out = append(out, namedMatrix{name: ws.GetName(), rows: rows})
	}
	return out, nil
}
