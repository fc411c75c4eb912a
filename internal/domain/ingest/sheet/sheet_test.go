package sheet

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, sheets map[string][][]any, order ...string) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, name := range order {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestRead_XLSXFirstSheetWithData(t *testing.T) {
	data := buildWorkbook(t, map[string][][]any{
		"Portada": {},
		"Export": {
			{"Socio", "Fecha de registro", "Hora", "Bruto", "Producto"},
			{"Ana Ruiz", "01/03/2024", "10:15", "1,200.00", "Yoga Mensual"},
			{},
			{"Luis Pérez", "02/03/2024", "18:00", "450", "Clase suelta"},
		},
	}, "Portada", "Export")

	s, err := Read(data, "reporte.xlsx")
	require.NoError(t, err)

	assert.Equal(t, "Export", s.Name)
	assert.Equal(t, FormatXLSX, s.Format)
	assert.Equal(t, []string{"Socio", "Fecha de registro", "Hora", "Bruto", "Producto"}, s.Headers)
	require.Len(t, s.Rows, 2)
	assert.Equal(t, "Ana Ruiz", s.Rows[0]["Socio"])
	assert.Equal(t, "1,200.00", s.Rows[0]["Bruto"])
	assert.Equal(t, "Luis Pérez", s.Rows[1]["Socio"])
}

func TestRead_XLSXHeaderOnly(t *testing.T) {
	data := buildWorkbook(t, map[string][][]any{
		"Export": {{"Producto", "Precio", "Tipo"}},
	}, "Export")

	s, err := Read(data, "productos.xlsx")
	require.NoError(t, err)
	assert.Equal(t, []string{"Producto", "Precio", "Tipo"}, s.Headers)
	assert.Empty(t, s.Rows)
}

func TestRead_EmptyWorkbook(t *testing.T) {
	data := buildWorkbook(t, map[string][][]any{"Export": {}}, "Export")

	_, err := Read(data, "vacio.xlsx")
	assert.ErrorIs(t, err, ErrEmptyWorkbook)

	_, err = Read(nil, "nada.csv")
	assert.ErrorIs(t, err, ErrEmptyWorkbook)
}

func TestRead_Unreadable(t *testing.T) {
	corrupt := append([]byte{0x50, 0x4B, 0x03, 0x04}, []byte("not really a zip archive")...)

	_, err := Read(corrupt, "reporte.xlsx")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnreadable), "expected ErrUnreadable, got %v", err)

	_, err = Read([]byte{0x01, 0x00, 0x02}, "blob.bin")
	assert.ErrorIs(t, err, ErrUnreadable)
}

func TestRead_CSVWithPreamble(t *testing.T) {
	data := []byte("Exportado el;19/10/2026\n" +
		"\n" +
		"Nombre;Apellidos;Fecha registro;Total;Concepto;Método de pago\n" +
		"Ana;Ruiz;2024-03-01 10:15;1200.00;Yoga Mensual;Tarjeta\n")

	s, err := Read(data, "historico.csv")
	require.NoError(t, err)

	assert.Equal(t, FormatCSV, s.Format)
	assert.Equal(t, []string{"Nombre", "Apellidos", "Fecha registro", "Total", "Concepto", "Método de pago"}, s.Headers)
	require.Len(t, s.Rows, 1)
	assert.Equal(t, "Tarjeta", s.Rows[0]["Método de pago"])
}

func TestRead_CSVWindows1252(t *testing.T) {
	// "Método" encoded as Windows-1252
	data := []byte("Socio,M\xe9todo de pago,Bruto\nAna Ruiz,Tarjeta,10\n")

	s, err := Read(data, "pagos.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"Socio", "Método de pago", "Bruto"}, s.Headers)
}

func TestFromMatrix_HeaderLabels(t *testing.T) {
	s, ok := FromMatrix("x", [][]string{
		{"", "Nombre", "Nombre", "", "Nombre"},
		{"img.png", "Ana", "Ruiz", "", "A"},
		{"  ", "", ""},
	})
	require.True(t, ok)

	assert.Equal(t, []string{"__EMPTY", "Nombre", "Nombre_1", "__EMPTY_1", "Nombre_2"}, s.Headers)
	require.Len(t, s.Rows, 1)
	assert.Equal(t, "Ruiz", s.Rows[0]["Nombre_1"])
	assert.Nil(t, s.Rows[0]["__EMPTY_1"])
}

func TestFromMatrix_ShortRowsPadWithNil(t *testing.T) {
	s, ok := FromMatrix("x", [][]string{
		{"A", "B", "C"},
		{"1"},
	})
	require.True(t, ok)
	require.Len(t, s.Rows, 1)

	v, present := s.Rows[0]["C"]
	assert.True(t, present)
	assert.Nil(t, v)
}

func TestFromMatrix_Blank(t *testing.T) {
	_, ok := FromMatrix("x", [][]string{{"", " "}, {}})
	assert.False(t, ok)
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatXLSX, DetectFormat([]byte{0x50, 0x4B, 0x03, 0x04, 0x00}, "a.csv"))
	assert.Equal(t, FormatXLS, DetectFormat([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, "a"))
	assert.Equal(t, FormatXLS, DetectFormat([]byte("x"), "Reporte.XLS"))
	assert.Equal(t, FormatCSV, DetectFormat([]byte("a,b"), "pagos.csv"))
}

func TestDetectLayout(t *testing.T) {
	layout, ok := detectLayout([]string{"Generado: hoy", "Socio,Fecha de registro,Bruto", "Ana,01/03/2024,10"})
	require.True(t, ok)
	assert.Equal(t, ',', layout.Delimiter)
	assert.Equal(t, 1, layout.SkipLines)

	layout, ok = detectLayout([]string{"", "a|b", "1|2"})
	require.True(t, ok)
	assert.Equal(t, '|', layout.Delimiter)
	assert.Equal(t, 1, layout.SkipLines)

	_, ok = detectLayout([]string{"", "  "})
	assert.False(t, ok)
}

func TestRow_FirstSkipsBlankValues(t *testing.T) {
	empty := "  "
	row := Row{
		"método de pago": "",
		"Método de pago": &empty,
		"Metodo de Pago": "tarjeta",
		"Cantidad":       0.0,
	}

	assert.Equal(t, "tarjeta", row.First("método de pago", "Método de pago", "Metodo de Pago"))
	assert.Equal(t, 0.0, row.First("Cantidad"))
	assert.Nil(t, row.First("método de pago", "missing"))
}
