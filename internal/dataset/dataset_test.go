package dataset

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParseJSONKeepsColumnOrder(t *testing.T) {
	text := `[
		{"serial": "SN-1", "name": "alpha", "qty": 3},
		{"serial": "SN-2", "name": "beta", "qty": 1}
	]`

	r, err := Parse(text, nil, FormatJSON, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"serial", "name", "qty"}, r.Columns)
	assert.Equal(t, 2, r.RowCount)
	assert.Equal(t, Row{"serial": "SN-1", "name": "alpha", "qty": "3"}, r.Rows[0])
}

func TestParseJSONNestedFirstObject(t *testing.T) {
	text := `[{"a": {"x": 1}, "b": [1, 2], "c": "v"}]`
	r, err := Parse(text, nil, FormatJSON, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, r.Columns)
}

func TestParseJSONRejectsNonArray(t *testing.T) {
	_, err := Parse(`{"a": 1}`, nil, FormatJSON, "")
	assert.Error(t, err)
}

func TestParseCSVDetectsDelimiter(t *testing.T) {
	for _, tc := range []struct {
		text  string
		delim string
	}{
		{"a\tb\n1\t2", "\t"},
		{"a|b\n1|2", "|"},
		{"a;b\n1;2", ";"},
		{"a,b\n1,2", ","},
		{"single", ","},
	} {
		assert.Equal(t, tc.delim, DetectDelimiter(tc.text), "%q", tc.text)
	}

	r, err := Parse("name;qty\nwidget;4", nil, FormatCSV, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "qty"}, r.Columns)
	assert.Equal(t, Row{"name": "widget", "qty": "4"}, r.Rows[0])
}

func TestParseCSVShortRecordPadsEmpty(t *testing.T) {
	r, err := Parse("a,b,c\n1,2", nil, FormatCSV, "")
	require.NoError(t, err)
	assert.Equal(t, Row{"a": "1", "b": "2", "c": ""}, r.Rows[0])
}

func TestParseDelimitedSingleLine(t *testing.T) {
	r, err := Parse("SN-1, SN-2, SN-3", nil, FormatDelimited, ",")
	require.NoError(t, err)
	assert.Equal(t, []string{"value"}, r.Columns)
	require.Equal(t, 3, r.RowCount)
	assert.Equal(t, Row{"value": "SN-2"}, r.Rows[1])
}

func TestParseDelimitedMultiLineFallsBackToCSV(t *testing.T) {
	r, err := Parse("name|qty\nwidget|4\nsprocket|2", nil, FormatDelimited, "|")
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "qty"}, r.Columns)
	assert.Equal(t, 2, r.RowCount)
}

func TestParseDelimitedRequiresDelimiter(t *testing.T) {
	_, err := Parse("a,b", nil, FormatDelimited, "")
	assert.Error(t, err)
}

func TestParseAutoPrefersJSON(t *testing.T) {
	r, err := Parse(`[{"k": "v"}]`, nil, FormatAuto, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, r.Columns)
}

func TestParseAutoFallsBackToCSV(t *testing.T) {
	r, err := Parse("[broken json\nnot, really", nil, FormatAuto, "")
	require.NoError(t, err)
	assert.Equal(t, 1, r.RowCount)
}

func TestParseUnknownFormat(t *testing.T) {
	_, err := Parse("x", nil, Format("yaml"), "")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestParseExcel(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"serial", "", "qty"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"SN-1", "alpha", 3}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"SN-2", "beta", 1}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	r, err := Parse("", buf.Bytes(), FormatExcel, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"serial", "col_1", "qty"}, r.Columns)
	require.Equal(t, 2, r.RowCount)
	assert.Equal(t, Row{"serial": "SN-1", "col_1": "alpha", "qty": "3"}, r.Rows[0])
}

func TestParseExcelHeaderOnly(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow(f.GetSheetName(0), "A1", &[]any{"only", "header"}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	r, err := Parse("", buf.Bytes(), FormatExcel, "")
	require.NoError(t, err)
	assert.Empty(t, r.Rows)
}
