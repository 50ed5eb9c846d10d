// Package dataset parses tabular input (JSON, CSV, delimited text or an
// Excel workbook) into the string rows that drive batch label printing.
package dataset

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

type Format string

const (
	FormatAuto      Format = "auto"
	FormatJSON      Format = "json"
	FormatCSV       Format = "csv"
	FormatDelimited Format = "delimited"
	FormatExcel     Format = "excel"
)

var ErrUnknownFormat = errors.New("unknown data format")

// Row is one record keyed by column name.
type Row map[string]string

// Result carries the parsed rows plus the column order, which maps lose.
type Result struct {
	Columns  []string `json:"columns"`
	Rows     []Row    `json:"data"`
	RowCount int      `json:"row_count"`
}

// Parse is the unified entry point. Excel input needs fileBytes; everything
// else parses text. Auto tries JSON for array-shaped input, then CSV with
// delimiter detection.
func Parse(text string, fileBytes []byte, format Format, delimiter string) (*Result, error) {
	switch format {
	case FormatExcel:
		return parseExcel(fileBytes)
	case FormatJSON:
		return parseJSON(text)
	case FormatCSV:
		return parseCSV(text, delimiter)
	case FormatDelimited:
		if delimiter == "" {
			return nil, errors.New("delimiter required for delimited format")
		}
		return parseDelimited(text, delimiter)
	case FormatAuto, "":
		trimmed := strings.TrimSpace(text)
		if strings.HasPrefix(trimmed, "[") {
			if r, err := parseJSON(trimmed); err == nil {
				return r, nil
			}
		}
		return parseCSV(trimmed, delimiter)
	default:
		return nil, fmt.Errorf("%q: %w", format, ErrUnknownFormat)
	}
}

// parseJSON accepts an array of flat objects. Column order follows the
// first object's key order in the document, which the decoder's token
// stream preserves even though maps don't.
func parseJSON(text string) (*Result, error) {
	var raw []map[string]any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("JSON input must be an array of objects:\n%w", err)
	}

	rows := make([]Row, 0, len(raw))
	for _, obj := range raw {
		row := Row{}
		for k, v := range obj {
			row[k] = stringify(v)
		}
		rows = append(rows, row)
	}

	columns, err := firstObjectKeys(text)
	if err != nil {
		return nil, err
	}
	return &Result{Columns: columns, Rows: rows, RowCount: len(rows)}, nil
}

// firstObjectKeys walks the token stream of the first object in a JSON
// array to recover its key order.
func firstObjectKeys(text string) ([]string, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	if _, err := dec.Token(); err != nil { // [
		return nil, err
	}
	if !dec.More() {
		return []string{}, nil
	}
	if _, err := dec.Token(); err != nil { // {
		return nil, err
	}

	var keys []string
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case json.Delim:
			switch t {
			case '{', '[':
				depth++
			case '}', ']':
				if depth == 0 {
					return keys, nil
				}
				depth--
			}
		case string:
			if depth == 0 {
				keys = append(keys, t)
				// Skip the value; compound values adjust depth via
				// their own delims.
				if err := skipValue(dec); err != nil {
					return nil, err
				}
			}
		}
	}
}

func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); ok && (d == '{' || d == '[') {
		depth := 1
		for depth > 0 {
			tok, err := dec.Token()
			if err != nil {
				return err
			}
			if d, ok := tok.(json.Delim); ok {
				if d == '{' || d == '[' {
					depth++
				} else {
					depth--
				}
			}
		}
	}
	return nil
}

// DetectDelimiter guesses the separator from the first line, preferring
// the less ambiguous candidates.
func DetectDelimiter(text string) string {
	firstLine, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	for _, d := range []string{"\t", "|", ";", ","} {
		if strings.Contains(firstLine, d) {
			return d
		}
	}
	return ","
}

func parseCSV(text, delimiter string) (*Result, error) {
	if delimiter == "" {
		delimiter = DetectDelimiter(text)
	}
	r := csv.NewReader(strings.NewReader(strings.TrimSpace(text)))
	r.Comma = rune(delimiter[0])
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("Couldn't parse CSV:\n%w", err)
	}
	if len(records) == 0 {
		return &Result{Columns: []string{}, Rows: []Row{}}, nil
	}

	columns := records[0]
	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := Row{}
		for i, col := range columns {
			if i < len(rec) {
				row[col] = rec[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}
	return &Result{Columns: columns, Rows: rows, RowCount: len(rows)}, nil
}

// parseDelimited treats a single input line as a list of values, one label
// row each; multi-line input falls back to CSV with a header line.
func parseDelimited(text, delimiter string) (*Result, error) {
	var lines []string
	for _, l := range strings.Split(strings.TrimSpace(text), "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return &Result{Columns: []string{}, Rows: []Row{}}, nil
	}
	if len(lines) > 1 {
		return parseCSV(text, delimiter)
	}

	rows := []Row{}
	for _, v := range strings.Split(lines[0], delimiter) {
		v = strings.TrimSpace(v)
		if v != "" {
			rows = append(rows, Row{"value": v})
		}
	}
	return &Result{Columns: []string{"value"}, Rows: rows, RowCount: len(rows)}, nil
}

// parseExcel reads the first sheet of a workbook: first row is the header,
// empty header cells become col_N.
func parseExcel(fileBytes []byte) (*Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(fileBytes))
	if err != nil {
		return nil, fmt.Errorf("Couldn't open workbook:\n%w", err)
	}
	defer f.Close()

	records, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("Couldn't read worksheet:\n%w", err)
	}
	if len(records) < 2 {
		return &Result{Columns: []string{}, Rows: []Row{}}, nil
	}

	columns := make([]string, len(records[0]))
	for i, h := range records[0] {
		if h == "" {
			h = fmt.Sprintf("col_%d", i)
		}
		columns[i] = h
	}

	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := Row{}
		for i, col := range columns {
			if i < len(rec) {
				row[col] = rec[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}
	return &Result{Columns: columns, Rows: rows, RowCount: len(rows)}, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case float64:
		// JSON numbers print without a trailing .0 when integral.
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
