package roster

import (
	"bytes"
	"encoding/csv"
	"io"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

const maxXLSRows = 100000

var (
	ErrNoWorksheet  = errors.New("no worksheet found")
	ErrEmptySheet   = errors.New("worksheet is empty")
	ErrNoNameColumn = errors.New("no column looks like a list of names")

	utf8BOM = []byte{0xEF, 0xBB, 0xBF}
)

// ReadSpreadsheet reads the rows of the first worksheet of an .xlsx/.xlsm (or .xls) file, or of a
// CSV/text file for any other extension. Cells are trimmed; blank rows are dropped.
func ReadSpreadsheet(r io.Reader, filename string) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading file")
	}

	var rows [][]string
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xls":
		rows, err = readXLS(data)
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(data)
	default:
		rows, err = readCSV(data)
	}
	if err != nil {
		return nil, err
	}

	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		blank := true
		for i := range row {
			row[i] = strings.TrimSpace(row[i])
			if row[i] != "" {
				blank = false
			}
		}
		if !blank {
			out = append(out, row)
		}
	}
	if len(out) == 0 {
		return nil, ErrEmptySheet
	}
	return out, nil
}

func readXLS(data []byte) ([][]string, error) {
	workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, errors.Wrap(err, "opening xls workbook")
	}
	if workbook.NumSheets() == 0 {
		return nil, ErrNoWorksheet
	}
	return workbook.ReadAllCells(maxXLSRows), nil
}

func readXLSX(data []byte) ([][]string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "opening xlsx workbook")
	}
	defer func() { _ = file.Close() }()

	sheetName := file.GetSheetName(0)
	if sheetName == "" {
		return nil, ErrNoWorksheet
	}
	rows, err := file.GetRows(sheetName)
	return rows, errors.Wrapf(err, "reading sheet %q", sheetName)
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	rdr := csv.NewReader(bytes.NewReader(data))
	rdr.Comma = sniffDelimiter(data)
	rdr.FieldsPerRecord = -1
	rdr.LazyQuotes = true
	rdr.TrimLeadingSpace = true
	rows, err := rdr.ReadAll()
	return rows, errors.Wrap(err, "reading csv")
}

// sniffDelimiter picks the most frequent of tab, semicolon and comma on the first line.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestCount := ',', 0
	for _, d := range []rune{'\t', ';', ','} {
		if n := bytes.Count(line, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// Columns transposes rows into columns; short rows count as empty cells.
func Columns(rows [][]string) [][]string {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	cols := make([][]string, width)
	for c := range cols {
		cols[c] = make([]string, len(rows))
		for r, row := range rows {
			if c < len(row) {
				cols[c][r] = row[c]
			}
		}
	}
	return cols
}

// Extraction is the outcome of ExtractNames.
type Extraction struct {
	Column    int      `json:"column"`
	Header    string   `json:"header,omitempty"`
	HasHeader bool     `json:"hasHeader"`
	Names     []string `json:"names"`
}

// ExtractNames finds the name column of rows and returns its names, without the header row,
// normalized and de-duplicated.
func ExtractNames(rows [][]string) (Extraction, error) {
	if len(rows) == 0 {
		return Extraction{}, ErrEmptySheet
	}

	var headers []string
	data := rows
	if looksLikeHeader(rows[0]) {
		headers = rows[0]
		data = rows[1:]
	}

	col, ok := DetectNameColumn(headers, Columns(data))
	if !ok {
		return Extraction{}, ErrNoNameColumn
	}

	ext := Extraction{Column: col, HasHeader: headers != nil}
	if col < len(headers) {
		ext.Header = headers[col]
	}
	var cells []string
	for _, row := range data {
		if col < len(row) {
			cells = append(cells, row[col])
		}
	}
	ext.Names = cleanNames(cells)
	return ext, nil
}

func looksLikeHeader(row []string) bool {
	for _, cell := range row {
		if isNameHeader(cell) || isOtherHeader(cell) {
			return true
		}
	}
	return false
}
