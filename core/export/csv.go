package export

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/report"
)

var attendanceHeader = []string{"studentId", "name", "rollNumber", "classId", "date", "status", "isAbsent", "isExcused"}

// AttendanceCSV writes a UTF-8 BOM, a header line and one line per row.
// encoding/csv quotes fields holding commas, quotes or line breaks (RFC 4180).
func AttendanceCSV(w io.Writer, rows []AttendanceRow) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(attendanceHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			strconv.Itoa(r.StudentID),
			r.Name,
			r.RollNumber,
			strconv.Itoa(r.ClassID),
			r.Date.Key(),
			r.Status(),
			boolCell(r.IsAbsent),
			boolCell(r.IsExcused),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadAttendanceCSV reads back what AttendanceCSV wrote. Columns are found by header name.
func ReadAttendanceCSV(r io.Reader) ([]AttendanceRow, error) {
	br := bufio.NewReader(r)
	if lead, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(lead, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading header")
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	for _, required := range []string{"studentId", "isAbsent"} {
		if _, ok := col[required]; !ok {
			return nil, errors.Errorf("missing %q column", required)
		}
	}
	get := func(rec []string, name string) string {
		if i, ok := col[name]; ok && i < len(rec) {
			return rec[i]
		}
		return ""
	}

	var rows []AttendanceRow
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		var row AttendanceRow
		if row.StudentID, err = strconv.Atoi(strings.TrimSpace(get(rec, "studentId"))); err != nil {
			return nil, errors.Wrapf(err, "line %d: studentId", line)
		}
		if s := strings.TrimSpace(get(rec, "classId")); s != "" {
			if row.ClassID, err = strconv.Atoi(s); err != nil {
				return nil, errors.Wrapf(err, "line %d: classId", line)
			}
		}
		if s := get(rec, "date"); strings.TrimSpace(s) != "" {
			if row.Date, err = core.ParseDay(s); err != nil {
				return nil, errors.Wrapf(err, "line %d: date", line)
			}
		}
		if row.IsAbsent, err = parseBoolCell(get(rec, "isAbsent")); err != nil {
			return nil, errors.Wrapf(err, "line %d: isAbsent", line)
		}
		if row.IsExcused, err = parseBoolCell(get(rec, "isExcused")); err != nil {
			return nil, errors.Wrapf(err, "line %d: isExcused", line)
		}
		row.Name = get(rec, "name")
		row.RollNumber = get(rec, "rollNumber")
		rows = append(rows, row)
	}
	return rows, nil
}

func AttendanceJSON(w io.Writer, rows []AttendanceRow) error {
	if rows == nil {
		rows = []AttendanceRow{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

var reportsHeader = []string{"id", "reportType", "generatedAt", "reportData"}

// ReportsCSV writes reports the same way as AttendanceCSV (BOM, header, RFC 4180).
func ReportsCSV(w io.Writer, reports []report.Report) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(reportsHeader); err != nil {
		return err
	}
	for _, r := range reports {
		generated := ""
		if !r.GeneratedAt.IsZero() {
			generated = r.GeneratedAt.Format("2006-01-02T15:04:05Z07:00")
		}
		if err := cw.Write([]string{strconv.Itoa(r.ID), r.ReportType, generated, r.ReportData}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type reportJSON struct {
	ID          int         `json:"id"`
	ReportType  string      `json:"reportType"`
	GeneratedAt core.Time   `json:"generatedAt"`
	ReportData  interface{} `json:"reportData"`
}

// ReportsJSON writes reports with reportData inlined when it holds JSON.
func ReportsJSON(w io.Writer, reports []report.Report) error {
	out := make([]reportJSON, 0, len(reports))
	for _, r := range reports {
		out = append(out, reportJSON{ID: r.ID, ReportType: r.ReportType, GeneratedAt: r.GeneratedAt, ReportData: r.DataValue()})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// WriteReports renders reports as csv or json.
func WriteReports(w io.Writer, f Format, reports []report.Report) error {
	switch f {
	case FormatCSV:
		return ReportsCSV(w, reports)
	case FormatJSON:
		return ReportsJSON(w, reports)
	}
	return ErrUnknownFormat
}
