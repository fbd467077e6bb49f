// Package export renders attendance sheets and reports as downloadable files.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attendance"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var ErrUnknownFormat = errors.New("unknown export format, expected csv, json or xlsx")

// ParseFormat defaults to csv.
func ParseFormat(s string) (Format, error) {
	switch f := Format(core.CleanString(s, true)); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatJSON, FormatXLSX:
		return f, nil
	}
	return "", ErrUnknownFormat
}

func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// AttendanceRow is one line of an attendance export.
type AttendanceRow struct {
	RecordID   int      `json:"id,omitempty"`
	StudentID  int      `json:"studentId"`
	Name       string   `json:"name"`
	RollNumber string   `json:"rollNumber,omitempty"`
	ClassID    int      `json:"classId"`
	Date       core.Day `json:"date"`
	IsAbsent   bool     `json:"isAbsent"`
	IsExcused  bool     `json:"isExcused"`
}

func (r AttendanceRow) Status() string {
	switch {
	case r.IsAbsent && r.IsExcused:
		return "excused"
	case r.IsAbsent:
		return "absent"
	}
	return "present"
}

// SheetRows flattens a sheet, keeping roster order.
func SheetRows(sheet *attendance.Sheet) []AttendanceRow {
	rows := make([]AttendanceRow, 0, len(sheet.Entries))
	for _, e := range sheet.Entries {
		if e.StudentID <= 0 {
			continue
		}
		rows = append(rows, AttendanceRow{
			RecordID:   e.RecordID,
			StudentID:  e.StudentID,
			Name:       e.Name,
			RollNumber: e.RollNumber,
			ClassID:    sheet.ClassID,
			Date:       sheet.Day,
			IsAbsent:   e.IsAbsent,
			IsExcused:  e.IsExcused,
		})
	}
	return rows
}

// AttendanceFilename is the download name of a class/day export.
func AttendanceFilename(classID int, day core.Day, f Format) string {
	return fmt.Sprintf("attendance-class%d-%s.%s", classID, day.Key(), f)
}

// WriteAttendance renders rows in format f.
func WriteAttendance(w io.Writer, f Format, rows []AttendanceRow) error {
	switch f {
	case FormatCSV:
		return AttendanceCSV(w, rows)
	case FormatJSON:
		return AttendanceJSON(w, rows)
	case FormatXLSX:
		return AttendanceXLSX(w, rows)
	}
	return ErrUnknownFormat
}

func boolCell(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func parseBoolCell(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y":
		return true, nil
	case "false", "0", "no", "n", "":
		return false, nil
	}
	return false, errors.Errorf("invalid boolean %q", s)
}
