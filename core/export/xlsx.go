package export

import (
	"io"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

const attendanceSheetName = "Attendance"

// AttendanceXLSX writes rows as a single-sheet workbook with a bold header.
func AttendanceXLSX(w io.Writer, rows []AttendanceRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", attendanceSheetName); err != nil {
		return errors.Wrap(err, "naming sheet")
	}
	header := make([]interface{}, len(attendanceHeader))
	for i, h := range attendanceHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(attendanceSheetName, "A1", &header); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetRowStyle(attendanceSheetName, 1, 1, bold); err != nil {
		return err
	}
	if err := f.SetColWidth(attendanceSheetName, "B", "B", 32); err != nil {
		return err
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		line := []interface{}{r.StudentID, r.Name, r.RollNumber, r.ClassID, r.Date.Key(), r.Status(), r.IsAbsent, r.IsExcused}
		if err := f.SetSheetRow(attendanceSheetName, cell, &line); err != nil {
			return errors.Wrapf(err, "row %d", i+2)
		}
	}
	return f.Write(w)
}
