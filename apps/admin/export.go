package main

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/export"
)

func (cli *commandLine) export(ctx context.Context, classID int, day core.Day, format, out string) error {
	f, err := export.ParseFormat(format)
	if err != nil {
		return err
	}
	sheet, err := cli.reconciler.Load(ctx, classID, day)
	if err != nil {
		return err
	}
	rows := export.SheetRows(sheet)

	var buf bytes.Buffer
	if err := export.WriteAttendance(&buf, f, rows); err != nil {
		return err
	}
	if out == "" {
		out = export.AttendanceFilename(classID, day, f)
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d rows written to %s\n", len(rows), out)
	return nil
}
