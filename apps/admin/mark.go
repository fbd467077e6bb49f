package main

import (
	"context"
	"fmt"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attendance"
)

// mark marks absent the students named in path and saves the sheet.
func (cli *commandLine) mark(ctx context.Context, classID int, day core.Day, path string) error {
	names, err := readNames(path)
	if err != nil {
		return err
	}

	sheet, err := cli.reconciler.Load(ctx, classID, day)
	if err != nil {
		return err
	}
	if sheet.Initializing {
		// present rows are being created: work on them rather than creating duplicates
		cli.reconciler.Wait()
		if sheet, err = cli.reconciler.Load(ctx, classID, day); err != nil {
			return err
		}
	}

	match := attendance.MatchNames(sheet, names)
	for _, name := range match.Unmatched {
		fmt.Fprintf(cli.out, "  no student matches %q\n", name)
	}

	res, err := cli.reconciler.Save(ctx, sheet)
	if _, partial := core.AsBatchError(err); err != nil && !partial {
		return err
	}
	present, absent, excused := sheet.Counts()
	fmt.Fprintf(cli.out, "class %d on %s: %d marked absent, %d unmatched\n", classID, day, len(match.Marked), len(match.Unmatched))
	fmt.Fprintf(cli.out, "saved: %d updated, %d created, %d skipped, %d failed\n", res.Updated, res.Created, res.Skipped, res.Failed)
	fmt.Fprintf(cli.out, "present %d, absent %d, excused %d\n", present, absent, excused)
	for _, f := range res.Failures {
		fmt.Fprintf(cli.out, "  %s: %s\n", f.Key, f.Err)
	}
	return nil
}
