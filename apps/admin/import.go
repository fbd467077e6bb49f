package main

import (
	"context"
	"fmt"

	"github.com/trezcool/darasa/core"
)

func (cli *commandLine) importStudents(ctx context.Context, classID int, path string, useServer bool) error {
	names, err := readNames(path)
	if err != nil {
		return err
	}

	rep, err := cli.importer.ImportNames(ctx, classID, names, useServer)
	fmt.Fprintf(cli.out, "class %d: %d created, %d already enrolled, %d failed\n",
		classID, len(rep.Created), len(rep.Skipped), len(rep.Failures))
	for _, f := range rep.Failures {
		fmt.Fprintf(cli.out, "  %s: %s\n", f.Key, f.Err)
	}

	if _, ok := core.AsBatchError(err); ok {
		return nil // already reported
	}
	return err
}
