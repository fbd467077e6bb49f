package main

import (
	"fmt"
	"os"

	"github.com/trezcool/darasa/core/roster"
)

func (cli *commandLine) detect(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := roster.ReadSpreadsheet(f, path)
	if err != nil {
		return err
	}
	ext, err := roster.ExtractNames(rows)
	if err != nil {
		return err
	}

	fmt.Fprintf(cli.out, "column: %d\n", ext.Column)
	if ext.HasHeader {
		fmt.Fprintf(cli.out, "header: %q\n", ext.Header)
	}
	fmt.Fprintf(cli.out, "names: %d\n", len(ext.Names))
	for i, name := range ext.Names {
		fmt.Fprintf(cli.out, "  %d. %s\n", i+1, name)
	}
	return nil
}
