package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attendance"
	"github.com/trezcool/darasa/core/auth"
	"github.com/trezcool/darasa/core/roster"
	apiclient "github.com/trezcool/darasa/services/api"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp    = errors.New("help provided")
	errNoToken = errors.New("no API token: run `admin login` then pass -token or set <ENV>_API_TOKEN")
)

type commandLine struct {
	conf       *core.Config
	out        io.Writer
	auth       *auth.Service
	reconciler *attendance.Reconciler
	importer   *roster.Importer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  login -username USERNAME                                        - log in and print the API token")
	fmt.Fprintln(cli.out, "  detect -file FILE                                               - show the name column of a spreadsheet")
	fmt.Fprintln(cli.out, "  import -class ID -file FILE [-server]                           - create the students listed in FILE")
	fmt.Fprintln(cli.out, "  mark -class ID [-date YYYY-MM-DD] -file FILE                    - mark absent the students listed in FILE")
	fmt.Fprintln(cli.out, "  export -class ID [-date YYYY-MM-DD] -format csv|json|xlsx -out PATH - export the attendance of a day")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return errHelp
		}
		return err
	}
	return nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	loginCmd := cli.newFlagSet("login")
	loginUname := loginCmd.String("username", "", "The staff username. The password will be prompted next.")

	detectCmd := cli.newFlagSet("detect")
	detectFile := detectCmd.String("file", "", "A .xlsx, .xls, .csv or .txt file.")

	importCmd := cli.newFlagSet("import")
	importClass := importCmd.Int("class", 0, "The class the students join.")
	importFile := importCmd.String("file", "", "A spreadsheet or a name list.")
	importServer := importCmd.Bool("server", false, "Send the whole list to the server import endpoint.")
	importToken := importCmd.String("token", cli.conf.API.Token, "The API token.")

	markCmd := cli.newFlagSet("mark")
	markClass := markCmd.Int("class", 0, "The class.")
	markDate := markCmd.String("date", "", "The day (defaults to today).")
	markFile := markCmd.String("file", "", "The list of absent students.")
	markToken := markCmd.String("token", cli.conf.API.Token, "The API token.")

	exportCmd := cli.newFlagSet("export")
	exportClass := exportCmd.Int("class", 0, "The class.")
	exportDate := exportCmd.String("date", "", "The day (defaults to today).")
	exportFormat := exportCmd.String("format", "csv", "csv, json or xlsx.")
	exportOut := exportCmd.String("out", "", "The output file (defaults to a name derived from class, day and format).")
	exportToken := exportCmd.String("token", cli.conf.API.Token, "The API token.")

	switch args[1] {
	case "login":
		if err := parse(loginCmd, args[2:]); err != nil {
			return err
		}
		if *loginUname == "" {
			loginCmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(int(os.Stdin.Fd()))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			loginCmd.Usage()
			return errHelp
		}
		return cli.login(*loginUname, string(pwd))

	case "detect":
		if err := parse(detectCmd, args[2:]); err != nil {
			return err
		}
		if *detectFile == "" {
			detectCmd.Usage()
			return errHelp
		}
		return cli.detect(*detectFile)

	case "import":
		if err := parse(importCmd, args[2:]); err != nil {
			return err
		}
		if *importClass <= 0 || *importFile == "" {
			importCmd.Usage()
			return errHelp
		}
		ctx, err := withToken(*importToken)
		if err != nil {
			return err
		}
		return cli.importStudents(ctx, *importClass, *importFile, *importServer)

	case "mark":
		if err := parse(markCmd, args[2:]); err != nil {
			return err
		}
		if *markClass <= 0 || *markFile == "" {
			markCmd.Usage()
			return errHelp
		}
		day, err := parseDay(*markDate)
		if err != nil {
			return err
		}
		ctx, err := withToken(*markToken)
		if err != nil {
			return err
		}
		return cli.mark(ctx, *markClass, day, *markFile)

	case "export":
		if err := parse(exportCmd, args[2:]); err != nil {
			return err
		}
		if *exportClass <= 0 {
			exportCmd.Usage()
			return errHelp
		}
		day, err := parseDay(*exportDate)
		if err != nil {
			return err
		}
		ctx, err := withToken(*exportToken)
		if err != nil {
			return err
		}
		return cli.export(ctx, *exportClass, day, *exportFormat, *exportOut)

	default:
		cli.printUsage()
		return errHelp
	}
}

func withToken(token string) (context.Context, error) {
	if token = strings.TrimSpace(token); token == "" {
		return nil, errNoToken
	}
	return apiclient.WithToken(context.Background(), token), nil
}

func parseDay(s string) (core.Day, error) {
	if s == "" {
		return core.Today(), nil
	}
	return core.ParseDay(s)
}

// readNames reads the names of a spreadsheet, or of a pasted list for any other extension.
func readNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xls", ".xlsx", ".xlsm":
		rows, err := roster.ReadSpreadsheet(f, path)
		if err != nil {
			return nil, err
		}
		ext, err := roster.ExtractNames(rows)
		if err != nil {
			return nil, err
		}
		return ext.Names, nil
	}
	return roster.ParseNames(f)
}
