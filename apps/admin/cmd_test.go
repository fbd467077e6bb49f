package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/export"
	apiclient "github.com/trezcool/darasa/services/api"
	"github.com/trezcool/darasa/tests"
)

const backendToken = "backend-token"

var day = core.MustParseDay("2025-03-03")

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func setup(t *testing.T) (*commandLine, *testutil.Backend, *bytes.Buffer) {
	b := testutil.NewBackend(t)
	b.Token = backendToken
	b.Users["mwalimu"] = "siri"

	conf := &core.Config{AppName: "Darasa", Env: "TEST", TestMode: true, API: core.APIConfig{Token: backendToken, CreateConcurrency: 2, BatchSize: 2}}
	api, err := apiclient.New(b.URL())
	require.NoError(t, err)

	var out bytes.Buffer
	cli := newCommandLine(conf, testutil.NewLogger(), api)
	cli.out = &out
	return cli, b, &out
}

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runCLI(cli *commandLine, args ...string) error {
	return cli.run(append([]string{"admin"}, args...))
}

func Test_commandLine_help(t *testing.T) {
	cli, _, _ := setup(t)
	readPasswordFunc = func(fd int) ([]byte, error) { return nil, nil }

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "login without username", args: []string{"login"}, wantErr: errHelp},
		{name: "login without password", args: []string{"login", "-username", "mwalimu"}, wantErr: errHelp},
		{name: "detect without file", args: []string{"detect"}, wantErr: errHelp},
		{name: "import without class", args: []string{"import", "-file", "names.txt"}, wantErr: errHelp},
		{name: "mark without file", args: []string{"mark", "-class", "1"}, wantErr: errHelp},
		{name: "export without class", args: []string{"export"}, wantErr: errHelp},
		{name: "help flag", args: []string{"export", "-h"}, wantErr: errHelp},
		{name: "bad flag", args: []string{"import", "-class", "six"}, wantErrStr: `invalid value "six" for flag -class: parse error`},
		{name: "bad date", args: []string{"mark", "-class", "1", "-file", "x.txt", "-date", "03/03/2025"}, wantErrStr: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runCLI(cli, tt.args...)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Equal(t, tt.wantErrStr, err.Error())
			default:
				assert.Error(t, err)
			}
		})
	}
}

func Test_commandLine_login(t *testing.T) {
	cli, b, out := setup(t)

	readPasswordFunc = func(fd int) ([]byte, error) { return []byte("wrong"), nil }
	assert.Error(t, runCLI(cli, "login", "-username", "mwalimu"))

	out.Reset()
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte("siri"), nil }
	require.NoError(t, runCLI(cli, "login", "-username", "mwalimu"))
	assert.Contains(t, out.String(), "logged in as mwalimu")
	assert.Contains(t, out.String(), "TEST_API_TOKEN="+backendToken)
	assert.Equal(t, 2, b.Calls("POST /Auth/login"))
}

func Test_commandLine_detect(t *testing.T) {
	cli, _, out := setup(t)
	path := writeFile(t, "class.csv", "N°,Nom complet,Sexe\n1,Amani Juma,F\n2,Baraka Kito,M\n3,Chausiku Mwamba,F\n")

	require.NoError(t, runCLI(cli, "detect", "-file", path))
	assert.Contains(t, out.String(), "column: 1\n")
	assert.Contains(t, out.String(), `header: "Nom complet"`)
	assert.Contains(t, out.String(), "names: 3\n")
	assert.Contains(t, out.String(), "2. Baraka Kito")

	assert.Error(t, runCLI(cli, "detect", "-file", filepath.Join(t.TempDir(), "missing.csv")))
}

func Test_commandLine_import(t *testing.T) {
	cli, b, out := setup(t)
	cls, _ := b.Roster(t, "6A", "Amani Juma")
	path := writeFile(t, "names.txt", "1. Amani Juma\n2. Baraka Kito\n3) Chausiku Mwamba\n")
	class := strconv.Itoa(cls.ID)

	require.NoError(t, runCLI(cli, "import", "-class", class, "-file", path))
	assert.Contains(t, out.String(), "2 created, 1 already enrolled, 0 failed")
	assert.Len(t, b.Students(), 3)
	assert.Equal(t, 2, b.Calls("POST /Student"))

	other := b.AddClass(testutil.Class{ClassName: "6B"})
	out.Reset()
	require.NoError(t, runCLI(cli, "import", "-class", strconv.Itoa(other.ID), "-file", path, "-server"))
	assert.Contains(t, out.String(), "3 created")
	assert.Equal(t, 1, b.Calls("POST /Student/import"))
	assert.Len(t, b.Students(), 6)

	cli.conf.API.Token = ""
	assert.Equal(t, errNoToken, runCLI(cli, "import", "-class", class, "-file", path))
}

func Test_commandLine_mark(t *testing.T) {
	cli, b, out := setup(t)
	cls, students := b.Roster(t, "6A", "Amani Juma", "Baraka Kito", "Chausiku Mwamba")
	path := writeFile(t, "absent.txt", "Kito Baraka\nZawadi Unknown\n")

	// nothing recorded yet: present rows are created first, then updated
	require.NoError(t, runCLI(cli, "mark", "-class", strconv.Itoa(cls.ID), "-date", day.Key(), "-file", path))
	assert.Contains(t, out.String(), `no student matches "Zawadi Unknown"`)
	assert.Contains(t, out.String(), "1 marked absent, 1 unmatched")
	assert.Contains(t, out.String(), "saved: 1 updated, 0 created")

	rows := b.Attendance()
	require.Len(t, rows, 3)
	for _, r := range rows {
		assert.Equal(t, r.StudentID == students[1].ID, r.IsAbsent, "student %d", r.StudentID)
	}
}

func Test_commandLine_export(t *testing.T) {
	cli, b, out := setup(t)
	cls, students := b.Roster(t, "6A", "Amani Juma", "Baraka Kito")
	for i, s := range students {
		b.AddAttendance(testutil.Attendance{StudentID: s.ID, ClassID: cls.ID, Date: day.Key(), IsAbsent: i == 1})
	}
	class := strconv.Itoa(cls.ID)
	dest := filepath.Join(t.TempDir(), "6a.csv")

	require.NoError(t, runCLI(cli, "export", "-class", class, "-date", day.Key(), "-out", dest))
	assert.Contains(t, out.String(), "2 rows written to "+dest)

	f, err := os.Open(dest)
	require.NoError(t, err)
	defer f.Close()
	rows, err := export.ReadAttendanceCSV(f)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Baraka Kito", rows[1].Name)
	assert.True(t, rows[1].IsAbsent)
	assert.False(t, rows[0].IsAbsent)

	dest = filepath.Join(t.TempDir(), "6a.json")
	require.NoError(t, runCLI(cli, "export", "-class", class, "-date", day.Key(), "-format", "json", "-out", dest))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name": "Amani Juma"`)

	assert.Equal(t, export.ErrUnknownFormat, runCLI(cli, "export", "-class", class, "-format", "pdf"))
	assert.Equal(t, 0, b.Writes("/Attendance"))
}
