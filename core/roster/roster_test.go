package roster

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/student"
)

func TestMatchKey(t *testing.T) {
	tests := []struct {
		a, b string
	}{
		{a: "  José   Müller ", b: "jose muller"},
		{a: "Jean-Pierre", b: "jean pierre"},
		{a: "مُحَمَّد", b: "محمد"},
		{a: "محـــمد", b: "محمد"},
		{a: "أحمد", b: "احمد"},
		{a: "فاطمة", b: "فاطمه"},
	}
	for _, tt := range tests {
		t.Run(tt.b, func(t *testing.T) {
			assert.Equal(t, MatchKey(tt.b), MatchKey(tt.a))
		})
	}
	assert.Equal(t, "Amina Diallo", NormalizeName(" Amina\t Diallo\n"))
}

func TestParseNames(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "one per line with numbering and quotes",
			in:   "\ufeff1. Ada Lovelace\n2) \"Ben Ali\"\n\n  3 - Chloé Martin  \n",
			want: []string{"Ada Lovelace", "Ben Ali", "Chloé Martin"},
		},
		{
			name: "duplicates by match key",
			in:   "Ada Lovelace\nada  lovelace\nADA LOVELACE\nBen",
			want: []string{"Ada Lovelace", "Ben"},
		},
		{
			name: "csv with header",
			in:   "No,Name,Class\n1,Ada Lovelace,5A\n2,Ben Ali,5A\n",
			want: []string{"Ada Lovelace", "Ben Ali"},
		},
		{
			name: "csv without header, semicolons",
			in:   "1;Ada Lovelace;12\n2;Ben Ali;14\n3;Chloé Martin;9\n",
			want: []string{"Ada Lovelace", "Ben Ali", "Chloé Martin"},
		},
		{
			name: "arabic",
			in:   "١. محمد علي\n٢. فاطمة الزهراء\n",
			want: []string{"محمد علي", "فاطمة الزهراء"},
		},
		{
			name: "numbers only are not names",
			in:   "12\n13\n",
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseNames(strings.NewReader(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectNameColumn(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		columns [][]string
		want    int
		wantOK  bool
	}{
		{
			name:    "named header wins",
			headers: []string{"ID", "Nom", "Remarks"},
			columns: [][]string{{"1", "2"}, {"x", "y"}, {"Ada Lovelace", "Ben Ali"}},
			want:    1, wantOK: true,
		},
		{
			name:    "arabic header",
			headers: []string{"الرقم", "الاسم"},
			columns: [][]string{{"1"}, {"محمد"}},
			want:    1, wantOK: true,
		},
		{
			name:    "two name headers are ambiguous, scoring decides",
			headers: []string{"name", "student"},
			columns: [][]string{{"12", "13"}, {"Ada Lovelace", "Ben Ali"}},
			want:    1, wantOK: true,
		},
		{
			name: "scores beat digits and deny-listed cells",
			columns: [][]string{
				{"1", "2", "3"},
				{"Dar Al Kitab Publisher", "Subject: Math", "Total 12"},
				{"Ada Lovelace", "Ben Ali", ""},
			},
			want: 2, wantOK: true,
		},
		{
			name:    "ties keep the first column",
			columns: [][]string{{"Ada", "Ben"}, {"Chloe", "Dan"}},
			want:    0, wantOK: true,
		},
		{
			name:    "nothing usable",
			columns: [][]string{{"1", "2"}, {"", ""}},
			want:    -1, wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DetectNameColumn(tt.headers, tt.columns)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestReadSpreadsheet_xlsx(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"#", "Student Name", "Roll"},
		{1, "Ada Lovelace", "A-01"},
		{},
		{2, "  Ben Ali ", "A-02"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	got, err := ReadSpreadsheet(buf, "roster.XLSX")
	require.NoError(t, err)
	assert.Len(t, got, 3, "blank rows are dropped")

	ext, err := ExtractNames(got)
	require.NoError(t, err)
	assert.Equal(t, Extraction{Column: 1, Header: "Student Name", HasHeader: true, Names: []string{"Ada Lovelace", "Ben Ali"}}, ext)
}

func TestReadSpreadsheet_errors(t *testing.T) {
	_, err := ReadSpreadsheet(strings.NewReader("\n \n"), "names.csv")
	assert.Equal(t, ErrEmptySheet, err)

	_, err = ReadSpreadsheet(strings.NewReader("not a workbook"), "names.xlsx")
	assert.Error(t, err)

	_, err = ExtractNames([][]string{{"1", "2"}, {"3", "4"}})
	assert.Equal(t, ErrNoNameColumn, err)
}

func TestColumns(t *testing.T) {
	assert.Equal(t, [][]string{{"a", "c"}, {"b", ""}}, Columns([][]string{{"a", "b"}, {"c"}}))
	assert.Empty(t, Columns(nil))
}

type fakeStudents struct {
	roster  []student.Student
	created []student.Input
	server  [][]string
	fail    string
}

func (f *fakeStudents) ListByClass(context.Context, int) ([]student.Student, error) {
	return f.roster, nil
}

func (f *fakeStudents) CreateMany(_ context.Context, inputs []student.Input) ([]student.Student, error) {
	var out []student.Student
	var failures []core.Failure
	for i, in := range inputs {
		if in.Name == f.fail {
			failures = append(failures, core.Failure{Key: in.Name, Err: "boom"})
			continue
		}
		f.created = append(f.created, in)
		out = append(out, student.Student{ID: 100 + i, Name: in.Name, ClassID: in.ClassID})
	}
	if failures != nil {
		return out, &core.BatchError{Op: "creating students", Total: len(inputs), Failures: failures}
	}
	return out, nil
}

func (f *fakeStudents) Import(_ context.Context, classID int, names []string) (student.ImportResult, error) {
	f.server = append(f.server, names)
	var res student.ImportResult
	for i, n := range names {
		res.Created = append(res.Created, student.Student{ID: 200 + i, Name: n, ClassID: classID})
	}
	return res, nil
}

func TestImporter(t *testing.T) {
	ctx := context.Background()

	t.Run("skips students already on the roster", func(t *testing.T) {
		fake := &fakeStudents{roster: []student.Student{{ID: 1, Name: "Ada Lovelace", ClassID: 4}}}
		im := NewImporter(fake, nil)

		rep, err := im.ImportNames(ctx, 4, []string{"ada lovelace", "Ben Ali", "Ben  Ali"}, false)
		require.NoError(t, err)
		assert.Equal(t, 2, rep.Total)
		assert.Equal(t, []string{"ada lovelace"}, rep.Skipped)
		assert.Equal(t, []student.Input{{Name: "Ben Ali", ClassID: 4}}, fake.created)
	})

	t.Run("partial failure keeps the created students", func(t *testing.T) {
		fake := &fakeStudents{fail: "Ben Ali"}
		im := NewImporter(fake, nil)

		rep, err := im.ImportNames(ctx, 4, []string{"Ada Lovelace", "Ben Ali", "Chloé Martin"}, false)
		bErr, ok := core.AsBatchError(err)
		require.True(t, ok)
		assert.Equal(t, 1, bErr.Failed())
		assert.Len(t, rep.Created, 2)
		assert.Equal(t, "Ben Ali", rep.Failures[0].Key)
	})

	t.Run("server import from a file", func(t *testing.T) {
		fake := &fakeStudents{}
		im := NewImporter(fake, nil)

		var csv bytes.Buffer
		fmt.Fprint(&csv, "Name;Class\nAda Lovelace;5A\nBen Ali;5A\n")
		rep, err := im.ImportFile(ctx, 4, &csv, "list.csv", true)
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"Ada Lovelace", "Ben Ali"}}, fake.server)
		assert.Equal(t, 0, rep.Column)
		assert.Equal(t, "Name", rep.Header)
		assert.Len(t, rep.Created, 2)
	})

	t.Run("invalid class", func(t *testing.T) {
		_, err := NewImporter(&fakeStudents{}, nil).ImportNames(ctx, 0, []string{"Ada"}, false)
		assert.Error(t, err)
	})
}
