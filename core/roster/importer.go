package roster

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/student"
)

type (
	// StudentWriter is the part of the student service the importer needs.
	StudentWriter interface {
		ListByClass(ctx context.Context, classID int) ([]student.Student, error)
		CreateMany(ctx context.Context, inputs []student.Input) ([]student.Student, error)
		Import(ctx context.Context, classID int, names []string) (student.ImportResult, error)
	}

	// Importer turns name lists and spreadsheets into students of a class.
	Importer struct {
		students StudentWriter
		logger   core.Logger
	}

	ImportReport struct {
		ClassID  int               `json:"classId"`
		Column   int               `json:"column"`
		Header   string            `json:"header,omitempty"`
		Total    int               `json:"total"`
		Created  []student.Student `json:"created"`
		Skipped  []string          `json:"skipped"` // already on the roster
		Failures []core.Failure    `json:"failures,omitempty"`
	}
)

func NewImporter(students StudentWriter, logger core.Logger) *Importer {
	return &Importer{students: students, logger: logger}
}

// ImportFile reads a spreadsheet or name list and creates its students in classID.
func (im *Importer) ImportFile(ctx context.Context, classID int, r io.Reader, filename string, useServer bool) (ImportReport, error) {
	rows, err := ReadSpreadsheet(r, filename)
	if err != nil {
		return ImportReport{}, core.NewValidationError(err, core.FieldError{Field: "file", Error: err.Error()})
	}
	ext, err := ExtractNames(rows)
	if err != nil {
		return ImportReport{}, core.NewValidationError(err, core.FieldError{Field: "file", Error: err.Error()})
	}
	rep, err := im.ImportNames(ctx, classID, ext.Names, useServer)
	rep.Column = ext.Column
	rep.Header = ext.Header
	return rep, err
}

// ImportNames creates the students named in names that are not on the class roster yet.
// With useServer the list goes to POST /Student/import in one request; otherwise one create per
// student is sent in small batches.
func (im *Importer) ImportNames(ctx context.Context, classID int, names []string, useServer bool) (ImportReport, error) {
	rep := ImportReport{ClassID: classID, Column: -1, Created: []student.Student{}, Skipped: []string{}}
	if classID <= 0 {
		return rep, core.NewValidationError(nil, core.FieldError{Field: "classId", Error: "a valid classId is required"})
	}

	roster, err := im.students.ListByClass(ctx, classID)
	if err != nil && !core.IsNotFound(err) {
		return rep, errors.Wrap(err, "loading roster")
	}
	existing := make(map[string]bool, len(roster))
	for _, s := range roster {
		existing[MatchKey(s.Name)] = true
	}

	var todo []string
	for _, name := range cleanNames(names) {
		if existing[MatchKey(name)] {
			rep.Skipped = append(rep.Skipped, name)
			continue
		}
		todo = append(todo, name)
	}
	rep.Total = len(todo) + len(rep.Skipped)
	if len(todo) == 0 {
		return rep, nil
	}

	if useServer {
		res, err := im.students.Import(ctx, classID, todo)
		if err != nil {
			return rep, errors.Wrap(err, "importing students")
		}
		rep.Created = append(rep.Created, res.Created...)
		rep.Failures = res.Failed
	} else {
		inputs := make([]student.Input, 0, len(todo))
		for _, name := range todo {
			inputs = append(inputs, student.Input{Name: name, ClassID: classID})
		}
		created, err := im.students.CreateMany(ctx, inputs)
		rep.Created = append(rep.Created, created...)
		if err != nil {
			bErr, ok := core.AsBatchError(err)
			if !ok {
				return rep, errors.Wrap(err, "creating students")
			}
			rep.Failures = bErr.Failures
		}
	}

	if im.logger != nil {
		im.logger.Info(fmt.Sprintf("imported %d of %d students into class %d", len(rep.Created), rep.Total, classID))
	}
	if len(rep.Failures) > 0 {
		return rep, &core.BatchError{Op: "importing students", Total: len(todo), Failures: rep.Failures}
	}
	return rep, nil
}
