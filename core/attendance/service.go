package attendance

import (
	"context"
	"fmt"

	"github.com/trezcool/darasa/core"
)

type (
	Repository interface {
		List(ctx context.Context) ([]Record, error)
		ListByStudent(ctx context.Context, studentID int) ([]Record, error)
		// ListByClassDate fetches GET /Attendance/class-attendance-by-date. The backend answers 404
		// when nothing was recorded yet for that class and day.
		ListByClassDate(ctx context.Context, classID int, day core.Day) ([]Record, error)
		Get(ctx context.Context, id int) (Record, error)
		Create(ctx context.Context, in Input) (Record, error)
		Update(ctx context.Context, id int, in Input) (Record, error)
		Delete(ctx context.Context, id int) error
	}

	Service struct {
		repo    Repository
		logger  core.Logger
		records *core.Collection[Record]
	}
)

func NewService(repo Repository, logger core.Logger) *Service {
	return &Service{
		repo:    repo,
		logger:  logger,
		records: core.NewCollection(recordID),
	}
}

func (svc *Service) Records() *core.Collection[Record] { return svc.records }

func (svc *Service) Refresh(ctx context.Context) error {
	done := svc.records.StartLoading()
	defer done()

	records, err := svc.repo.List(ctx)
	if err != nil {
		return svc.records.Fail(svc.logger, "listing attendance", err)
	}
	svc.records.SetError("")
	svc.records.Replace(validOnly(records))
	return nil
}

func (svc *Service) List(ctx context.Context, filter Filter) ([]Record, error) {
	if err := svc.Refresh(ctx); err != nil {
		return nil, err
	}
	return svc.records.Filter(filter.match), nil
}

// ListByStudent fetches GET /Attendance/student/{id}; a 404 means no records.
func (svc *Service) ListByStudent(ctx context.Context, studentID int) ([]Record, error) {
	done := svc.records.StartLoading()
	defer done()

	records, err := svc.repo.ListByStudent(ctx, studentID)
	if err != nil {
		if core.IsNotFound(err) {
			return []Record{}, nil
		}
		return nil, svc.records.Fail(svc.logger, fmt.Sprintf("listing attendance of student %d", studentID), err)
	}
	records = validOnly(records)
	svc.records.SetError("")
	svc.records.Upsert(records...)
	return records, nil
}

// ListByClassDate returns core.ErrNotFound when the backend has nothing for that class and day.
func (svc *Service) ListByClassDate(ctx context.Context, classID int, day core.Day) ([]Record, error) {
	done := svc.records.StartLoading()
	defer done()

	records, err := svc.repo.ListByClassDate(ctx, classID, day)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, core.ErrNotFound
		}
		return nil, svc.records.Fail(svc.logger, fmt.Sprintf("listing attendance of class %d on %s", classID, day), err)
	}
	records = validOnly(records)
	for i := range records {
		if records[i].ClassID == 0 {
			records[i].ClassID = classID
		}
		if records[i].Date.IsZero() {
			records[i].Date = day
		}
	}
	svc.records.SetError("")
	svc.records.Upsert(records...)
	return records, nil
}

func (svc *Service) Get(ctx context.Context, id int) (Record, error) {
	if r, ok := svc.records.Get(id); ok {
		return r, nil
	}
	r, err := svc.repo.Get(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return Record{}, core.ErrNotFound
		}
		return Record{}, svc.records.Fail(svc.logger, "getting attendance record", err)
	}
	svc.records.Upsert(r)
	return r, nil
}

func (svc *Service) Create(ctx context.Context, in Input) (Record, error) {
	if err := checkInput(&in); err != nil {
		return Record{}, err
	}
	done := svc.records.StartLoading()
	defer done()

	r, err := svc.repo.Create(ctx, in)
	return svc.records.Apply(ctx, svc.logger, "creating attendance record", r, err, svc.Refresh)
}

func (svc *Service) Update(ctx context.Context, id int, in Input) (Record, error) {
	if id <= 0 {
		return Record{}, core.NewValidationError(nil, core.FieldError{Field: "id", Error: "a valid id is required"})
	}
	if err := checkInput(&in); err != nil {
		return Record{}, err
	}
	done := svc.records.StartLoading()
	defer done()

	r, err := svc.repo.Update(ctx, id, in)
	return svc.records.Apply(ctx, svc.logger, "updating attendance record", r, err, svc.Refresh)
}

func (svc *Service) Delete(ctx context.Context, id int) error {
	done := svc.records.StartLoading()
	defer done()

	if err := svc.repo.Delete(ctx, id); err != nil {
		return svc.records.Fail(svc.logger, "deleting attendance record", err)
	}
	svc.records.SetError("")
	svc.records.Remove(id)
	return nil
}

func checkInput(in *Input) error {
	if in.StudentID <= 0 {
		return core.NewValidationError(nil, core.FieldError{Field: "studentId", Error: "a valid studentId is required"})
	}
	if in.Date.IsZero() {
		in.Date = core.Today()
	}
	return nil
}
