package student

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

const defaultBatchSize = 6

type (
	Repository interface {
		List(ctx context.Context) ([]Student, error)
		ListByClass(ctx context.Context, classID int) ([]Student, error)
		Get(ctx context.Context, id int) (Student, error)
		Create(ctx context.Context, in Input) (Student, error)
		Import(ctx context.Context, req ImportRequest) (ImportResult, error)
		Update(ctx context.Context, id int, in Input) (Student, error)
		Delete(ctx context.Context, id int) error
	}

	Options struct {
		BatchSize    int           // creates in flight during CreateMany
		RequestDelay time.Duration // pause between consecutive creates
	}

	Service struct {
		repo     Repository
		logger   core.Logger
		opts     Options
		students *core.Collection[Student]
	}
)

func NewService(repo Repository, logger core.Logger, opts Options) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	return &Service{
		repo:     repo,
		logger:   logger,
		opts:     opts,
		students: core.NewCollection(studentID),
	}
}

func (svc *Service) Students() *core.Collection[Student] { return svc.students }

func (svc *Service) Refresh(ctx context.Context) error {
	done := svc.students.StartLoading()
	defer done()

	students, err := svc.repo.List(ctx)
	if err != nil {
		return svc.students.Fail(svc.logger, "listing students", err)
	}
	svc.students.SetError("")
	svc.students.Replace(students)
	return nil
}

func (svc *Service) List(ctx context.Context, filter Filter) ([]Student, error) {
	if filter.ClassID > 0 {
		roster, err := svc.ListByClass(ctx, filter.ClassID)
		if err != nil {
			return nil, err
		}
		out := roster[:0]
		for _, s := range roster {
			if filter.match(s) {
				out = append(out, s)
			}
		}
		return out, nil
	}
	if err := svc.Refresh(ctx); err != nil {
		return nil, err
	}
	return svc.students.Filter(filter.match), nil
}

// ListByClass fetches the roster of a class (GET /Student?classId=) and merges it into the cache.
// Rows without a valid id are dropped.
func (svc *Service) ListByClass(ctx context.Context, classID int) ([]Student, error) {
	done := svc.students.StartLoading()
	defer done()

	students, err := svc.repo.ListByClass(ctx, classID)
	if err != nil {
		return nil, svc.students.Fail(svc.logger, fmt.Sprintf("listing students of class %d", classID), err)
	}
	roster := make([]Student, 0, len(students))
	for _, s := range students {
		if s.ID > 0 {
			if s.ClassID == 0 {
				s.ClassID = classID
			}
			roster = append(roster, s)
		}
	}
	svc.students.SetError("")
	svc.students.Upsert(roster...)
	return roster, nil
}

func (svc *Service) Get(ctx context.Context, id int) (Student, error) {
	if s, ok := svc.students.Get(id); ok {
		return s, nil
	}
	s, err := svc.repo.Get(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return Student{}, core.ErrNotFound
		}
		return Student{}, svc.students.Fail(svc.logger, "getting student", err)
	}
	svc.students.Upsert(s)
	return s, nil
}

func (svc *Service) Create(ctx context.Context, in Input) (Student, error) {
	if err := checkInput(&in); err != nil {
		return Student{}, err
	}
	done := svc.students.StartLoading()
	defer done()

	s, err := svc.repo.Create(ctx, in)
	return svc.students.Apply(ctx, svc.logger, "creating student", s, err, svc.Refresh)
}

// CreateMany creates one student per input, with at most BatchSize requests in flight.
// Created students are kept even when others fail; failures come back as a *core.BatchError.
func (svc *Service) CreateMany(ctx context.Context, inputs []Input) ([]Student, error) {
	done := svc.students.StartLoading()
	defer done()

	created := make([]Student, len(inputs))
	var refetch atomic.Bool
	failures := core.RunBatched(ctx, len(inputs), svc.opts.BatchSize, svc.opts.RequestDelay,
		func(i int) string { return inputs[i].Name },
		func(ctx context.Context, i int) error {
			in := inputs[i]
			if err := checkInput(&in); err != nil {
				return err
			}
			s, err := svc.repo.Create(ctx, in)
			if errors.Cause(err) == core.ErrEmptyResponse {
				refetch.Store(true)
				return nil
			}
			created[i] = s
			return err
		},
	)

	out := make([]Student, 0, len(inputs))
	for _, s := range created {
		if s.ID > 0 {
			out = append(out, s)
		}
	}
	svc.students.Upsert(out...)
	if refetch.Load() {
		if err := svc.Refresh(ctx); err != nil {
			return out, err
		}
	}
	if len(failures) > 0 {
		bErr := &core.BatchError{Op: "creating students", Total: len(inputs), Failures: failures}
		svc.students.SetError(core.Message(bErr))
		if svc.logger != nil {
			svc.logger.Warn(bErr.Error())
		}
		return out, bErr
	}
	svc.students.SetError("")
	return out, nil
}

// Import sends the whole name list to POST /Student/import in one request.
func (svc *Service) Import(ctx context.Context, classID int, names []string) (ImportResult, error) {
	req := ImportRequest{ClassID: classID}
	for _, n := range names {
		if n = core.CleanString(n); n != "" {
			req.Names = append(req.Names, n)
		}
	}
	if classID <= 0 {
		return ImportResult{}, core.NewValidationError(nil, core.FieldError{Field: "classId", Error: "a valid classId is required"})
	}
	if len(req.Names) == 0 {
		return ImportResult{}, core.NewValidationError(nil, core.FieldError{Field: "names", Error: "names is required"})
	}

	done := svc.students.StartLoading()
	defer done()

	res, err := svc.repo.Import(ctx, req)
	if err != nil {
		if errors.Cause(err) == core.ErrEmptyResponse {
			_, err = svc.ListByClass(ctx, classID)
			return ImportResult{}, err
		}
		return ImportResult{}, svc.students.Fail(svc.logger, "importing students", err)
	}
	svc.students.SetError("")
	svc.students.Upsert(res.Created...)
	return res, nil
}

func (svc *Service) Update(ctx context.Context, id int, in Input) (Student, error) {
	if id <= 0 {
		return Student{}, core.NewValidationError(nil, core.FieldError{Field: "id", Error: "a valid id is required"})
	}
	if err := checkInput(&in); err != nil {
		return Student{}, err
	}
	done := svc.students.StartLoading()
	defer done()

	s, err := svc.repo.Update(ctx, id, in)
	return svc.students.Apply(ctx, svc.logger, "updating student", s, err, svc.Refresh)
}

func (svc *Service) Delete(ctx context.Context, id int) error {
	done := svc.students.StartLoading()
	defer done()

	if err := svc.repo.Delete(ctx, id); err != nil {
		return svc.students.Fail(svc.logger, "deleting student", err)
	}
	svc.students.SetError("")
	svc.students.Remove(id)
	return nil
}

func checkInput(in *Input) error {
	in.Clean()
	switch {
	case in.Name == "":
		return core.NewValidationError(nil, core.FieldError{Field: "name", Error: "name is required"})
	case in.ClassID <= 0:
		return core.NewValidationError(nil, core.FieldError{Field: "classId", Error: "a valid classId is required"})
	}
	return nil
}
