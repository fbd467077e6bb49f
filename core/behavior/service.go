package behavior

import (
	"context"
	"fmt"

	"github.com/trezcool/darasa/core"
)

type (
	Repository interface {
		List(ctx context.Context) ([]Record, error)
		ListByStudent(ctx context.Context, studentID int) ([]Record, error)
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
		return svc.records.Fail(svc.logger, "listing behavior records", err)
	}
	svc.records.SetError("")
	svc.records.Replace(validOnly(records))
	return nil
}

func (svc *Service) List(ctx context.Context, filter Filter) ([]Record, error) {
	if filter.StudentID > 0 {
		records, err := svc.ListByStudent(ctx, filter.StudentID)
		if err != nil {
			return nil, err
		}
		out := records[:0]
		for _, r := range records {
			if filter.match(r) {
				out = append(out, r)
			}
		}
		return out, nil
	}
	if err := svc.Refresh(ctx); err != nil {
		return nil, err
	}
	return svc.records.Filter(filter.match), nil
}

// ListByStudent fetches GET /Behavior/student/{id}.
func (svc *Service) ListByStudent(ctx context.Context, studentID int) ([]Record, error) {
	done := svc.records.StartLoading()
	defer done()

	records, err := svc.repo.ListByStudent(ctx, studentID)
	if err != nil {
		if core.IsNotFound(err) {
			return []Record{}, nil
		}
		return nil, svc.records.Fail(svc.logger, fmt.Sprintf("listing behavior of student %d", studentID), err)
	}
	records = validOnly(records)
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
		return Record{}, svc.records.Fail(svc.logger, "getting behavior record", err)
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
	return svc.records.Apply(ctx, svc.logger, "creating behavior record", r, err, svc.Refresh)
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
	return svc.records.Apply(ctx, svc.logger, "updating behavior record", r, err, svc.Refresh)
}

func (svc *Service) Delete(ctx context.Context, id int) error {
	done := svc.records.StartLoading()
	defer done()

	if err := svc.repo.Delete(ctx, id); err != nil {
		return svc.records.Fail(svc.logger, "deleting behavior record", err)
	}
	svc.records.SetError("")
	svc.records.Remove(id)
	return nil
}

// CountByType counts the records of each type.
func CountByType(records []Record) map[Type]int {
	counts := make(map[Type]int, len(Types))
	for _, r := range records {
		counts[r.BehaviorType]++
	}
	return counts
}

func checkInput(in *Input) error {
	in.Clean()
	if in.StudentID <= 0 {
		return core.NewValidationError(nil, core.FieldError{Field: "studentId", Error: "a valid studentId is required"})
	}
	if !in.BehaviorType.Valid() {
		return core.NewValidationError(nil, core.FieldError{
			Field: "behaviorType",
			Error: fmt.Sprintf("behaviorType must be one of %v", Types),
		})
	}
	return nil
}

// validOnly drops records that do not reference a student.
func validOnly(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.StudentID > 0 {
			out = append(out, r)
		}
	}
	return out
}
