package classroom

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

type (
	Repository interface {
		List(ctx context.Context) ([]ClassRoom, error)
		Get(ctx context.Context, id int) (ClassRoom, error)
		Create(ctx context.Context, in Input) (ClassRoom, error)
		Update(ctx context.Context, id int, in Input) (ClassRoom, error)
		Delete(ctx context.Context, id int) error
	}

	// Service holds the classes last fetched from the backend and the selected one.
	Service struct {
		repo    Repository
		logger  core.Logger
		classes *core.Collection[ClassRoom]

		mu       sync.RWMutex
		selected int
	}
)

func NewService(repo Repository, logger core.Logger) *Service {
	return &Service{
		repo:    repo,
		logger:  logger,
		classes: core.NewCollection(classID),
	}
}

func (svc *Service) Classes() *core.Collection[ClassRoom] { return svc.classes }

// Refresh refetches the whole list.
func (svc *Service) Refresh(ctx context.Context) error {
	done := svc.classes.StartLoading()
	defer done()

	classes, err := svc.repo.List(ctx)
	if err != nil {
		return svc.classes.Fail(svc.logger, "listing classes", err)
	}
	svc.classes.SetError("")
	svc.classes.Replace(classes)
	return nil
}

func (svc *Service) List(ctx context.Context, filter Filter) ([]ClassRoom, error) {
	if err := svc.Refresh(ctx); err != nil {
		return nil, err
	}
	return svc.classes.Filter(filter.match), nil
}

// Get returns the cached class, fetching it when unknown.
func (svc *Service) Get(ctx context.Context, id int) (ClassRoom, error) {
	if cls, ok := svc.classes.Get(id); ok {
		return cls, nil
	}
	cls, err := svc.repo.Get(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return ClassRoom{}, core.ErrNotFound
		}
		return ClassRoom{}, svc.classes.Fail(svc.logger, "getting class", err)
	}
	svc.classes.Upsert(cls)
	return cls, nil
}

func (svc *Service) Create(ctx context.Context, in Input) (ClassRoom, error) {
	in.Clean()
	if in.ClassName == "" {
		return ClassRoom{}, core.NewValidationError(nil, core.FieldError{Field: "className", Error: "className is required"})
	}
	done := svc.classes.StartLoading()
	defer done()

	cls, err := svc.repo.Create(ctx, in)
	return svc.classes.Apply(ctx, svc.logger, "creating class", cls, err, svc.Refresh)
}

func (svc *Service) Update(ctx context.Context, id int, in Input) (ClassRoom, error) {
	in.Clean()
	if id <= 0 {
		return ClassRoom{}, core.NewValidationError(nil, core.FieldError{Field: "id", Error: "a valid id is required"})
	}
	done := svc.classes.StartLoading()
	defer done()

	cls, err := svc.repo.Update(ctx, id, in)
	return svc.classes.Apply(ctx, svc.logger, "updating class", cls, err, svc.Refresh)
}

func (svc *Service) Delete(ctx context.Context, id int) error {
	done := svc.classes.StartLoading()
	defer done()

	if err := svc.repo.Delete(ctx, id); err != nil {
		return svc.classes.Fail(svc.logger, "deleting class", err)
	}
	svc.classes.SetError("")
	svc.classes.Remove(id)

	svc.mu.Lock()
	if svc.selected == id {
		svc.selected = 0
	}
	svc.mu.Unlock()
	return nil
}

// Select caches id as the selected class.
func (svc *Service) Select(ctx context.Context, id int) (ClassRoom, error) {
	cls, err := svc.Get(ctx, id)
	if err != nil {
		return ClassRoom{}, errors.Wrap(err, "selecting class")
	}
	svc.mu.Lock()
	svc.selected = cls.ID
	svc.mu.Unlock()
	return cls, nil
}

// Selected returns the selected class, if any.
func (svc *Service) Selected() (ClassRoom, bool) {
	svc.mu.RLock()
	id := svc.selected
	svc.mu.RUnlock()
	return svc.classes.Get(id)
}
