package report

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

type (
	Repository interface {
		List(ctx context.Context) ([]Report, error)
		Get(ctx context.Context, id int) (Report, error)
		Create(ctx context.Context, in Input) (Report, error)
		Update(ctx context.Context, id int, in Input) (Report, error)
		Delete(ctx context.Context, id int) error
		Export(ctx context.Context, req ExportRequest) (Export, error)
	}

	Service struct {
		repo    Repository
		sources Sources
		logger  core.Logger
		reports *core.Collection[Report]
	}
)

func NewService(repo Repository, sources Sources, logger core.Logger) *Service {
	return &Service{
		repo:    repo,
		sources: sources,
		logger:  logger,
		reports: core.NewCollection(reportID),
	}
}

func (svc *Service) Reports() *core.Collection[Report] { return svc.reports }

func (svc *Service) Refresh(ctx context.Context) error {
	done := svc.reports.StartLoading()
	defer done()

	reports, err := svc.repo.List(ctx)
	if err != nil {
		return svc.reports.Fail(svc.logger, "listing reports", err)
	}
	svc.reports.SetError("")
	svc.reports.Replace(reports)
	return nil
}

// List returns the matching reports, newest first.
func (svc *Service) List(ctx context.Context, filter Filter) ([]Report, error) {
	if err := svc.Refresh(ctx); err != nil {
		return nil, err
	}
	reports := svc.reports.Filter(filter.match)
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].GeneratedAt.After(reports[j].GeneratedAt.Time)
	})
	return reports, nil
}

func (svc *Service) Get(ctx context.Context, id int) (Report, error) {
	if r, ok := svc.reports.Get(id); ok {
		return r, nil
	}
	r, err := svc.repo.Get(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return Report{}, core.ErrNotFound
		}
		return Report{}, svc.reports.Fail(svc.logger, "getting report", err)
	}
	svc.reports.Upsert(r)
	return r, nil
}

func (svc *Service) Create(ctx context.Context, in Input) (Report, error) {
	if err := checkInput(&in); err != nil {
		return Report{}, err
	}
	done := svc.reports.StartLoading()
	defer done()

	r, err := svc.repo.Create(ctx, in)
	return svc.reports.Apply(ctx, svc.logger, "creating report", r, err, svc.Refresh)
}

func (svc *Service) Update(ctx context.Context, id int, in Input) (Report, error) {
	if id <= 0 {
		return Report{}, core.NewValidationError(nil, core.FieldError{Field: "id", Error: "a valid id is required"})
	}
	if err := checkInput(&in); err != nil {
		return Report{}, err
	}
	done := svc.reports.StartLoading()
	defer done()

	r, err := svc.repo.Update(ctx, id, in)
	return svc.reports.Apply(ctx, svc.logger, "updating report", r, err, svc.Refresh)
}

func (svc *Service) Delete(ctx context.Context, id int) error {
	done := svc.reports.StartLoading()
	defer done()

	if err := svc.repo.Delete(ctx, id); err != nil {
		return svc.reports.Fail(svc.logger, "deleting report", err)
	}
	svc.reports.SetError("")
	svc.reports.Remove(id)
	return nil
}

// Export asks the backend to render reports as a file (POST /Reports/export).
func (svc *Service) Export(ctx context.Context, req ExportRequest) (Export, error) {
	req.Format = core.CleanString(req.Format, true)
	if req.Format == "" {
		req.Format = "csv"
	}
	done := svc.reports.StartLoading()
	defer done()

	exp, err := svc.repo.Export(ctx, req)
	if err != nil {
		return Export{}, svc.reports.Fail(svc.logger, "exporting reports", err)
	}
	if len(exp.Content) == 0 {
		return Export{}, errors.Wrap(core.ErrEmptyResponse, "exporting reports")
	}
	svc.reports.SetError("")
	return exp, nil
}

func checkInput(in *Input) error {
	in.ReportType = strings.TrimSpace(in.ReportType)
	if in.ReportType == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "reportType", Error: "reportType is required"})
	}
	if in.GeneratedAt.IsZero() {
		in.GeneratedAt = core.Time{Time: core.NowFunc()}
	}
	return nil
}
