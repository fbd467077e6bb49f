package restapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/trezcool/darasa/core/report"
	apiclient "github.com/trezcool/darasa/services/api"
)

var _ report.Repository = (*reportRepository)(nil)

type reportRepository struct {
	api *apiclient.Client
}

func NewReportRepository(api *apiclient.Client) *reportRepository {
	return &reportRepository{api: api}
}

func reportID(r report.Report) int { return r.ID }

func (repo reportRepository) List(ctx context.Context) ([]report.Report, error) {
	return list[report.Report](ctx, repo.api, "/Reports", nil)
}

func (repo reportRepository) Get(ctx context.Context, id int) (report.Report, error) {
	return get(ctx, repo.api, fmt.Sprintf("/Reports/%d", id), reportID)
}

func (repo reportRepository) Create(ctx context.Context, in report.Input) (report.Report, error) {
	return write(ctx, repo.api, http.MethodPost, "/Reports", in, reportID)
}

func (repo reportRepository) Update(ctx context.Context, id int, in report.Input) (report.Report, error) {
	return write(ctx, repo.api, http.MethodPut, fmt.Sprintf("/Reports/%d", id), in, reportID)
}

func (repo reportRepository) Delete(ctx context.Context, id int) error {
	return remove(ctx, repo.api, fmt.Sprintf("/Reports/%d", id))
}

func (repo reportRepository) Export(ctx context.Context, req report.ExportRequest) (report.Export, error) {
	data, contentType, err := repo.api.Raw(ctx, http.MethodPost, "/Reports/export", req)
	if err != nil {
		return report.Export{}, err
	}
	return report.Export{Content: data, ContentType: contentType}, nil
}
