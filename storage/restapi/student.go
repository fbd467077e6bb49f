package restapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/student"
	apiclient "github.com/trezcool/darasa/services/api"
)

var _ student.Repository = (*studentRepository)(nil)

type studentRepository struct {
	api *apiclient.Client
}

func NewStudentRepository(api *apiclient.Client) *studentRepository {
	return &studentRepository{api: api}
}

func studentID(s student.Student) int { return s.ID }

func (repo studentRepository) List(ctx context.Context) ([]student.Student, error) {
	return list[student.Student](ctx, repo.api, "/Student", nil)
}

func (repo studentRepository) ListByClass(ctx context.Context, classID int) ([]student.Student, error) {
	q := url.Values{"classId": {strconv.Itoa(classID)}}
	return list[student.Student](ctx, repo.api, "/Student", q)
}

// Get has no dedicated endpoint: the full list is searched.
func (repo studentRepository) Get(ctx context.Context, id int) (student.Student, error) {
	all, err := repo.List(ctx)
	if err != nil {
		return student.Student{}, err
	}
	return find(all, id, studentID)
}

func (repo studentRepository) Create(ctx context.Context, in student.Input) (student.Student, error) {
	return write(ctx, repo.api, http.MethodPost, "/Student", in, studentID)
}

func (repo studentRepository) Import(ctx context.Context, req student.ImportRequest) (student.ImportResult, error) {
	var res student.ImportResult
	if err := repo.api.Do(ctx, http.MethodPost, "/Student/import", nil, req, &res); err != nil {
		return student.ImportResult{}, err
	}
	if len(res.Created) == 0 && len(res.Failed) == 0 {
		return student.ImportResult{}, core.ErrEmptyResponse
	}
	return res, nil
}

func (repo studentRepository) Update(ctx context.Context, id int, in student.Input) (student.Student, error) {
	return write(ctx, repo.api, http.MethodPut, fmt.Sprintf("/Student/%d", id), in, studentID)
}

func (repo studentRepository) Delete(ctx context.Context, id int) error {
	return remove(ctx, repo.api, fmt.Sprintf("/Student/%d", id))
}
