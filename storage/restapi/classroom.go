package restapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/trezcool/darasa/core/classroom"
	apiclient "github.com/trezcool/darasa/services/api"
)

var _ classroom.Repository = (*classRepository)(nil)

type classRepository struct {
	api *apiclient.Client
}

func NewClassRepository(api *apiclient.Client) *classRepository {
	return &classRepository{api: api}
}

func classID(c classroom.ClassRoom) int { return c.ID }

func (repo classRepository) List(ctx context.Context) ([]classroom.ClassRoom, error) {
	return list[classroom.ClassRoom](ctx, repo.api, "/Class", nil)
}

func (repo classRepository) Get(ctx context.Context, id int) (classroom.ClassRoom, error) {
	return get(ctx, repo.api, fmt.Sprintf("/Class/%d", id), classID)
}

func (repo classRepository) Create(ctx context.Context, in classroom.Input) (classroom.ClassRoom, error) {
	return write(ctx, repo.api, http.MethodPost, "/Class", in, classID)
}

func (repo classRepository) Update(ctx context.Context, id int, in classroom.Input) (classroom.ClassRoom, error) {
	return write(ctx, repo.api, http.MethodPut, fmt.Sprintf("/Class/%d", id), in, classID)
}

func (repo classRepository) Delete(ctx context.Context, id int) error {
	return remove(ctx, repo.api, fmt.Sprintf("/Class/%d", id))
}
