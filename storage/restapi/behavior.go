package restapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/trezcool/darasa/core/behavior"
	apiclient "github.com/trezcool/darasa/services/api"
)

var _ behavior.Repository = (*behaviorRepository)(nil)

type behaviorRepository struct {
	api *apiclient.Client
}

func NewBehaviorRepository(api *apiclient.Client) *behaviorRepository {
	return &behaviorRepository{api: api}
}

func behaviorID(r behavior.Record) int { return r.ID }

func (repo behaviorRepository) List(ctx context.Context) ([]behavior.Record, error) {
	return list[behavior.Record](ctx, repo.api, "/Behavior", nil)
}

func (repo behaviorRepository) ListByStudent(ctx context.Context, studentID int) ([]behavior.Record, error) {
	return list[behavior.Record](ctx, repo.api, fmt.Sprintf("/Behavior/student/%d", studentID), nil)
}

func (repo behaviorRepository) Get(ctx context.Context, id int) (behavior.Record, error) {
	all, err := repo.List(ctx)
	if err != nil {
		return behavior.Record{}, err
	}
	return find(all, id, behaviorID)
}

func (repo behaviorRepository) Create(ctx context.Context, in behavior.Input) (behavior.Record, error) {
	return write(ctx, repo.api, http.MethodPost, "/Behavior", in, behaviorID)
}

func (repo behaviorRepository) Update(ctx context.Context, id int, in behavior.Input) (behavior.Record, error) {
	return write(ctx, repo.api, http.MethodPut, fmt.Sprintf("/Behavior/%d", id), in, behaviorID)
}

func (repo behaviorRepository) Delete(ctx context.Context, id int) error {
	return remove(ctx, repo.api, fmt.Sprintf("/Behavior/%d", id))
}
