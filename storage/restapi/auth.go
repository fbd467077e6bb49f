package restapi

import (
	"context"
	"net/http"

	"github.com/trezcool/darasa/core/auth"
	apiclient "github.com/trezcool/darasa/services/api"
)

var _ auth.Repository = (*authRepository)(nil)

type authRepository struct {
	api *apiclient.Client
}

func NewAuthRepository(api *apiclient.Client) *authRepository {
	return &authRepository{api: api}
}

func (repo authRepository) Login(ctx context.Context, req auth.LoginRequest) (auth.Session, error) {
	var sess auth.Session
	if err := repo.api.Do(ctx, http.MethodPost, "/Auth/login", nil, req, &sess); err != nil {
		return auth.Session{}, err
	}
	return sess, nil
}
