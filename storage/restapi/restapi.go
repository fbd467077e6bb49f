// Package restapi implements the domain repositories over the backend REST API.
package restapi

import (
	"context"
	"net/http"
	"net/url"

	"github.com/trezcool/darasa/core"
	apiclient "github.com/trezcool/darasa/services/api"
)

func list[T any](ctx context.Context, api *apiclient.Client, path string, query url.Values) ([]T, error) {
	var out []T
	if err := api.Do(ctx, http.MethodGet, path, query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func get[T any](ctx context.Context, api *apiclient.Client, path string, idOf func(T) int) (T, error) {
	var out T
	if err := api.Do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return out, err
	}
	if idOf(out) <= 0 {
		return out, core.ErrNotFound
	}
	return out, nil
}

// write sends a create or update. An answer without an id is ambiguous: ErrEmptyResponse.
func write[T any](ctx context.Context, api *apiclient.Client, method, path string, body interface{}, idOf func(T) int) (T, error) {
	var out, zero T
	if err := api.Do(ctx, method, path, nil, body, &out); err != nil {
		return zero, err
	}
	if idOf(out) <= 0 {
		return zero, core.ErrEmptyResponse
	}
	return out, nil
}

func remove(ctx context.Context, api *apiclient.Client, path string) error {
	return api.Do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// find looks id up in a full list, for resources the backend exposes no GET /{id} for.
func find[T any](items []T, id int, idOf func(T) int) (T, error) {
	for _, item := range items {
		if idOf(item) == id {
			return item, nil
		}
	}
	var zero T
	return zero, core.ErrNotFound
}
