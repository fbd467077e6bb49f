package echoconsole

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/behavior"
)

type behaviorApi struct {
	svc      *behavior.Service
	validate *validator.Validate
}

func registerBehaviorAPI(g *echo.Group, deps *Deps) {
	api := behaviorApi{svc: deps.Behavior, validate: deps.Validate}

	g.GET("", api.query)
	g.POST("", api.create)
	g.GET("/:id", api.retrieve)
	g.PUT("/:id", api.update)
	g.DELETE("/:id", api.destroy)
}

func (api *behaviorApi) query(ctx echo.Context) error {
	var filter behavior.Filter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to behavior.Filter")
	}
	records, err := api.svc.List(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *behaviorApi) retrieve(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	rec, err := api.svc.Get(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *behaviorApi) create(ctx echo.Context) error {
	var data behavior.Input
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to behavior.Input")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	rec, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return writeSaved(ctx, http.StatusCreated, rec, rec.ID)
}

func (api *behaviorApi) update(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	var data behavior.Input
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to behavior.Input")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	rec, err := api.svc.Update(ctx.Request().Context(), id, data)
	if err != nil {
		return err
	}
	return writeSaved(ctx, http.StatusOK, rec, rec.ID)
}

func (api *behaviorApi) destroy(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
