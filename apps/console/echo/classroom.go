package echoconsole

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/classroom"
)

type classApi struct {
	svc      *classroom.Service
	validate *validator.Validate
}

func registerClassAPI(g *echo.Group, deps *Deps) {
	api := classApi{svc: deps.Classes, validate: deps.Validate}

	g.GET("", api.query)
	g.POST("", api.create)
	g.GET("/selected", api.selected)

	g.GET("/:id", api.retrieve)
	g.PUT("/:id", api.update)
	g.DELETE("/:id", api.destroy)
	g.POST("/:id/select", api.selectClass)
}

func (api *classApi) query(ctx echo.Context) error {
	var filter classroom.Filter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to classroom.Filter")
	}
	classes, err := api.svc.List(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *classApi) retrieve(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	cls, err := api.svc.Get(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *classApi) create(ctx echo.Context) error {
	var data classroom.Input
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to classroom.Input")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	cls, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return writeSaved(ctx, http.StatusCreated, cls, cls.ID)
}

func (api *classApi) update(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	var data classroom.Input
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to classroom.Input")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	cls, err := api.svc.Update(ctx.Request().Context(), id, data)
	if err != nil {
		return err
	}
	return writeSaved(ctx, http.StatusOK, cls, cls.ID)
}

func (api *classApi) destroy(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *classApi) selectClass(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	cls, err := api.svc.Select(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *classApi) selected(ctx echo.Context) error {
	cls, ok := api.svc.Selected()
	if !ok {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, cls)
}

// writeSaved answers a create or update. A zero id means the backend sent nothing usable back
// and the list was refetched instead, so there is no object to return.
func writeSaved(ctx echo.Context, code int, obj interface{}, id int) error {
	if id <= 0 {
		return ctx.NoContent(http.StatusNoContent)
	}
	return ctx.JSON(code, obj)
}
