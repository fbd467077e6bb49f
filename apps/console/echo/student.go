package echoconsole

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/roster"
	"github.com/trezcool/darasa/core/student"
)

type (
	studentApi struct {
		svc      *student.Service
		importer *roster.Importer
		validate *validator.Validate
	}

	// ImportRequest is the JSON form of a roster import: a list of names, a pasted text, or both.
	ImportRequest struct {
		ClassID int      `json:"classId" validate:"required,gt=0"`
		Names   []string `json:"names"`
		Text    string   `json:"text"`
		Server  bool     `json:"server"` // one POST /Student/import instead of one create per student
	}
)

func registerStudentAPI(g *echo.Group, deps *Deps) {
	api := studentApi{svc: deps.Students, importer: deps.Importer, validate: deps.Validate}

	g.GET("", api.query)
	g.POST("", api.create)
	g.POST("/import", api.importRoster)

	g.GET("/:id", api.retrieve)
	g.PUT("/:id", api.update)
	g.DELETE("/:id", api.destroy)
}

func (api *studentApi) query(ctx echo.Context) error {
	var filter student.Filter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to student.Filter")
	}
	students, err := api.svc.List(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	s, err := api.svc.Get(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) create(ctx echo.Context) error {
	var data student.Input
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to student.Input")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	s, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return writeSaved(ctx, http.StatusCreated, s, s.ID)
}

func (api *studentApi) update(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	var data student.Input
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to student.Input")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	s, err := api.svc.Update(ctx.Request().Context(), id, data)
	if err != nil {
		return err
	}
	return writeSaved(ctx, http.StatusOK, s, s.ID)
}

func (api *studentApi) destroy(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// importRoster accepts either a multipart spreadsheet upload (fields file, classId, server)
// or an ImportRequest JSON body.
func (api *studentApi) importRoster(ctx echo.Context) error {
	var (
		rep roster.ImportReport
		err error
	)
	if strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		rep, err = api.importFile(ctx)
	} else {
		rep, err = api.importNames(ctx)
	}
	if err != nil {
		if _, ok := core.AsBatchError(err); ok {
			return ctx.JSON(http.StatusMultiStatus, rep)
		}
		return err
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *studentApi) importFile(ctx echo.Context) (roster.ImportReport, error) {
	classID, err := strconv.Atoi(ctx.FormValue("classId"))
	if err != nil || classID <= 0 {
		return roster.ImportReport{}, core.NewValidationError(nil, core.FieldError{Field: "classId", Error: "a valid classId is required"})
	}
	fh, err := ctx.FormFile("file")
	if err != nil {
		return roster.ImportReport{}, core.NewValidationError(nil, core.FieldError{Field: "file", Error: "this field is required"})
	}
	f, err := fh.Open()
	if err != nil {
		return roster.ImportReport{}, errors.Wrap(err, "opening uploaded file")
	}
	defer f.Close()

	useServer, _ := strconv.ParseBool(ctx.FormValue("server"))
	return api.importer.ImportFile(ctx.Request().Context(), classID, f, fh.Filename, useServer)
}

func (api *studentApi) importNames(ctx echo.Context) (roster.ImportReport, error) {
	var data ImportRequest
	if err := ctx.Bind(&data); err != nil {
		return roster.ImportReport{}, errors.Wrap(err, "binding to ImportRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return roster.ImportReport{}, err
	}

	names := data.Names
	if strings.TrimSpace(data.Text) != "" {
		parsed, err := roster.ParseNames(strings.NewReader(data.Text))
		if err != nil {
			return roster.ImportReport{}, core.NewValidationError(err, core.FieldError{Field: "text", Error: err.Error()})
		}
		names = append(names, parsed...)
	}
	if len(names) == 0 {
		return roster.ImportReport{}, core.NewValidationError(nil, core.FieldError{Field: "names", Error: "this field is required"})
	}
	return api.importer.ImportNames(ctx.Request().Context(), data.ClassID, names, data.Server)
}
