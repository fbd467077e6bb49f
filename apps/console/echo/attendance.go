package echoconsole

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attendance"
	"github.com/trezcool/darasa/core/export"
	"github.com/trezcool/darasa/core/roster"
)

type (
	attendanceApi struct {
		svc        *attendance.Service
		reconciler *attendance.Reconciler
		drafts     attendance.DraftStore
		validate   *validator.Validate
	}

	SheetQuery struct {
		ClassID int      `query:"classId" json:"classId" validate:"required,gt=0"`
		Date    core.Day `query:"date" json:"date"`
		Fresh   bool     `query:"fresh" json:"-"` // ignore the draft and reload from the backend
	}

	ExportQuery struct {
		ClassID int      `query:"classId" validate:"required,gt=0"`
		Date    core.Day `query:"date"`
		Format  string   `query:"format"`
	}

	// ToggleRequest flips the absent flag of a student, or sets the flags given.
	ToggleRequest struct {
		ClassID   int      `json:"classId" validate:"required,gt=0"`
		Date      core.Day `json:"date"`
		StudentID int      `json:"studentId" validate:"required,gt=0"`
		IsAbsent  *bool    `json:"isAbsent"`
		IsExcused *bool    `json:"isExcused"`
	}

	MarkNamesRequest struct {
		ClassID int      `json:"classId" validate:"required,gt=0"`
		Date    core.Day `json:"date"`
		Names   []string `json:"names"`
		Text    string   `json:"text"`
	}

	MarkNamesResponse struct {
		attendance.MatchResult
		Sheet *attendance.Sheet `json:"sheet"`
	}

	SaveResponse struct {
		attendance.SaveResult
		Sheet *attendance.Sheet `json:"sheet"`
	}
)

func registerAttendanceAPI(g *echo.Group, deps *Deps) {
	api := attendanceApi{
		svc:        deps.Attendance,
		reconciler: deps.Reconciler,
		drafts:     deps.Drafts,
		validate:   deps.Validate,
	}

	g.GET("", api.sheet)
	g.POST("/toggle", api.toggle)
	g.POST("/mark-names", api.markNames)
	g.POST("/save", api.save)
	g.GET("/export", api.export)
	g.GET("/student/:id", api.studentHistory)
}

func (api *attendanceApi) sheet(ctx echo.Context) error {
	var q SheetQuery
	if err := ctx.Bind(&q); err != nil {
		return errors.Wrap(err, "binding to SheetQuery")
	}
	if err := api.validate.Struct(q); err != nil {
		return err
	}
	sheet, _, err := api.loadSheet(ctx, q.ClassID, q.Date, q.Fresh)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sheet)
}

func (api *attendanceApi) toggle(ctx echo.Context) error {
	var data ToggleRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ToggleRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	sheet, key, err := api.loadSheet(ctx, data.ClassID, data.Date, false)
	if err != nil {
		return err
	}

	switch {
	case data.IsAbsent == nil && data.IsExcused == nil:
		err = sheet.Toggle(data.StudentID)
	default:
		if data.IsAbsent != nil {
			err = sheet.SetAbsent(data.StudentID, *data.IsAbsent)
		}
		if err == nil && data.IsExcused != nil {
			err = sheet.SetExcused(data.StudentID, *data.IsExcused)
		}
	}
	if err != nil {
		return err
	}

	if err := api.drafts.Put(ctx.Request().Context(), key, sheet); err != nil {
		return errors.Wrap(err, "storing draft")
	}
	return ctx.JSON(http.StatusOK, sheet)
}

func (api *attendanceApi) markNames(ctx echo.Context) error {
	var data MarkNamesRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MarkNamesRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	names := data.Names
	if strings.TrimSpace(data.Text) != "" {
		parsed, err := roster.ParseNames(strings.NewReader(data.Text))
		if err != nil {
			return core.NewValidationError(err, core.FieldError{Field: "text", Error: err.Error()})
		}
		names = append(names, parsed...)
	}
	if len(names) == 0 {
		return core.NewValidationError(nil, core.FieldError{Field: "names", Error: "this field is required"})
	}

	sheet, key, err := api.loadSheet(ctx, data.ClassID, data.Date, false)
	if err != nil {
		return err
	}
	res := attendance.MatchNames(sheet, names)
	if err := api.drafts.Put(ctx.Request().Context(), key, sheet); err != nil {
		return errors.Wrap(err, "storing draft")
	}
	return ctx.JSON(http.StatusOK, MarkNamesResponse{MatchResult: res, Sheet: sheet})
}

// save writes the draft (or the freshly loaded sheet) to the backend. The draft is dropped once
// everything is saved; after a partial failure it keeps the rows still to be written.
func (api *attendanceApi) save(ctx echo.Context) error {
	var data SheetQuery
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SheetQuery")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	sheet, key, err := api.loadSheet(ctx, data.ClassID, data.Date, false)
	if err != nil {
		return err
	}

	c := ctx.Request().Context()
	res, err := api.reconciler.Save(c, sheet)
	if err != nil {
		if _, ok := core.AsBatchError(err); ok {
			if pErr := api.drafts.Put(c, key, sheet); pErr != nil {
				return errors.Wrap(pErr, "storing draft")
			}
			return ctx.JSON(http.StatusMultiStatus, SaveResponse{SaveResult: res, Sheet: sheet})
		}
		return err
	}
	if err := api.drafts.Delete(c, key); err != nil {
		return errors.Wrap(err, "dropping draft")
	}
	return ctx.JSON(http.StatusOK, SaveResponse{SaveResult: res, Sheet: sheet})
}

func (api *attendanceApi) export(ctx echo.Context) error {
	var q ExportQuery
	if err := ctx.Bind(&q); err != nil {
		return errors.Wrap(err, "binding to ExportQuery")
	}
	if err := api.validate.Struct(q); err != nil {
		return err
	}
	f, err := export.ParseFormat(q.Format)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "format", Error: err.Error()})
	}
	sheet, _, err := api.loadSheet(ctx, q.ClassID, q.Date, false)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := export.WriteAttendance(&buf, f, export.SheetRows(sheet)); err != nil {
		return errors.Wrap(err, "exporting attendance")
	}
	return sendFile(ctx, export.AttendanceFilename(sheet.ClassID, sheet.Day, f), f.ContentType(), buf.Bytes())
}

func (api *attendanceApi) studentHistory(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	records, err := api.svc.ListByStudent(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, records)
}

// loadSheet returns the staff member's draft of the sheet, or the sheet as the backend has it.
func (api *attendanceApi) loadSheet(ctx echo.Context, classID int, day core.Day, fresh bool) (*attendance.Sheet, attendance.DraftKey, error) {
	if day.IsZero() {
		day = core.Today()
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return nil, attendance.DraftKey{}, err
	}
	key := attendance.DraftKey{User: claims.draftUser(), ClassID: classID, Day: day}
	c := ctx.Request().Context()

	if !fresh {
		sheet, err := api.drafts.Get(c, key)
		if err == nil {
			sheet.Initializing = api.reconciler.Initializing(classID, day)
			return sheet, key, nil
		}
		if errors.Cause(err) != core.ErrNotFound {
			return nil, key, errors.Wrap(err, "reading draft")
		}
	} else if err := api.drafts.Delete(c, key); err != nil {
		return nil, key, errors.Wrap(err, "dropping draft")
	}

	sheet, err := api.reconciler.Load(c, classID, day)
	if err != nil {
		return nil, key, err
	}
	return sheet, key, nil
}

func sendFile(ctx echo.Context, filename, contentType string, content []byte) error {
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return ctx.Blob(http.StatusOK, contentType, content)
}
