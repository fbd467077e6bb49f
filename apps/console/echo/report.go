package echoconsole

import (
	"bytes"
	"fmt"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/export"
	"github.com/trezcool/darasa/core/report"
)

type (
	reportApi struct {
		conf     *core.Config
		svc      *report.Service
		email    core.EmailService
		validate *validator.Validate
	}

	GenerateRequest struct {
		ClassID int      `json:"classId" validate:"required,gt=0"`
		From    core.Day `json:"from"`
		To      core.Day `json:"to"`
	}

	DownloadQuery struct {
		Format string   `query:"format"`
		Type   string   `query:"type"`
		From   core.Day `query:"from"`
		To     core.Day `query:"to"`
	}

	EmailRequest struct {
		To []string `json:"to" validate:"omitempty,dive,email"`
	}
)

func registerReportAPI(g *echo.Group, conf *core.Config, deps *Deps) {
	api := reportApi{conf: conf, svc: deps.Reports, email: deps.Email, validate: deps.Validate}

	g.GET("", api.query)
	g.POST("/generate", api.generate)
	g.GET("/download", api.download)
	g.POST("/export", api.exportServer)

	g.GET("/:id", api.retrieve)
	g.POST("/:id/email", api.emailReport)
}

func (api *reportApi) query(ctx echo.Context) error {
	var filter report.Filter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to report.Filter")
	}
	reports, err := api.svc.List(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, reports)
}

func (api *reportApi) retrieve(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	rep, err := api.svc.Get(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *reportApi) generate(ctx echo.Context) error {
	var data GenerateRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GenerateRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	from, to := summaryRange(data.From, data.To, api.conf.Reports.Lookback)
	if to.Before(from) {
		return core.NewValidationError(nil, core.FieldError{Field: "to", Error: "to must not be before from"})
	}

	rep, err := api.svc.GenerateAttendanceSummary(ctx.Request().Context(), data.ClassID, from, to)
	if err != nil {
		return err
	}
	return writeSaved(ctx, http.StatusCreated, rep, rep.ID)
}

// download renders the listed reports locally, as opposed to exportServer.
func (api *reportApi) download(ctx echo.Context) error {
	var q DownloadQuery
	if err := ctx.Bind(&q); err != nil {
		return errors.Wrap(err, "binding to DownloadQuery")
	}
	f, err := export.ParseFormat(q.Format)
	if err != nil || f == export.FormatXLSX {
		return core.NewValidationError(nil, core.FieldError{Field: "format", Error: "format must be one of csv, json"})
	}
	reports, err := api.svc.List(ctx.Request().Context(), report.Filter{Type: q.Type, From: q.From, To: q.To})
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := export.WriteReports(&buf, f, reports); err != nil {
		return errors.Wrap(err, "exporting reports")
	}
	return sendFile(ctx, fmt.Sprintf("reports-%s.%s", core.Today(), f), f.ContentType(), buf.Bytes())
}

func (api *reportApi) exportServer(ctx echo.Context) error {
	var data report.ExportRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to report.ExportRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	exp, err := api.svc.Export(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	ext := data.Format
	if ext == "" {
		ext = "csv"
	}
	return sendFile(ctx, fmt.Sprintf("reports-export-%s.%s", core.Today(), ext), exp.ContentType, exp.Content)
}

func (api *reportApi) emailReport(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	var data EmailRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EmailRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	to := api.conf.ReportRecipients()
	if len(data.To) > 0 {
		to = make([]mail.Address, 0, len(data.To))
		for _, addr := range data.To {
			to = append(to, mail.Address{Address: addr})
		}
	}
	if len(to) == 0 {
		return core.NewValidationError(nil, core.FieldError{Field: "to", Error: "no recipients"})
	}

	rep, err := api.svc.Get(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	msg, err := reportMessage("report", fmt.Sprintf("%s report #%d", rep.ReportType, rep.ID), to, []report.Report{rep})
	if err != nil {
		return err
	}
	api.email.SendMessages(msg)
	return ctx.JSON(http.StatusAccepted, SuccessResponse{Success: fmt.Sprintf("report #%d sent to %d recipient(s)", rep.ID, len(to))})
}

// reportMessage is a mail carrying reports as a CSV attachment.
func reportMessage(category, subject string, to []mail.Address, reports []report.Report) (*core.EmailMessage, error) {
	var buf bytes.Buffer
	if err := export.ReportsCSV(&buf, reports); err != nil {
		return nil, errors.Wrap(err, "rendering reports")
	}
	msg := &core.EmailMessage{
		To:          to,
		Subject:     subject,
		TextContent: fmt.Sprintf("Please find attached %d report(s).", len(reports)),
		Category:    category,
		Tags:        reportTags(reports),
	}
	if err := msg.Attach(&buf, fmt.Sprintf("reports-%s.csv", core.Today()), "text/csv"); err != nil {
		return nil, errors.Wrap(err, "attaching reports")
	}
	return msg, nil
}

func reportTags(reports []report.Report) map[string]string {
	ids := make([]string, 0, len(reports))
	for _, r := range reports {
		ids = append(ids, strconv.Itoa(r.ID))
	}
	return map[string]string{"reportIds": strings.Join(ids, ",")}
}

// summaryRange fills the missing bounds: to defaults to today, from to lookback before to (a week when unset).
func summaryRange(from, to core.Day, lookback time.Duration) (core.Day, core.Day) {
	if to.IsZero() {
		to = core.Today()
	}
	if from.IsZero() {
		days := int(lookback / (24 * time.Hour))
		if days <= 0 {
			days = 7
		}
		from = to.AddDays(1 - days)
	}
	return from, to
}
