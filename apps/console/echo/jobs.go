package echoconsole

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/report"
	apiclient "github.com/trezcool/darasa/services/api"
)

const summaryJobTimeout = 10 * time.Minute

// summaryJob generates the attendance summary of every class and mails them to the report recipients.
type summaryJob struct {
	conf   *core.Config
	logger core.Logger
	deps   *Deps
}

func newSummaryJob(conf *core.Config, logger core.Logger, deps *Deps) *summaryJob {
	return &summaryJob{conf: conf, logger: logger, deps: deps}
}

func (job *summaryJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), summaryJobTimeout)
	defer cancel()

	reports, err := job.generate(ctx)
	if err != nil {
		job.logger.Error("summary job failed", err)
	}
	if len(reports) == 0 {
		return
	}
	to := job.conf.ReportRecipients()
	if len(to) == 0 {
		return
	}
	msg, err := reportMessage("attendance-summary", fmt.Sprintf("%s attendance summaries of %s", job.conf.AppName, core.Today()), to, reports)
	if err != nil {
		job.logger.Error("summary job: building mail", err)
		return
	}
	job.deps.Email.SendMessages(msg)
}

// generate creates one summary per class. A failing class does not stop the others.
func (job *summaryJob) generate(ctx context.Context) ([]report.Report, error) {
	if job.conf.API.Token == "" {
		return nil, errors.New("no API token configured for scheduled jobs")
	}
	ctx = apiclient.WithToken(ctx, job.conf.API.Token)

	classes, err := job.deps.Classes.List(ctx, classroom.Filter{})
	if err != nil {
		return nil, errors.Wrap(err, "listing classes")
	}
	from, to := summaryRange(core.Day{}, core.Day{}, job.conf.Reports.Lookback)

	reports := make([]report.Report, 0, len(classes))
	var failures []core.Failure
	for _, cls := range classes {
		rep, err := job.deps.Reports.GenerateAttendanceSummary(ctx, cls.ID, from, to)
		if err != nil {
			failures = append(failures, core.Failure{Key: "class " + strconv.Itoa(cls.ID), Err: core.Message(err)})
			continue
		}
		if rep.ID > 0 {
			reports = append(reports, rep)
		}
	}
	job.logger.Info(fmt.Sprintf("summary job: %d of %d class summaries generated", len(reports), len(classes)))
	if len(failures) > 0 {
		return reports, &core.BatchError{Op: "generating summaries", Total: len(classes), Failures: failures}
	}
	return reports, nil
}

// cronLogger adapts core.Logger to cron.Logger.
type cronLogger struct {
	logger core.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, map[string]interface{}{"values": keysAndValues})
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, err, map[string]interface{}{"values": keysAndValues})
}
