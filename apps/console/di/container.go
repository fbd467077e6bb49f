package di

import (
	"context"
	"log"
	"os"

	"github.com/go-redis/redis/v8"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoconsole "github.com/trezcool/darasa/apps/console/echo"
	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attendance"
	"github.com/trezcool/darasa/core/auth"
	"github.com/trezcool/darasa/core/behavior"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/report"
	"github.com/trezcool/darasa/core/roster"
	"github.com/trezcool/darasa/core/student"
	apiclient "github.com/trezcool/darasa/services/api"
	emailsvc "github.com/trezcool/darasa/services/email"
	logsvc "github.com/trezcool/darasa/services/logger"
	redisstore "github.com/trezcool/darasa/storage/redis"
	"github.com/trezcool/darasa/storage/restapi"
)

// ServerDeps is everything the console server is built from.
type ServerDeps struct {
	dig.In

	Validate   *validator.Validate
	Translator ut.Translator
	Auth       *auth.Service
	Classes    *classroom.Service
	Students   *student.Service
	Attendance *attendance.Service
	Reconciler *attendance.Reconciler
	Drafts     attendance.DraftStore
	Behavior   *behavior.Service
	Reports    *report.Service
	Importer   *roster.Importer
	Email      core.EmailService
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "CONSOLE : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

// newAPIClient has no token of its own: requests carry the one of the staff session.
func newAPIClient(conf *core.Config, logger core.Logger) (*apiclient.Client, error) {
	return apiclient.New(conf.APIBaseURL(), apiclient.WithTimeout(conf.API.Timeout), apiclient.WithLogger(logger))
}

func newValidator() (*validator.Validate, ut.Translator) {
	validate, translator := core.NewValidator()
	behavior.RegisterValidators(validate, translator)
	return validate, translator
}

func newStudentService(conf *core.Config, api *apiclient.Client, logger core.Logger) *student.Service {
	return student.NewService(restapi.NewStudentRepository(api), logger, student.Options{
		BatchSize:    conf.API.BatchSize,
		RequestDelay: conf.API.RequestDelay,
	})
}

func newReconciler(conf *core.Config, students *student.Service, svc *attendance.Service, logger core.Logger) *attendance.Reconciler {
	return attendance.NewReconciler(students, svc, logger, attendance.ReconcilerOptions{
		CreateConcurrency: conf.API.CreateConcurrency,
		RequestDelay:      conf.API.RequestDelay,
	})
}

func newReportService(api *apiclient.Client, students *student.Service, att *attendance.Service, beh *behavior.Service, logger core.Logger) *report.Service {
	return report.NewService(restapi.NewReportRepository(api), report.Sources{
		Roster:     students,
		Attendance: att,
		Behavior:   beh,
	}, logger)
}

func newImporter(students *student.Service, logger core.Logger) *roster.Importer {
	return roster.NewImporter(students, logger)
}

// newRedis is nil when no redis address is configured.
func newRedis(conf *core.Config) (*redis.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), conf.API.Timeout)
	defer cancel()
	return redisstore.Open(ctx, conf)
}

func newDraftStore(conf *core.Config, rdb *redis.Client, logger core.Logger) attendance.DraftStore {
	if rdb == nil {
		logger.Info("no redis configured: attendance drafts are kept in memory")
		return attendance.NewMemoryDraftStore()
	}
	return redisstore.NewDraftStore(rdb, conf.Redis.DraftTTL)
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newServer(conf *core.Config, logger core.Logger, deps ServerDeps) *echoconsole.Server {
	return echoconsole.NewServer(conf, logger, &echoconsole.Deps{
		Validate:   deps.Validate,
		Translator: deps.Translator,
		Auth:       deps.Auth,
		Classes:    deps.Classes,
		Students:   deps.Students,
		Attendance: deps.Attendance,
		Reconciler: deps.Reconciler,
		Drafts:     deps.Drafts,
		Behavior:   deps.Behavior,
		Reports:    deps.Reports,
		Importer:   deps.Importer,
		Email:      deps.Email,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newAPIClient))
	must(c.Provide(newValidator))
	must(c.Provide(newRedis))
	must(c.Provide(newDraftStore))
	must(c.Provide(newEmailService))

	must(c.Provide(restapi.NewAuthRepository, dig.As(new(auth.Repository))))
	must(c.Provide(restapi.NewClassRepository, dig.As(new(classroom.Repository))))
	must(c.Provide(restapi.NewAttendanceRepository, dig.As(new(attendance.Repository))))
	must(c.Provide(restapi.NewBehaviorRepository, dig.As(new(behavior.Repository))))

	must(c.Provide(auth.NewService))
	must(c.Provide(classroom.NewService))
	must(c.Provide(newStudentService))
	must(c.Provide(attendance.NewService))
	must(c.Provide(newReconciler))
	must(c.Provide(behavior.NewService))
	must(c.Provide(newReportService))
	must(c.Provide(newImporter))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
