package main

import (
	"log"
	"os"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attendance"
	"github.com/trezcool/darasa/core/auth"
	"github.com/trezcool/darasa/core/roster"
	"github.com/trezcool/darasa/core/student"
	apiclient "github.com/trezcool/darasa/services/api"
	logsvc "github.com/trezcool/darasa/services/logger"
	"github.com/trezcool/darasa/storage/restapi"
)

func main() {
	defer os.Exit(0)

	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(!conf.Debug)

	api, err := apiclient.New(conf.APIBaseURL(), apiclient.WithTimeout(conf.API.Timeout), apiclient.WithLogger(logger))
	if err != nil {
		logger.Fatal("setting up API client", err)
	}

	// start CLI
	cli := newCommandLine(conf, logger, api)
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("admin: "+core.Message(err), err)
		}
		os.Exit(1)
	}
}

func newCommandLine(conf *core.Config, logger core.Logger, api *apiclient.Client) *commandLine {
	students := student.NewService(restapi.NewStudentRepository(api), logger, student.Options{
		BatchSize:    conf.API.BatchSize,
		RequestDelay: conf.API.RequestDelay,
	})
	att := attendance.NewService(restapi.NewAttendanceRepository(api), logger)
	return &commandLine{
		conf: conf,
		out:  os.Stdout,
		auth: auth.NewService(restapi.NewAuthRepository(api), logger),
		reconciler: attendance.NewReconciler(students, att, logger, attendance.ReconcilerOptions{
			CreateConcurrency: conf.API.CreateConcurrency,
			RequestDelay:      conf.API.RequestDelay,
		}),
		importer: roster.NewImporter(students, logger),
	}
}
