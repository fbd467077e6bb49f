package logsvc

import (
	"context"
	"log"
	"regexp"
	"strings"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/darasa/core"
)

// maxReportedFailures caps the failed rows listed in the extras of a batch error.
const maxReportedFailures = 20

type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetCustom(map[string]interface{}{"app": conf.AppName, "api": conf.APIBaseURL()})
	rollbar.SetScrubFields(regexp.MustCompile("(?i)password|secret|token|authorization"))
	rollbar.SetCheckIgnore(ignored)
	return &RollbarLogger{std: std}
}

// Enable turns reporting to Rollbar on or off; local printing always happens.
func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// ignored drops requests the staff abandoned (page left while the API was answering).
func ignored(msg string) bool {
	return strings.Contains(msg, context.Canceled.Error())
}

// prepare turns the logger args (msg | error, map[string]interface{}, core.Person, any value)
// into what rollbar understands: the first error, one merged extras map and the message.
// Rollbar drops the message of an error item, so it is kept in the extras. Other values land
// under "args": rollbar would read an int as a stack skip.
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var (
		err    error
		person *core.Person
		other  []interface{}
		extras = make(map[string]interface{})
	)
	for _, arg := range args {
		switch a := arg.(type) {
		case nil:
		case core.Person:
			if person == nil { // only set one Person
				p := a
				person = &p
			}
		case error:
			if err == nil {
				err = a
			} else {
				other = append(other, a.Error())
			}
			if bErr, ok := core.AsBatchError(a); ok {
				batchExtras(extras, bErr)
			}
		case map[string]interface{}:
			for k, v := range a {
				extras[k] = v
			}
		default:
			other = append(other, a)
		}
	}

	if person != nil {
		rollbar.SetPerson(person.ID, person.Username, person.Email)
	} else {
		rollbar.ClearPerson()
	}

	newArgs := []interface{}{msg}
	if err != nil {
		newArgs = append(newArgs, err)
		extras["message"] = msg
	}
	if len(other) > 0 {
		extras["args"] = other
	}
	if len(extras) > 0 {
		newArgs = append(newArgs, extras)
	}
	return newArgs
}

func batchExtras(extras map[string]interface{}, bErr *core.BatchError) {
	extras["op"] = bErr.Op
	extras["total"] = bErr.Total
	extras["failed"] = len(bErr.Failures)

	failures := bErr.Failures
	if len(failures) > maxReportedFailures {
		failures = failures[:maxReportedFailures]
	}
	keys := make([]string, 0, len(failures))
	for _, f := range failures {
		keys = append(keys, f.Key+": "+f.Err)
	}
	extras["failures"] = keys
}

func (l RollbarLogger) print(level, msg string, args []interface{}) {
	l.std.Println(level, msg)
	for _, arg := range args {
		l.std.Printf("%+v\n", arg)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.print("DEBUG", msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.print("INFO", msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.print("WARN", msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.print("ERROR", msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	l.print("FATAL", msg, args)
	l.std.Fatal(msg)
}
