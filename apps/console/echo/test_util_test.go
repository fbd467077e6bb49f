package echoconsole

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

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
	"github.com/trezcool/darasa/storage/restapi"
	"github.com/trezcool/darasa/tests"
)

const (
	backendToken = "backend-token"
	staffUser    = "mwalimu"
	staffPwd     = "siri"
)

var (
	day = core.MustParseDay("2025-03-03")

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

type testApp struct {
	server  *Server
	backend *testutil.Backend
	logger  *testutil.Logger
	conf    *core.Config
	deps    *Deps
}

func testConfig() *core.Config {
	return &core.Config{
		AppName:   "Darasa",
		Env:       "TEST",
		TestMode:  true,
		SecretKey: "secret",
		API:       core.APIConfig{Token: backendToken, CreateConcurrency: 2, BatchSize: 2},
		Server:    core.ServerConfig{Host: "localhost", JWTExpirationDelta: time.Hour},
		Email: core.EmailConfig{
			DefaultFromEmail: "Darasa <noreply@localhost>",
			ReportRecipients: []string{"Head <head@school.cd>"},
		},
		Reports: core.ReportsConfig{Lookback: 7 * 24 * time.Hour},
	}
}

// setup wires the console on top of a fake backend. The API client has no token of its own:
// every backend call must carry the one from the console JWT.
func setup(t *testing.T) testApp {
	b := testutil.NewBackend(t)
	b.Token = backendToken
	b.Users[staffUser] = staffPwd

	conf := testConfig()
	logger := testutil.NewLogger()
	api, err := apiclient.New(b.URL(), apiclient.WithLogger(logger))
	if err != nil {
		t.Fatalf("apiclient.New() failed: %v", err)
	}

	validate, translator := core.NewValidator()
	behavior.RegisterValidators(validate, translator)

	students := student.NewService(restapi.NewStudentRepository(api), logger, student.Options{BatchSize: 2})
	att := attendance.NewService(restapi.NewAttendanceRepository(api), logger)
	beh := behavior.NewService(restapi.NewBehaviorRepository(api), logger)
	deps := &Deps{
		Validate:   validate,
		Translator: translator,
		Auth:       auth.NewService(restapi.NewAuthRepository(api), logger),
		Classes:    classroom.NewService(restapi.NewClassRepository(api), logger),
		Students:   students,
		Attendance: att,
		Reconciler: attendance.NewReconciler(students, att, logger, attendance.ReconcilerOptions{CreateConcurrency: 2}),
		Drafts:     attendance.NewMemoryDraftStore(),
		Behavior:   beh,
		Reports: report.NewService(restapi.NewReportRepository(api), report.Sources{
			Roster:     students,
			Attendance: att,
			Behavior:   beh,
		}, logger),
		Importer: roster.NewImporter(students, logger),
		Email:    emailsvc.NewConsoleServiceMock(conf),
	}
	emailsvc.ResetSentMessages()

	return testApp{
		server:  NewServer(conf, logger, deps),
		backend: b,
		logger:  logger,
		conf:    conf,
		deps:    deps,
	}
}

func (app testApp) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	app.server.ServeHTTP(rec, req)
	return rec
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func getToken(t *testing.T, conf *core.Config) string {
	sess := auth.Session{Token: backendToken, User: auth.User{ID: 1, Username: staffUser, Name: "Mwalimu"}}
	token, err := GenerateToken(NewClaims(sess, conf.AppName, conf.Server.JWTExpirationDelta), conf.SecretKey)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode() failed: %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
