package echoconsole

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attendance"
	"github.com/trezcool/darasa/core/behavior"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/report"
	"github.com/trezcool/darasa/core/roster"
	"github.com/trezcool/darasa/core/student"
	emailsvc "github.com/trezcool/darasa/services/email"
	"github.com/trezcool/darasa/tests"
)

func Test_classApi(t *testing.T) {
	app := setup(t)
	token := getToken(t, app.conf)
	cls := app.backend.AddClass(testutil.Class{ClassName: "6A", AcademicTerm: "2024-2025"})

	tests := []httpTest{
		{
			name:     "create without name",
			method:   http.MethodPost,
			path:     "/v1/classes",
			body:     []byte(`{}`),
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"className": "this field is required"}`),
		},
		{
			name:     "create with a blank name", // trimmed before validation
			method:   http.MethodPost,
			path:     "/v1/classes",
			body:     []byte(`{"className": "  "}`),
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"className": "this field is required"}`),
		},
		{
			name:     "unknown class",
			method:   http.MethodGet,
			path:     "/v1/classes/999",
			token:    token,
			wantCode: http.StatusNotFound,
			wantData: []byte(`{"error": "not found"}`),
		},
		{
			name:     "invalid id",
			method:   http.MethodGet,
			path:     "/v1/classes/abc",
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"id": "a valid id is required"}`),
		},
		{
			name:     "retrieve",
			method:   http.MethodGet,
			path:     fmt.Sprintf("/v1/classes/%d", cls.ID),
			token:    token,
			wantCode: http.StatusOK,
			wantData: marshallObj(t, classroom.ClassRoom{ID: cls.ID, ClassName: "6A", AcademicTerm: "2024-2025"}),
		},
		{
			name:     "filter by term",
			method:   http.MethodGet,
			path:     "/v1/classes?term=2023-2024",
			token:    token,
			wantCode: http.StatusOK,
			wantData: []byte(`[]`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(tt.method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("create, select and delete", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/classes", token, []byte(`{"className": " 6B ", "director": "Mama Neema"}`))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var created classroom.ClassRoom
		decode(t, rec, &created)
		assert.Greater(t, created.ID, 0)
		assert.Equal(t, "6B", created.ClassName)

		rec = app.do(http.MethodPost, fmt.Sprintf("/v1/classes/%d/select", created.ID), token)
		assert.Equal(t, http.StatusOK, rec.Code)
		rec = app.do(http.MethodGet, "/v1/classes/selected", token)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"className":"6B"`)

		rec = app.do(http.MethodDelete, fmt.Sprintf("/v1/classes/%d", created.ID), token)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = app.do(http.MethodGet, "/v1/classes/selected", token)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Len(t, app.backend.Classes(), 1)
	})

	t.Run("empty write answer refetches", func(t *testing.T) {
		app.backend.EmptyWrites(true)
		defer app.backend.EmptyWrites(false)

		rec := app.do(http.MethodPut, fmt.Sprintf("/v1/classes/%d", cls.ID), token, []byte(`{"className": "6A bis"}`))
		assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
		got, ok := app.deps.Classes.Classes().Get(cls.ID)
		require.True(t, ok)
		assert.Equal(t, "6A bis", got.ClassName)
	})
}

func Test_studentApi_import(t *testing.T) {
	app := setup(t)
	token := getToken(t, app.conf)
	cls, _ := app.backend.Roster(t, "6A", "Amani Juma")

	t.Run("pasted text", func(t *testing.T) {
		body := marshallObj(t, ImportRequest{ClassID: cls.ID, Text: "1. Amani Juma\n2. Baraka Mushi\n3) Chausiku Ali\n"})
		rec := app.do(http.MethodPost, "/v1/students/import", token, body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var rep roster.ImportReport
		decode(t, rec, &rep)
		assert.Equal(t, 3, rep.Total)
		assert.Len(t, rep.Created, 2)
		assert.Equal(t, []string{"Amani Juma"}, rep.Skipped)
		assert.Equal(t, 2, app.backend.Calls("POST /Student"))
	})

	t.Run("spreadsheet upload", func(t *testing.T) {
		var body bytes.Buffer
		w := multipart.NewWriter(&body)
		require.NoError(t, w.WriteField("classId", fmt.Sprint(cls.ID)))
		require.NoError(t, w.WriteField("server", "true"))
		part, err := w.CreateFormFile("file", "roster.csv")
		require.NoError(t, err)
		_, _ = part.Write([]byte("No,Nom complet,Age\n1,Daudi Kitwana,11\n2,Esther Mbui,12\n"))
		require.NoError(t, w.Close())

		req := httptest.NewRequest(http.MethodPost, "/v1/students/import", &body)
		req.Header.Set("Content-Type", w.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		app.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var rep roster.ImportReport
		decode(t, rec, &rep)
		assert.Equal(t, 1, rep.Column)
		assert.Len(t, rep.Created, 2)
		assert.Equal(t, 1, app.backend.Calls("POST /Student/import"))
	})

	t.Run("missing class", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/students/import", token, []byte(`{"names": ["X"]}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	rec := app.do(http.MethodGet, fmt.Sprintf("/v1/students?classId=%d", cls.ID), token)
	require.Equal(t, http.StatusOK, rec.Code)
	var students []student.Student
	decode(t, rec, &students)
	assert.Len(t, students, 5)
}

func Test_attendanceApi(t *testing.T) {
	app := setup(t)
	token := getToken(t, app.conf)
	cls, roster := app.backend.Roster(t, "6A", "Amani Juma", "Baraka Mushi", "Chausiku Ali")
	a, b, c := roster[0], roster[1], roster[2]
	app.backend.AddAttendance(testutil.Attendance{StudentID: a.ID, ClassID: cls.ID, Date: day.Key(), IsAbsent: true})
	app.backend.ResetCalls()

	sheetPath := fmt.Sprintf("/v1/attendance?classId=%d&date=%s", cls.ID, day)
	target := marshallObj(t, SheetQuery{ClassID: cls.ID, Date: day})

	rec := app.do(http.MethodGet, sheetPath, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sheet attendance.Sheet
	decode(t, rec, &sheet)
	require.Len(t, sheet.Entries, 3)
	assert.True(t, sheet.Entries[0].IsAbsent)
	assert.False(t, sheet.Initializing)

	// edits stay in the draft until saved
	rec = app.do(http.MethodPost, "/v1/attendance/toggle", token,
		marshallObj(t, echoMap{"classId": cls.ID, "date": day.Key(), "studentId": b.ID}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 0, app.backend.Writes("/Attendance"))

	rec = app.do(http.MethodGet, sheetPath, token)
	decode(t, rec, &sheet)
	assert.True(t, sheet.Entries[1].IsAbsent)
	assert.True(t, sheet.Entries[1].Dirty)

	rec = app.do(http.MethodPost, "/v1/attendance/mark-names", token,
		marshallObj(t, MarkNamesRequest{ClassID: cls.ID, Date: day, Text: "chausiku ali\nZawadi Nonexistent\n"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var marked MarkNamesResponse
	decode(t, rec, &marked)
	assert.Equal(t, []int{c.ID}, marked.Marked)
	assert.Equal(t, []string{"Zawadi Nonexistent"}, marked.Unmatched)

	app.backend.FailAttendanceFor(c.ID)
	rec = app.do(http.MethodPost, "/v1/attendance/save", token, target)
	require.Equal(t, http.StatusMultiStatus, rec.Code, rec.Body.String())
	var saved SaveResponse
	decode(t, rec, &saved)
	assert.Equal(t, 1, saved.Created)
	assert.Equal(t, 1, saved.Failed)
	require.Len(t, saved.Failures, 1)
	assert.Equal(t, "Chausiku Ali", saved.Failures[0].Key)

	// the draft keeps the failed row
	rec = app.do(http.MethodGet, sheetPath, token)
	decode(t, rec, &sheet)
	assert.True(t, sheet.Entries[2].Dirty)
	assert.True(t, sheet.Entries[1].Recorded())

	rec = app.do(http.MethodGet, fmt.Sprintf("/v1/attendance/export?classId=%d&date=%s&format=csv", cls.ID, day), token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, fmt.Sprintf(`attachment; filename="attendance-class%d-%s.csv"`, cls.ID, day), rec.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\ufeffstudentId,name"))
	assert.Contains(t, rec.Body.String(), "Chausiku Ali")

	rec = app.do(http.MethodGet, fmt.Sprintf("/v1/attendance/export?classId=%d&format=pdf", cls.ID), token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(http.MethodGet, fmt.Sprintf("/v1/attendance/student/%d", a.ID), token)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []attendance.Record
	decode(t, rec, &history)
	require.Len(t, history, 1)
	assert.True(t, history[0].IsAbsent)
}

func Test_attendanceApi_saveClearsDraft(t *testing.T) {
	app := setup(t)
	token := getToken(t, app.conf)
	cls, roster := app.backend.Roster(t, "6A", "Amani Juma", "Baraka Mushi")
	app.backend.AddAttendance(testutil.Attendance{StudentID: roster[0].ID, ClassID: cls.ID, Date: day.Key()})

	rec := app.do(http.MethodPost, "/v1/attendance/toggle", token,
		marshallObj(t, echoMap{"classId": cls.ID, "date": day.Key(), "studentId": roster[0].ID, "isExcused": true}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = app.do(http.MethodPost, "/v1/attendance/save", token, marshallObj(t, SheetQuery{ClassID: cls.ID, Date: day}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var saved SaveResponse
	decode(t, rec, &saved)
	assert.Equal(t, attendance.SaveResult{Updated: 1}, saved.SaveResult) // only the edited entry is written

	_, err := app.deps.Drafts.Get(context.Background(), attendance.DraftKey{User: staffUser, ClassID: cls.ID, Day: day})
	assert.Equal(t, core.ErrNotFound, err)

	rows := app.backend.Attendance()
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IsAbsent)
	assert.True(t, rows[0].IsExcused)

	// toggling an unknown student
	rec = app.do(http.MethodPost, "/v1/attendance/toggle", token,
		marshallObj(t, echoMap{"classId": cls.ID, "date": day.Key(), "studentId": 999}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_attendanceApi_initializesWithSessionToken(t *testing.T) {
	app := setup(t)
	token := getToken(t, app.conf)
	cls, roster := app.backend.Roster(t, "6A", "Amani Juma", "Baraka Mushi")

	rec := app.do(http.MethodGet, fmt.Sprintf("/v1/attendance?classId=%d&date=%s", cls.ID, day.Key()), token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sheet attendance.Sheet
	decode(t, rec, &sheet)
	assert.True(t, sheet.Initializing)
	assert.Len(t, sheet.Entries, 2)

	// the background creates run after the request, with its backend token
	app.deps.Reconciler.Wait()
	rows := app.backend.Attendance()
	require.Len(t, rows, len(roster))
	for _, r := range rows {
		assert.False(t, r.IsAbsent)
		assert.Equal(t, cls.ID, r.ClassID)
	}
	assert.Equal(t, 2, app.backend.Calls("POST /Attendance"))
}

func Test_behaviorApi(t *testing.T) {
	app := setup(t)
	token := getToken(t, app.conf)
	cls, roster := app.backend.Roster(t, "6A", "Amani Juma")

	tests := []httpTest{
		{
			name:     "invalid type",
			method:   http.MethodPost,
			path:     "/v1/behavior",
			body:     marshallObj(t, echoMap{"studentId": roster[0].ID, "behaviorType": "gossip"}),
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"behaviorType": "behaviorType must be one of note, praise, warning, punishment"}`),
		},
		{
			name:     "missing student",
			method:   http.MethodPost,
			path:     "/v1/behavior",
			body:     []byte(`{"behaviorType": "note"}`),
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"studentId": "this field is required"}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(tt.method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}

	rec := app.do(http.MethodPost, "/v1/behavior", token, marshallObj(t, echoMap{
		"studentId": roster[0].ID, "classId": cls.ID, "behaviorType": "Praise", "description": "helped a classmate", "date": day.Key(),
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var rec1 behavior.Record
	decode(t, rec, &rec1)
	assert.Equal(t, behavior.TypePraise, rec1.BehaviorType)

	rec = app.do(http.MethodGet, fmt.Sprintf("/v1/behavior?studentId=%d", roster[0].ID), token)
	require.Equal(t, http.StatusOK, rec.Code)
	var records []behavior.Record
	decode(t, rec, &records)
	assert.Len(t, records, 1)

	rec = app.do(http.MethodDelete, fmt.Sprintf("/v1/behavior/%d", rec1.ID), token)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, app.backend.BehaviorRecords())
}

func Test_reportApi(t *testing.T) {
	app := setup(t)
	token := getToken(t, app.conf)
	cls, roster := app.backend.Roster(t, "6A", "Amani Juma", "Baraka Mushi")
	app.backend.AddAttendance(testutil.Attendance{StudentID: roster[0].ID, ClassID: cls.ID, Date: day.Key(), IsAbsent: true})
	app.backend.AddAttendance(testutil.Attendance{StudentID: roster[1].ID, ClassID: cls.ID, Date: day.Key()})

	rec := app.do(http.MethodPost, "/v1/reports/generate", token,
		marshallObj(t, GenerateRequest{ClassID: cls.ID, From: day.AddDays(-6), To: day}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var rep report.Report
	decode(t, rec, &rep)
	assert.Equal(t, report.TypeAttendanceSummary, rep.ReportType)
	var summary report.Summary
	require.NoError(t, rep.Data(&summary))
	assert.Equal(t, 1, summary.Days)
	assert.Equal(t, 1, summary.Absences)

	rec = app.do(http.MethodGet, "/v1/reports?type=attendance-summary", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var reports []report.Report
	decode(t, rec, &reports)
	assert.Len(t, reports, 1)

	rec = app.do(http.MethodGet, "/v1/reports/download?format=json", token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"reportType": "attendance-summary"`)

	rec = app.do(http.MethodGet, "/v1/reports/download?format=xlsx", token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(http.MethodPost, "/v1/reports/export", token, []byte(`{"format": "csv"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, fmt.Sprintf("id,reportType\n%d,attendance-summary\n", rep.ID), rec.Body.String())

	rec = app.do(http.MethodPost, fmt.Sprintf("/v1/reports/%d/email", rep.ID), token, []byte(`{}`))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Len(t, emailsvc.SentMessages, 1)
	msg := emailsvc.SentMessages[0]
	assert.Equal(t, "head@school.cd", msg.To[0].Address)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "text/csv", msg.Attachments[0].ContentType)
	assert.Equal(t, "report", msg.Category)
	assert.Equal(t, map[string]string{"reportIds": strconv.Itoa(rep.ID)}, msg.Tags)

	rec = app.do(http.MethodPost, fmt.Sprintf("/v1/reports/%d/email", rep.ID), token, []byte(`{"to": ["not-an-email"]}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_summaryJob(t *testing.T) {
	app := setup(t)
	core.NowFunc = func() time.Time { return day.Time(time.Local).Add(18 * time.Hour) }
	defer func() { core.NowFunc = time.Now }()

	cls, roster := app.backend.Roster(t, "6A", "Amani Juma")
	app.backend.Roster(t, "6B")
	app.backend.AddAttendance(testutil.Attendance{StudentID: roster[0].ID, ClassID: cls.ID, Date: day.Key(), IsAbsent: true})

	newSummaryJob(app.conf, app.logger, app.deps).Run()

	assert.Len(t, app.backend.Reports(), 2)
	require.Len(t, emailsvc.SentMessages, 1)
	assert.Contains(t, emailsvc.SentMessages[0].Subject, "attendance summaries")
	assert.Equal(t, "attendance-summary", emailsvc.SentMessages[0].Category)
	assert.Len(t, strings.Split(emailsvc.SentMessages[0].Tags["reportIds"], ","), 2)

	app.conf.API.Token = ""
	emailsvc.ResetSentMessages()
	newSummaryJob(app.conf, app.logger, app.deps).Run()
	assert.Empty(t, emailsvc.SentMessages)
	assert.True(t, app.logger.Has("ERROR summary job failed"))
}

type echoMap map[string]interface{}
