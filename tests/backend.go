package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"

	apiclient "github.com/trezcool/darasa/services/api"
)

// Wire shapes of the backend resources. They mirror the JSON the real backend speaks
// without depending on the domain packages.
type (
	Class struct {
		ID           int    `json:"id"`
		ClassName    string `json:"className"`
		AcademicTerm string `json:"academicTerm"`
		StudentCount int    `json:"studentCount"`
		Director     string `json:"director"`
	}

	Student struct {
		ID         int    `json:"id"`
		Name       string `json:"name"`
		ClassID    int    `json:"classId"`
		RollNumber string `json:"rollNumber"`
	}

	Attendance struct {
		ID        int    `json:"id"`
		StudentID int    `json:"studentId"`
		ClassID   int    `json:"classId"`
		Date      string `json:"date"`
		IsAbsent  bool   `json:"isAbsent"`
		IsExcused bool   `json:"isExcused"`
	}

	Behavior struct {
		ID           int    `json:"id"`
		StudentID    int    `json:"studentId"`
		ClassID      int    `json:"classId"`
		BehaviorType string `json:"behaviorType"`
		Description  string `json:"description"`
		Date         string `json:"date"`
	}

	Report struct {
		ID          int    `json:"id"`
		ReportType  string `json:"reportType"`
		GeneratedAt string `json:"generatedAt"`
		ReportData  string `json:"reportData"`
	}
)

type table[T any] struct {
	rows []T
	id   func(*T) *int
}

func (t *table[T]) index(id int) int {
	for i := range t.rows {
		if *t.id(&t.rows[i]) == id {
			return i
		}
	}
	return -1
}

// Backend is an in-memory stand-in for the REST backend, served over HTTP under /api.
// It counts calls per route ("POST /Attendance") so tests can assert on network traffic.
type Backend struct {
	Token string // required as bearer token when set
	Users map[string]string

	mu          sync.Mutex
	nextID      int
	calls       map[string]int
	emptyWrites bool
	failFor     map[int]bool

	classes    table[Class]
	students   table[Student]
	attendance table[Attendance]
	behavior   table[Behavior]
	reports    table[Report]

	server *httptest.Server
}

func NewBackend(t *testing.T) *Backend {
	b := &Backend{
		Users:      map[string]string{},
		calls:      map[string]int{},
		failFor:    map[int]bool{},
		classes:    table[Class]{id: func(r *Class) *int { return &r.ID }},
		students:   table[Student]{id: func(r *Student) *int { return &r.ID }},
		attendance: table[Attendance]{id: func(r *Attendance) *int { return &r.ID }},
		behavior:   table[Behavior]{id: func(r *Behavior) *int { return &r.ID }},
		reports:    table[Report]{id: func(r *Report) *int { return &r.ID }},
	}
	b.server = httptest.NewServer(b.routes())
	t.Cleanup(b.server.Close)
	return b
}

// URL is the API base URL (ends with /api).
func (b *Backend) URL() string { return b.server.URL + "/api" }

// Client returns an API client talking to b with its token.
func (b *Backend) Client(t *testing.T, opts ...apiclient.Option) *apiclient.Client {
	opts = append([]apiclient.Option{apiclient.WithStaticToken(b.Token)}, opts...)
	c, err := apiclient.New(b.URL(), opts...)
	if err != nil {
		t.Fatalf("apiclient.New() failed: %v", err)
	}
	return c
}

// Calls returns how many times route (e.g. "POST /Attendance", "PUT /Attendance/:id") was hit.
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

// Writes sums the POST, PUT and DELETE calls on a resource prefix (e.g. "/Attendance").
func (b *Backend) Writes(prefix string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	var n int
	for route, count := range b.calls {
		method, path, _ := strings.Cut(route, " ")
		if method != http.MethodGet && strings.HasPrefix(path, prefix) {
			n += count
		}
	}
	return n
}

func (b *Backend) ResetCalls() {
	b.mu.Lock()
	b.calls = map[string]int{}
	b.mu.Unlock()
}

// EmptyWrites makes creates and updates answer 204 with no body.
func (b *Backend) EmptyWrites(on bool) {
	b.mu.Lock()
	b.emptyWrites = on
	b.mu.Unlock()
}

// FailAttendanceFor makes attendance writes of the student answer 500.
func (b *Backend) FailAttendanceFor(studentID int) {
	b.mu.Lock()
	b.failFor[studentID] = true
	b.mu.Unlock()
}

func (b *Backend) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code, msg := http.StatusInternalServerError, err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code, msg = he.Code, fmt.Sprint(he.Message)
		}
		_ = c.JSON(code, echo.Map{"message": msg})
	}

	api := e.Group("/api", b.count, b.authorize)
	api.POST("/Auth/login", b.login)

	api.GET("/Class", listHandler(b, &b.classes, nil))
	api.POST("/Class", createHandler(b, &b.classes, nil))
	api.GET("/Class/:id", getHandler(b, &b.classes))
	api.PUT("/Class/:id", updateHandler(b, &b.classes, nil))
	api.DELETE("/Class/:id", deleteHandler(b, &b.classes))

	api.GET("/Student", listHandler(b, &b.students, func(c echo.Context, s Student) bool {
		return c.QueryParam("classId") == "" || c.QueryParam("classId") == strconv.Itoa(s.ClassID)
	}))
	api.POST("/Student", createHandler(b, &b.students, b.checkStudent))
	api.POST("/Student/import", b.importStudents)
	api.PUT("/Student/:id", updateHandler(b, &b.students, b.checkStudent))
	api.DELETE("/Student/:id", deleteHandler(b, &b.students))

	api.GET("/Behavior", listHandler(b, &b.behavior, nil))
	api.GET("/Behavior/student/:id", listHandler(b, &b.behavior, func(c echo.Context, r Behavior) bool {
		return c.Param("id") == strconv.Itoa(r.StudentID)
	}))
	api.POST("/Behavior", createHandler(b, &b.behavior, b.checkBehavior))
	api.PUT("/Behavior/:id", updateHandler(b, &b.behavior, b.checkBehavior))
	api.DELETE("/Behavior/:id", deleteHandler(b, &b.behavior))

	api.GET("/Attendance", listHandler(b, &b.attendance, nil))
	api.GET("/Attendance/student/:id", listHandler(b, &b.attendance, func(c echo.Context, r Attendance) bool {
		return c.Param("id") == strconv.Itoa(r.StudentID)
	}))
	api.GET("/Attendance/class-attendance-by-date", b.attendanceByDate)
	api.POST("/Attendance", createHandler(b, &b.attendance, b.checkAttendance))
	api.PUT("/Attendance/:id", updateHandler(b, &b.attendance, b.checkAttendance))
	api.DELETE("/Attendance/:id", deleteHandler(b, &b.attendance))

	api.GET("/Reports", listHandler(b, &b.reports, nil))
	api.POST("/Reports", createHandler(b, &b.reports, nil))
	api.POST("/Reports/export", b.exportReports)
	api.GET("/Reports/:id", getHandler(b, &b.reports))
	api.PUT("/Reports/:id", updateHandler(b, &b.reports, nil))
	api.DELETE("/Reports/:id", deleteHandler(b, &b.reports))
	return e
}

func (b *Backend) count(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		b.mu.Lock()
		b.calls[c.Request().Method+" "+strings.TrimPrefix(c.Path(), "/api")]++
		b.mu.Unlock()
		return next(c)
	}
}

func (b *Backend) authorize(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if b.Token == "" || strings.HasSuffix(c.Path(), "/Auth/login") {
			return next(c)
		}
		if c.Request().Header.Get("Authorization") != "Bearer "+b.Token {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}
		return next(c)
	}
}

func pathID(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func decode(c echo.Context, v interface{}) error {
	if err := json.NewDecoder(c.Request().Body).Decode(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json: "+err.Error())
	}
	return nil
}

func listHandler[T any](b *Backend, tbl *table[T], keep func(echo.Context, T) bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		b.mu.Lock()
		defer b.mu.Unlock()
		out := make([]T, 0, len(tbl.rows))
		for _, row := range tbl.rows {
			if keep == nil || keep(c, row) {
				out = append(out, row)
			}
		}
		return c.JSON(http.StatusOK, out)
	}
}

func getHandler[T any](b *Backend, tbl *table[T]) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c)
		if err != nil {
			return err
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		i := tbl.index(id)
		if i < 0 {
			return echo.NewHTTPError(http.StatusNotFound, "not found")
		}
		return c.JSON(http.StatusOK, tbl.rows[i])
	}
}

func createHandler[T any](b *Backend, tbl *table[T], check func(row *T, id int) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		var row T
		if err := decode(c, &row); err != nil {
			return err
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		if check != nil {
			if err := check(&row, 0); err != nil {
				return err
			}
		}
		b.nextID++
		*tbl.id(&row) = b.nextID
		tbl.rows = append(tbl.rows, row)
		if b.emptyWrites {
			return c.NoContent(http.StatusNoContent)
		}
		return c.JSON(http.StatusCreated, row)
	}
}

func updateHandler[T any](b *Backend, tbl *table[T], check func(row *T, id int) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c)
		if err != nil {
			return err
		}
		var row T
		if err := decode(c, &row); err != nil {
			return err
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		i := tbl.index(id)
		if i < 0 {
			return echo.NewHTTPError(http.StatusNotFound, "not found")
		}
		if check != nil {
			if err := check(&row, id); err != nil {
				return err
			}
		}
		*tbl.id(&row) = id
		tbl.rows[i] = row
		if b.emptyWrites {
			return c.NoContent(http.StatusNoContent)
		}
		return c.JSON(http.StatusOK, row)
	}
}

func deleteHandler[T any](b *Backend, tbl *table[T]) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c)
		if err != nil {
			return err
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		i := tbl.index(id)
		if i < 0 {
			return echo.NewHTTPError(http.StatusNotFound, "not found")
		}
		tbl.rows = append(tbl.rows[:i], tbl.rows[i+1:]...)
		return c.NoContent(http.StatusNoContent)
	}
}

func (b *Backend) checkStudent(s *Student, _ int) error {
	if strings.TrimSpace(s.Name) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	return nil
}

func (b *Backend) checkBehavior(r *Behavior, _ int) error {
	if r.StudentID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "studentId is required")
	}
	return nil
}

// checkAttendance enforces one row per student and day.
func (b *Backend) checkAttendance(r *Attendance, id int) error {
	if r.StudentID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "studentId is required")
	}
	if b.failFor[r.StudentID] {
		return echo.NewHTTPError(http.StatusInternalServerError, "storage failure")
	}
	for _, row := range b.attendance.rows {
		if row.ID != id && row.StudentID == r.StudentID && dayOf(row.Date) == dayOf(r.Date) {
			return echo.NewHTTPError(http.StatusConflict, "attendance already recorded")
		}
	}
	return nil
}

func dayOf(date string) string {
	if len(date) >= 10 {
		return date[:10]
	}
	return date
}

// attendanceByDate answers 404 when nothing was recorded, like the real backend.
func (b *Backend) attendanceByDate(c echo.Context) error {
	classID, date := c.QueryParam("classId"), c.QueryParam("date")
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Attendance
	for _, r := range b.attendance.rows {
		if strconv.Itoa(r.ClassID) == classID && dayOf(r.Date) == date {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "no attendance for this class and date")
	}
	return c.JSON(http.StatusOK, out)
}

func (b *Backend) importStudents(c echo.Context) error {
	var req struct {
		ClassID int      `json:"classId"`
		Names   []string `json:"names"`
	}
	if err := decode(c, &req); err != nil {
		return err
	}
	if req.ClassID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "classId is required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	type failure struct {
		Key string `json:"key"`
		Err string `json:"error"`
	}
	res := struct {
		Created []Student `json:"created"`
		Failed  []failure `json:"failed"`
	}{Created: []Student{}}
	for _, name := range req.Names {
		s := Student{Name: strings.TrimSpace(name), ClassID: req.ClassID}
		if err := b.checkStudent(&s, 0); err != nil {
			res.Failed = append(res.Failed, failure{Key: name, Err: "name is required"})
			continue
		}
		b.nextID++
		s.ID = b.nextID
		b.students.rows = append(b.students.rows, s)
		res.Created = append(res.Created, s)
	}
	return c.JSON(http.StatusOK, res)
}

func (b *Backend) exportReports(c echo.Context) error {
	var req struct {
		ReportIDs []int  `json:"reportIds"`
		Format    string `json:"format"`
	}
	if err := decode(c, &req); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	var sb strings.Builder
	sb.WriteString("id,reportType\n")
	for _, r := range b.reports.rows {
		if len(req.ReportIDs) > 0 && !containsInt(req.ReportIDs, r.ID) {
			continue
		}
		fmt.Fprintf(&sb, "%d,%s\n", r.ID, r.ReportType)
	}
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", []byte(sb.String()))
}

func (b *Backend) login(c echo.Context) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decode(c, &req); err != nil {
		return err
	}
	pwd, ok := b.Users[req.Username]
	if !ok || pwd != req.Password {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"token": b.Token,
		"user":  echo.Map{"id": 1, "username": req.Username, "name": req.Username},
	})
}

func containsInt(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
