package attendance

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/student"
)

type fakeRoster map[int][]student.Student

func (f fakeRoster) ListByClass(_ context.Context, classID int) ([]student.Student, error) {
	return f[classID], nil
}

// fakeRepo is an in-memory backend; class-date lookups answer 404 when the class has no row that day.
type fakeRepo struct {
	mu      sync.Mutex
	rows    []Record
	nextID  int
	failFor map[int]bool // student ids whose writes fail
	block   chan struct{}

	lists, creates, updates int32
}

func newFakeRepo(rows ...Record) *fakeRepo {
	r := &fakeRepo{failFor: map[int]bool{}}
	for _, row := range rows {
		if row.ID > r.nextID {
			r.nextID = row.ID
		}
		r.rows = append(r.rows, row)
	}
	return r
}

func (r *fakeRepo) List(context.Context) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), r.rows...), nil
}

func (r *fakeRepo) ListByStudent(_ context.Context, studentID int) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Record
	for _, row := range r.rows {
		if row.StudentID == studentID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListByClassDate(_ context.Context, classID int, day core.Day) ([]Record, error) {
	atomic.AddInt32(&r.lists, 1)
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Record
	for _, row := range r.rows {
		if row.ClassID == classID && row.Date == day {
			out = append(out, row)
		}
	}
	if out == nil {
		return nil, &core.APIError{Method: "GET", Path: "/Attendance/class-attendance-by-date", StatusCode: 404}
	}
	return out, nil
}

func (r *fakeRepo) Get(_ context.Context, id int) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ID == id {
			return row, nil
		}
	}
	return Record{}, &core.APIError{StatusCode: 404}
}

func (r *fakeRepo) Create(_ context.Context, in Input) (Record, error) {
	if r.block != nil {
		<-r.block
	}
	atomic.AddInt32(&r.creates, 1)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFor[in.StudentID] {
		return Record{}, &core.APIError{Method: "POST", Path: "/Attendance", StatusCode: 500, Message: "write failed"}
	}
	r.nextID++
	row := Record{ID: r.nextID, StudentID: in.StudentID, ClassID: in.ClassID, Date: in.Date, IsAbsent: in.IsAbsent, IsExcused: in.IsExcused}
	r.rows = append(r.rows, row)
	return row, nil
}

func (r *fakeRepo) Update(_ context.Context, id int, in Input) (Record, error) {
	atomic.AddInt32(&r.updates, 1)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFor[in.StudentID] {
		return Record{}, &core.APIError{Method: "PUT", Path: "/Attendance", StatusCode: 500, Message: "write failed"}
	}
	for i, row := range r.rows {
		if row.ID == id {
			r.rows[i] = Record{ID: id, StudentID: in.StudentID, ClassID: in.ClassID, Date: in.Date, IsAbsent: in.IsAbsent, IsExcused: in.IsExcused}
			return r.rows[i], nil
		}
	}
	return Record{}, &core.APIError{StatusCode: 404}
}

func (r *fakeRepo) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, row := range r.rows {
		if row.ID == id {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			return nil
		}
	}
	return &core.APIError{StatusCode: 404}
}

func (r *fakeRepo) count(classID int, day core.Day) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, row := range r.rows {
		if row.ClassID == classID && row.Date == day {
			n++
		}
	}
	return n
}

func (r *fakeRepo) writes() (creates, updates int32) {
	return atomic.LoadInt32(&r.creates), atomic.LoadInt32(&r.updates)
}
