package testutil

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

func add[T any](b *Backend, tbl *table[T], row T) T {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id := tbl.id(&row); *id == 0 {
		b.nextID++
		*id = b.nextID
	} else if *id > b.nextID {
		b.nextID = *id
	}
	tbl.rows = append(tbl.rows, row)
	return row
}

func snapshot[T any](b *Backend, tbl *table[T]) []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]T(nil), tbl.rows...)
}

func (b *Backend) AddClass(c Class) Class                { return add(b, &b.classes, c) }
func (b *Backend) AddStudent(s Student) Student          { return add(b, &b.students, s) }
func (b *Backend) AddAttendance(a Attendance) Attendance { return add(b, &b.attendance, a) }
func (b *Backend) AddBehavior(r Behavior) Behavior       { return add(b, &b.behavior, r) }
func (b *Backend) AddReport(r Report) Report             { return add(b, &b.reports, r) }

func (b *Backend) Classes() []Class            { return snapshot(b, &b.classes) }
func (b *Backend) Students() []Student         { return snapshot(b, &b.students) }
func (b *Backend) Attendance() []Attendance    { return snapshot(b, &b.attendance) }
func (b *Backend) BehaviorRecords() []Behavior { return snapshot(b, &b.behavior) }
func (b *Backend) Reports() []Report           { return snapshot(b, &b.reports) }

// Roster seeds a class and one student per name, returning the students in order.
func (b *Backend) Roster(t *testing.T, className string, names ...string) (Class, []Student) {
	t.Helper()
	cls := b.AddClass(Class{ClassName: className, StudentCount: len(names)})
	students := make([]Student, 0, len(names))
	for i, name := range names {
		students = append(students, b.AddStudent(Student{Name: name, ClassID: cls.ID, RollNumber: fmt.Sprint(i + 1)}))
	}
	return cls, students
}

// Logger is a core.Logger keeping every entry in memory.
type Logger struct {
	mu      sync.Mutex
	entries []string
}

func NewLogger() *Logger { return &Logger{} }

func (l *Logger) log(level, msg string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry := level + " " + msg
	for _, arg := range args {
		if err, ok := arg.(error); ok {
			entry += ": " + err.Error()
		}
	}
	l.entries = append(l.entries, entry)
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("DEBUG", msg, args...) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("INFO", msg, args...) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("WARN", msg, args...) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("ERROR", msg, args...) }
func (l *Logger) Fatal(msg string, args ...interface{}) { l.log("FATAL", msg, args...) }

func (l *Logger) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

// Has reports whether an entry starts with prefix (e.g. "ERROR listing").
func (l *Logger) Has(prefix string) bool {
	for _, e := range l.Entries() {
		if strings.HasPrefix(e, prefix) {
			return true
		}
	}
	return false
}
