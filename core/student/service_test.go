package student

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
)

type fakeRepo struct {
	mu       sync.Mutex
	rows     []Student
	nextID   int
	creates  int32
	inFlight int32
	maxPar   int32
	failName string
}

func (r *fakeRepo) List(context.Context) ([]Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Student(nil), r.rows...), nil
}

func (r *fakeRepo) ListByClass(_ context.Context, classID int) ([]Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Student
	for _, s := range r.rows {
		if s.ClassID == classID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeRepo) Get(_ context.Context, id int) (Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.rows {
		if s.ID == id {
			return s, nil
		}
	}
	return Student{}, &core.APIError{StatusCode: 404}
}

func (r *fakeRepo) Create(_ context.Context, in Input) (Student, error) {
	atomic.AddInt32(&r.creates, 1)
	n := atomic.AddInt32(&r.inFlight, 1)
	defer atomic.AddInt32(&r.inFlight, -1)
	for {
		m := atomic.LoadInt32(&r.maxPar)
		if n <= m || atomic.CompareAndSwapInt32(&r.maxPar, m, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)

	if r.failName != "" && in.Name == r.failName {
		return Student{}, &core.APIError{Method: "POST", Path: "/Student", StatusCode: 500, Message: "db locked"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	s := Student{ID: r.nextID, Name: in.Name, ClassID: in.ClassID, RollNumber: in.RollNumber}
	r.rows = append(r.rows, s)
	return s, nil
}

func (r *fakeRepo) Import(_ context.Context, req ImportRequest) (ImportResult, error) {
	var res ImportResult
	for _, n := range req.Names {
		s, err := r.Create(context.Background(), Input{Name: n, ClassID: req.ClassID})
		if err != nil {
			res.Failed = append(res.Failed, core.Failure{Key: n, Err: err.Error()})
			continue
		}
		res.Created = append(res.Created, s)
	}
	return res, nil
}

func (r *fakeRepo) Update(_ context.Context, id int, in Input) (Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.rows {
		if s.ID == id {
			r.rows[i] = Student{ID: id, Name: in.Name, ClassID: in.ClassID, RollNumber: in.RollNumber}
			return r.rows[i], nil
		}
	}
	return Student{}, &core.APIError{StatusCode: 404}
}

func (r *fakeRepo) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.rows {
		if s.ID == id {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			return nil
		}
	}
	return &core.APIError{StatusCode: 404}
}

func TestService_CreateMany(t *testing.T) {
	repo := &fakeRepo{failName: "Bad Row"}
	svc := NewService(repo, nil, Options{BatchSize: 2})

	inputs := []Input{
		{Name: "Ada", ClassID: 4},
		{Name: "Bad Row", ClassID: 4},
		{Name: "Ben", ClassID: 4},
		{Name: "No Class"},
		{Name: "Chloe", ClassID: 4},
	}
	created, err := svc.CreateMany(context.Background(), inputs)

	bErr, ok := core.AsBatchError(err)
	require.True(t, ok, "partial failure returns a BatchError")
	assert.Equal(t, 5, bErr.Total)
	assert.Equal(t, []string{"Bad Row", "No Class"}, []string{bErr.Failures[0].Key, bErr.Failures[1].Key})
	assert.Equal(t, "2 of 5 rows failed", svc.Students().Error())

	names := make([]string, 0, len(created))
	for _, s := range created {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"Ada", "Ben", "Chloe"}, names, "successes are kept, in input order")
	assert.Equal(t, 3, svc.Students().Len())
	assert.LessOrEqual(t, repo.maxPar, int32(2))
	assert.EqualValues(t, 4, repo.creates, "an invalid input never reaches the backend")
}

func TestService_ListByClass(t *testing.T) {
	repo := &fakeRepo{rows: []Student{
		{ID: 1, Name: "Ada", ClassID: 4},
		{ID: 0, Name: "Ghost", ClassID: 4},
		{ID: 2, Name: "Ben", ClassID: 4},
		{ID: 3, Name: "Carl", ClassID: 5},
	}}
	svc := NewService(repo, nil, Options{})

	roster, err := svc.ListByClass(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, []Student{{ID: 1, Name: "Ada", ClassID: 4}, {ID: 2, Name: "Ben", ClassID: 4}}, roster)

	filtered, err := svc.List(context.Background(), Filter{ClassID: 4, Search: "BE"})
	require.NoError(t, err)
	assert.Equal(t, []Student{{ID: 2, Name: "Ben", ClassID: 4}}, filtered)
}

func TestService_Import(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, nil, Options{})

	_, err := svc.Import(context.Background(), 0, []string{"Ada"})
	assert.Error(t, err)
	_, err = svc.Import(context.Background(), 4, []string{" ", ""})
	assert.Error(t, err)

	res, err := svc.Import(context.Background(), 4, []string{" Ada ", "Ben", ""})
	require.NoError(t, err)
	assert.Len(t, res.Created, 2)
	assert.Equal(t, "Ada", res.Created[0].Name)
	assert.Equal(t, 2, svc.Students().Len())
}

func TestService_UpdateDelete(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{rows: []Student{{ID: 1, Name: "Ada", ClassID: 4}}, nextID: 1}
	svc := NewService(repo, nil, Options{})

	s, err := svc.Update(ctx, 1, Input{Name: "Ada L.", ClassID: 5, RollNumber: " 07 "})
	require.NoError(t, err)
	assert.Equal(t, Student{ID: 1, Name: "Ada L.", ClassID: 5, RollNumber: "07"}, s)

	_, err = svc.Update(ctx, 0, Input{Name: "x", ClassID: 1})
	var vErr *core.ValidationError
	assert.True(t, errors.As(err, &vErr))

	require.NoError(t, svc.Delete(ctx, 1))
	_, err = svc.Get(ctx, 1)
	assert.Equal(t, core.ErrNotFound, err)

	err = svc.Delete(ctx, 1)
	assert.Error(t, err)
	assert.True(t, strings.HasPrefix(svc.Students().Error(), "deleting student"))
}
