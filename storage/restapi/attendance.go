package restapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attendance"
	apiclient "github.com/trezcool/darasa/services/api"
)

var _ attendance.Repository = (*attendanceRepository)(nil)

type attendanceRepository struct {
	api *apiclient.Client
}

func NewAttendanceRepository(api *apiclient.Client) *attendanceRepository {
	return &attendanceRepository{api: api}
}

func attendanceID(r attendance.Record) int { return r.ID }

func (repo attendanceRepository) List(ctx context.Context) ([]attendance.Record, error) {
	return list[attendance.Record](ctx, repo.api, "/Attendance", nil)
}

func (repo attendanceRepository) ListByStudent(ctx context.Context, studentID int) ([]attendance.Record, error) {
	return list[attendance.Record](ctx, repo.api, fmt.Sprintf("/Attendance/student/%d", studentID), nil)
}

func (repo attendanceRepository) ListByClassDate(ctx context.Context, classID int, day core.Day) ([]attendance.Record, error) {
	q := url.Values{
		"classId": {strconv.Itoa(classID)},
		"date":    {day.Key()},
	}
	return list[attendance.Record](ctx, repo.api, "/Attendance/class-attendance-by-date", q)
}

func (repo attendanceRepository) Get(ctx context.Context, id int) (attendance.Record, error) {
	all, err := repo.List(ctx)
	if err != nil {
		return attendance.Record{}, err
	}
	return find(all, id, attendanceID)
}

func (repo attendanceRepository) Create(ctx context.Context, in attendance.Input) (attendance.Record, error) {
	return write(ctx, repo.api, http.MethodPost, "/Attendance", in, attendanceID)
}

func (repo attendanceRepository) Update(ctx context.Context, id int, in attendance.Input) (attendance.Record, error) {
	return write(ctx, repo.api, http.MethodPut, fmt.Sprintf("/Attendance/%d", id), in, attendanceID)
}

func (repo attendanceRepository) Delete(ctx context.Context, id int) error {
	return remove(ctx, repo.api, fmt.Sprintf("/Attendance/%d", id))
}
