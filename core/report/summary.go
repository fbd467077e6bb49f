package report

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attendance"
	"github.com/trezcool/darasa/core/behavior"
	"github.com/trezcool/darasa/core/student"
)

type (
	RosterSource interface {
		ListByClass(ctx context.Context, classID int) ([]student.Student, error)
	}

	AttendanceSource interface {
		List(ctx context.Context, filter attendance.Filter) ([]attendance.Record, error)
	}

	BehaviorSource interface {
		List(ctx context.Context, filter behavior.Filter) ([]behavior.Record, error)
	}

	// Sources are the services a summary is computed from. Behavior is optional.
	Sources struct {
		Roster     RosterSource
		Attendance AttendanceSource
		Behavior   BehaviorSource
	}

	StudentSummary struct {
		StudentID    int                   `json:"studentId"`
		Name         string                `json:"name"`
		RecordedDays int                   `json:"recordedDays"`
		Absences     int                   `json:"absences"`
		Excused      int                   `json:"excused"`
		Behavior     map[behavior.Type]int `json:"behavior"`
	}

	// Summary is the reportData of an attendance-summary report.
	Summary struct {
		ClassID     int              `json:"classId"`
		From        core.Day         `json:"from"`
		To          core.Day         `json:"to"`
		GeneratedAt core.Time        `json:"generatedAt"`
		Days        int              `json:"days"` // distinct days with at least one row
		Absences    int              `json:"absences"`
		Students    []StudentSummary `json:"students"`
	}
)

// Summarize computes per-student attendance and behavior counts of a class over [from, to].
func (svc *Service) Summarize(ctx context.Context, classID int, from, to core.Day) (Summary, error) {
	if classID <= 0 {
		return Summary{}, core.NewValidationError(nil, core.FieldError{Field: "classId", Error: "a valid classId is required"})
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return Summary{}, core.NewValidationError(nil, core.FieldError{Field: "from", Error: "from must not be after to"})
	}
	if svc.sources.Roster == nil || svc.sources.Attendance == nil {
		return Summary{}, errors.New("summary sources are not configured")
	}

	roster, err := svc.sources.Roster.ListByClass(ctx, classID)
	if err != nil {
		return Summary{}, errors.Wrap(err, "loading roster")
	}
	rows, err := svc.sources.Attendance.List(ctx, attendance.Filter{ClassID: classID, From: from, To: to})
	if err != nil {
		return Summary{}, errors.Wrap(err, "loading attendance")
	}
	var incidents []behavior.Record
	if svc.sources.Behavior != nil {
		if incidents, err = svc.sources.Behavior.List(ctx, behavior.Filter{ClassID: classID, From: from, To: to}); err != nil {
			return Summary{}, errors.Wrap(err, "loading behavior")
		}
	}

	sum := Summary{ClassID: classID, From: from, To: to, GeneratedAt: core.Time{Time: core.NowFunc()}}
	byStudent := make(map[int]*StudentSummary, len(roster))
	seen := make(map[int]bool, len(roster))
	for _, s := range roster {
		if s.ID <= 0 || seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		sum.Students = append(sum.Students, StudentSummary{StudentID: s.ID, Name: s.Name, Behavior: map[behavior.Type]int{}})
	}
	for i := range sum.Students {
		byStudent[sum.Students[i].StudentID] = &sum.Students[i]
	}

	days := make(map[core.Day]bool)
	for _, r := range rows {
		st := byStudent[r.StudentID]
		if st == nil {
			continue
		}
		days[r.Date] = true
		st.RecordedDays++
		if r.IsAbsent {
			st.Absences++
			sum.Absences++
		}
		if r.IsExcused {
			st.Excused++
		}
	}
	for _, b := range incidents {
		if st := byStudent[b.StudentID]; st != nil {
			st.Behavior[b.BehaviorType]++
		}
	}
	sum.Days = len(days)

	sort.SliceStable(sum.Students, func(i, j int) bool {
		return sum.Students[i].Absences > sum.Students[j].Absences
	})
	return sum, nil
}

// GenerateAttendanceSummary computes the summary and stores it as a new report.
func (svc *Service) GenerateAttendanceSummary(ctx context.Context, classID int, from, to core.Day) (Report, error) {
	sum, err := svc.Summarize(ctx, classID, from, to)
	if err != nil {
		return Report{}, err
	}
	data, err := json.Marshal(sum)
	if err != nil {
		return Report{}, errors.Wrap(err, "encoding summary")
	}
	r, err := svc.Create(ctx, Input{
		ReportType:  TypeAttendanceSummary,
		GeneratedAt: sum.GeneratedAt,
		ReportData:  string(data),
	})
	if err != nil {
		return Report{}, err
	}
	if svc.logger != nil {
		svc.logger.Info(fmt.Sprintf("attendance summary of class %d (%s..%s) stored as report %d", classID, from, to, r.ID))
	}
	return r, nil
}
