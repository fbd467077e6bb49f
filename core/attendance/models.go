package attendance

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

type (
	// Record is one server attendance row. There is at most one per (StudentID, Date).
	Record struct {
		ID        int      `json:"id"`
		StudentID int      `json:"studentId"`
		ClassID   int      `json:"classId"`
		Date      core.Day `json:"date"`
		IsAbsent  bool     `json:"isAbsent"`
		IsExcused bool     `json:"isExcused"`
	}

	// Input is the payload of POST /Attendance and PUT /Attendance/{id}.
	Input struct {
		StudentID int      `json:"studentId" validate:"required,gt=0"`
		ClassID   int      `json:"classId" validate:"gte=0"`
		Date      core.Day `json:"date"`
		IsAbsent  bool     `json:"isAbsent"`
		IsExcused bool     `json:"isExcused"`
	}

	Filter struct {
		StudentID  int      `query:"studentId"`
		ClassID    int      `query:"classId"`
		From       core.Day `query:"from"`
		To         core.Day `query:"to"`
		AbsentOnly bool     `query:"absent"`
	}
)

func (in *Input) Validate(validate *validator.Validate) error {
	if in.Date.IsZero() {
		in.Date = core.Today()
	}
	return validate.Struct(in)
}

func (f Filter) match(r Record) bool {
	switch {
	case r.StudentID <= 0:
		return false
	case f.StudentID > 0 && r.StudentID != f.StudentID:
		return false
	case f.ClassID > 0 && r.ClassID != f.ClassID:
		return false
	case f.AbsentOnly && !r.IsAbsent:
		return false
	}
	return r.Date.Within(f.From, f.To)
}

func recordID(r Record) int { return r.ID }

// validOnly drops rows without a server id or a student: they cannot be updated or matched.
func validOnly(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.ID > 0 && r.StudentID > 0 {
			out = append(out, r)
		}
	}
	return out
}
