package behavior

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

type Type string

const (
	TypeNote       Type = "note"
	TypePraise     Type = "praise"
	TypeWarning    Type = "warning"
	TypePunishment Type = "punishment"
)

var Types = []Type{TypeNote, TypePraise, TypeWarning, TypePunishment}

func (t Type) Valid() bool {
	for _, v := range Types {
		if t == v {
			return true
		}
	}
	return false
}

// ParseType accepts any casing ("Praise", " WARNING ").
func ParseType(s string) (Type, bool) {
	t := Type(core.CleanString(s, true))
	return t, t.Valid()
}

type (
	Record struct {
		ID           int      `json:"id"`
		StudentID    int      `json:"studentId"`
		ClassID      int      `json:"classId"`
		BehaviorType Type     `json:"behaviorType"`
		Description  string   `json:"description"`
		Date         core.Day `json:"date"`
	}

	// Input is the payload of POST /Behavior and PUT /Behavior/{id}.
	Input struct {
		StudentID    int      `json:"studentId" validate:"required,gt=0"`
		ClassID      int      `json:"classId" validate:"gte=0"`
		BehaviorType Type     `json:"behaviorType" validate:"required,behaviortype"`
		Description  string   `json:"description" validate:"max=1000"`
		Date         core.Day `json:"date"`
	}

	Filter struct {
		StudentID int      `query:"studentId"`
		ClassID   int      `query:"classId"`
		Type      string   `query:"type"`
		From      core.Day `query:"from"`
		To        core.Day `query:"to"`
	}
)

func (in *Input) Clean() {
	in.Description = core.CleanString(in.Description)
	if t, ok := ParseType(string(in.BehaviorType)); ok {
		in.BehaviorType = t
	}
	if in.Date.IsZero() {
		in.Date = core.Today()
	}
}

func (in *Input) Validate(validate *validator.Validate) error {
	in.Clean()
	return validate.Struct(in)
}

func (f Filter) match(r Record) bool {
	if r.StudentID <= 0 {
		return false
	}
	if f.StudentID > 0 && r.StudentID != f.StudentID {
		return false
	}
	if f.ClassID > 0 && r.ClassID != f.ClassID {
		return false
	}
	if t := strings.TrimSpace(f.Type); t != "" && !strings.EqualFold(string(r.BehaviorType), t) {
		return false
	}
	return r.Date.Within(f.From, f.To)
}

func recordID(r Record) int { return r.ID }
