package student

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

type (
	Student struct {
		ID         int    `json:"id"`
		Name       string `json:"name"`
		ClassID    int    `json:"classId"`
		RollNumber string `json:"rollNumber"`
	}

	// Input is the payload of POST /Student and PUT /Student/{id}.
	Input struct {
		Name       string `json:"name" validate:"required,notblank,max=150"`
		ClassID    int    `json:"classId" validate:"required,gt=0"`
		RollNumber string `json:"rollNumber" validate:"max=30"`
	}

	// ImportRequest is the payload of POST /Student/import.
	ImportRequest struct {
		ClassID int      `json:"classId" validate:"required,gt=0"`
		Names   []string `json:"names" validate:"required,min=1,dive,notblank"`
	}

	ImportResult struct {
		Created []Student      `json:"created"`
		Failed  []core.Failure `json:"failed,omitempty"`
	}

	Filter struct {
		ClassID int    `query:"classId"`
		Search  string `query:"search"`
	}
)

func (in *Input) Clean() {
	in.Name = core.CleanString(in.Name)
	in.RollNumber = core.CleanString(in.RollNumber)
}

func (in *Input) Validate(validate *validator.Validate) error {
	in.Clean()
	return validate.Struct(in)
}

func (f Filter) match(s Student) bool {
	if f.ClassID > 0 && s.ClassID != f.ClassID {
		return false
	}
	if q := core.CleanString(f.Search, true); q != "" {
		return strings.Contains(strings.ToLower(s.Name), q) || strings.EqualFold(s.RollNumber, q)
	}
	return true
}

func studentID(s Student) int { return s.ID }
