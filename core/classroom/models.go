package classroom

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

type (
	ClassRoom struct {
		ID           int    `json:"id"`
		ClassName    string `json:"className"`
		AcademicTerm string `json:"academicTerm"`
		StudentCount int    `json:"studentCount"`
		Director     string `json:"director"`
	}

	// Input is the payload of POST /Class and PUT /Class/{id}.
	Input struct {
		ClassName    string `json:"className" validate:"required,notblank,max=100"`
		AcademicTerm string `json:"academicTerm" validate:"max=50"`
		Director     string `json:"director" validate:"max=100"`
	}

	Filter struct {
		Search string `query:"search"`
		Term   string `query:"term"`
	}
)

func (in *Input) Clean() {
	in.ClassName = core.CleanString(in.ClassName)
	in.AcademicTerm = core.CleanString(in.AcademicTerm)
	in.Director = core.CleanString(in.Director)
}

func (in *Input) Validate(validate *validator.Validate) error {
	in.Clean()
	return validate.Struct(in)
}

func (f Filter) match(c ClassRoom) bool {
	if term := core.CleanString(f.Term, true); term != "" && strings.ToLower(c.AcademicTerm) != term {
		return false
	}
	if q := core.CleanString(f.Search, true); q != "" {
		return strings.Contains(strings.ToLower(c.ClassName), q) || strings.Contains(strings.ToLower(c.Director), q)
	}
	return true
}

func classID(c ClassRoom) int { return c.ID }
