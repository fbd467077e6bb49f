package report

import (
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

const TypeAttendanceSummary = "attendance-summary"

type (
	Report struct {
		ID          int       `json:"id"`
		ReportType  string    `json:"reportType"`
		GeneratedAt core.Time `json:"generatedAt"`
		// ReportData is opaque; it is often, not always, a JSON document.
		ReportData string `json:"reportData"`
	}

	// Input is the payload of POST /Reports and PUT /Reports/{id}.
	Input struct {
		ReportType  string    `json:"reportType" validate:"required,notblank,max=100"`
		GeneratedAt core.Time `json:"generatedAt"`
		ReportData  string    `json:"reportData"`
	}

	// ExportRequest is the payload of POST /Reports/export.
	ExportRequest struct {
		ReportIDs  []int    `json:"reportIds,omitempty"`
		ReportType string   `json:"reportType,omitempty"`
		From       core.Day `json:"from"`
		To         core.Day `json:"to"`
		Format     string   `json:"format" validate:"omitempty,oneof=csv json xlsx pdf"`
	}

	// Export is a file produced by the backend.
	Export struct {
		Content     []byte
		ContentType string
	}

	Filter struct {
		Type string   `query:"type"`
		From core.Day `query:"from"`
		To   core.Day `query:"to"`
	}
)

func (in *Input) Validate(validate *validator.Validate) error {
	in.ReportType = core.CleanString(in.ReportType)
	return validate.Struct(in)
}

// Data decodes ReportData into v.
func (r Report) Data(v interface{}) error {
	return json.Unmarshal([]byte(r.ReportData), v)
}

// DataValue returns ReportData decoded when it holds JSON, the raw string otherwise.
func (r Report) DataValue() interface{} {
	trimmed := strings.TrimSpace(r.ReportData)
	if trimmed == "" {
		return nil
	}
	var v interface{}
	if (strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")) && json.Unmarshal([]byte(trimmed), &v) == nil {
		return v
	}
	return r.ReportData
}

func (f Filter) match(r Report) bool {
	if t := strings.TrimSpace(f.Type); t != "" && !strings.EqualFold(r.ReportType, t) {
		return false
	}
	if (!f.From.IsZero() || !f.To.IsZero()) && r.GeneratedAt.IsZero() {
		return false
	}
	return r.GeneratedAt.Day().Within(f.From, f.To)
}

func reportID(r Report) int { return r.ID }
