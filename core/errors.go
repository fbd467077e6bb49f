package core

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrEmptyResponse is returned by repositories when a write succeeded but the server sent nothing usable back.
	ErrEmptyResponse = errors.New("empty response from server")
	ErrNotFound      = errors.New("not found")
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// APIError is a non-2xx answer from the REST backend.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (err *APIError) Error() string {
	msg := err.Message
	if msg == "" {
		msg = http.StatusText(err.StatusCode)
	}
	return fmt.Sprintf("%s %s: %d %s", err.Method, err.Path, err.StatusCode, msg)
}

// IsNotFound reports whether err (or its cause) is a 404 from the backend or ErrNotFound.
func IsNotFound(err error) bool {
	cause := errors.Cause(err)
	if cause == ErrNotFound {
		return true
	}
	if apiErr, ok := cause.(*APIError); ok {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}

// Failure is one failed item of a batch.
type Failure struct {
	Key string `json:"key"`
	Err string `json:"error"`
}

// BatchError reports a partially failed batch; the succeeded items are not rolled back.
type BatchError struct {
	Op       string
	Total    int
	Failures []Failure
}

func (err *BatchError) Error() string {
	details := make([]string, 0, len(err.Failures))
	for i, f := range err.Failures {
		if i == 3 {
			details = append(details, fmt.Sprintf("and %d more", len(err.Failures)-3))
			break
		}
		details = append(details, f.Key+": "+f.Err)
	}
	return fmt.Sprintf("%s: %d of %d failed (%s)", err.Op, len(err.Failures), err.Total, strings.Join(details, "; "))
}

func (err *BatchError) Failed() int { return len(err.Failures) }

// AsBatchError returns the *BatchError behind err, if any.
func AsBatchError(err error) (*BatchError, bool) {
	be, ok := errors.Cause(err).(*BatchError)
	return be, ok
}

// Message returns a short human readable message for err, suitable for a notification banner.
func Message(err error) string {
	if err == nil {
		return ""
	}
	switch cause := errors.Cause(err).(type) {
	case *APIError:
		if cause.Message != "" {
			return cause.Message
		}
		return http.StatusText(cause.StatusCode)
	case *ValidationError:
		return cause.Error()
	case *BatchError:
		return fmt.Sprintf("%d of %d rows failed", cause.Failed(), cause.Total)
	}
	return err.Error()
}
