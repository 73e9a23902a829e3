// Package response writes the API's JSON envelopes.
package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/newthinker/confluence/internal/core"
)

// Meta contains response metadata.
type Meta struct {
	Timestamp time.Time `json:"timestamp"`
}

// SuccessResponse is the standard success response format.
type SuccessResponse struct {
	Data any  `json:"data"`
	Meta Meta `json:"meta"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   string `json:"cause,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// statusByCode maps error codes to HTTP statuses; anything else is a 500
var statusByCode = map[string]int{
	core.ErrInvalidRequest.Code:   http.StatusBadRequest,
	core.ErrInvalidBars.Code:      http.StatusBadRequest,
	core.ErrConfigInvalid.Code:    http.StatusBadRequest,
	core.ErrProfileNotFound.Code:  http.StatusNotFound,
	core.ErrProviderNotFound.Code: http.StatusNotFound,
	core.ErrJobNotFound.Code:      http.StatusNotFound,
	core.ErrAlertNotFound.Code:    http.StatusNotFound,
	core.ErrNoData.Code:           http.StatusNotFound,
	core.ErrUnauthorized.Code:     http.StatusUnauthorized,
	core.ErrCollectorFailed.Code:  http.StatusBadGateway,
}

// StatusFor picks the HTTP status for err
func StatusFor(err error) int {
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		if status, ok := statusByCode[coreErr.Code]; ok {
			return status
		}
	}
	return http.StatusInternalServerError
}

// JSON writes a success response with data.
func JSON(w http.ResponseWriter, status int, data any) {
	resp := SuccessResponse{
		Data: data,
		Meta: Meta{Timestamp: time.Now().UTC()},
	}
	write(w, status, resp)
}

// Error writes an error response.
func Error(w http.ResponseWriter, status int, err error) {
	detail := ErrorDetail{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
	}

	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		detail.Code = coreErr.Code
		detail.Message = coreErr.Message
		if coreErr.Cause != nil {
			detail.Cause = coreErr.Cause.Error()
		}
	}

	write(w, status, ErrorResponse{Error: detail})
}

// Fail writes err with the status StatusFor derives
func Fail(w http.ResponseWriter, err error) {
	Error(w, StatusFor(err), err)
}

func write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
