package utils

import (
	"encoding/json"
	"net/http"
	"time"

	"order-crm/internal/apperrors"
)

type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Code      string      `json:"code,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func ErrorResponse(message, error string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     error,
		Timestamp: time.Now(),
	}
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteSuccess wraps data in a successful APIResponse.
func WriteSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	WriteJSON(w, status, SuccessResponse(message, data))
}

// WriteError maps err to its status code and writes an error APIResponse.
// Untyped errors are reported without their internal detail.
func WriteError(w http.ResponseWriter, err error) {
	status := apperrors.StatusOf(err)
	resp := ErrorResponse(http.StatusText(status), err.Error())
	if status == http.StatusInternalServerError {
		resp.Error = "internal server error"
	}
	resp.Code = apperrors.CodeOf(err)
	WriteJSON(w, status, resp)
}

// DecodeJSON decodes the request body into v, returning a ValidationError on
// malformed input.
func DecodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return apperrors.NewValidationError("", "request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.NewValidationError("", "invalid request body: "+err.Error())
	}
	return nil
}
