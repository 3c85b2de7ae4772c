package httpapi

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse 错误响应体。4xx 的 status 为 "fail"，5xx 为 "error"
type ErrorResponse struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
	Detail  string       `json:"detail,omitempty"`
}

// FieldError 单个字段的校验错误
type FieldError struct {
	Message string `json:"message"`
}

type successResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// respondSuccess 以 {status: "success", data} 包装返回
func respondSuccess(w http.ResponseWriter, status int, data any) {
	respondJSON(w, status, successResponse{Status: "success", Data: data})
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, ErrorResponse{Status: statusText(status), Message: err.Error()})
}

func respondValidation(w http.ResponseWriter, errs []FieldError) {
	respondJSON(w, http.StatusBadRequest, ErrorResponse{
		Status:  "fail",
		Message: "Validation Error",
		Errors:  errs,
	})
}

func statusText(code int) string {
	if code >= http.StatusInternalServerError {
		return "error"
	}
	return "fail"
}
