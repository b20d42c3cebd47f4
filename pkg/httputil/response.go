// Package httputil provides HTTP handler utilities for consistent error
// handling, the standard response envelope, and shared middleware.
package httputil

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the standard error envelope. ApprovalStatus is set only
// on approval-gate rejections so clients can branch to a pending-approval
// experience instead of a generic error page.
type ErrorResponse struct {
	Success        bool   `json:"success"`
	Error          string `json:"error"`
	ApprovalStatus string `json:"approvalStatus,omitempty"`
	Detail         string `json:"detail,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes the standard error envelope with the given status code
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Success: false, Error: message})
}

// WriteApprovalError writes a 403 carrying the actor's approval status
func WriteApprovalError(w http.ResponseWriter, message, approvalStatus string) {
	WriteJSON(w, http.StatusForbidden, ErrorResponse{
		Success:        false,
		Error:          message,
		ApprovalStatus: approvalStatus,
	})
}

// WriteInternalError writes a 500. Detail (stack or wrapped error chain) is
// included only when verbose is true; production callers pass false.
func WriteInternalError(w http.ResponseWriter, err error, verbose bool) {
	resp := ErrorResponse{Success: false, Error: "Internal server error"}
	if verbose && err != nil {
		resp.Detail = err.Error()
	}
	WriteJSON(w, http.StatusInternalServerError, resp)
}

// WriteUnauthorized writes a 401 error envelope
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, message)
}

// WriteForbidden writes a 403 error envelope
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, message)
}

// WriteMethodNotAllowed writes a 405 error envelope
func WriteMethodNotAllowed(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusMethodNotAllowed, message)
}

// WriteTooManyRequests writes a 429 error envelope
func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, message)
}

// WriteSuccess writes a 200 response wrapping data in the success envelope
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}
