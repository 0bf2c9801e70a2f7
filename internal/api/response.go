package api

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// respondJSON writes data as JSON with the given status code. Encoding
// errors are dropped since the header is already out.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an ErrorResponse. detail, when set, lands in Field.
func respondError(w http.ResponseWriter, status int, message, detail string) {
	respondErrorWithField(w, status, message, detail)
}

// respondErrorWithField sends an ErrorResponse naming the offending field.
func respondErrorWithField(w http.ResponseWriter, status int, message, field string) {
	respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Field:   field,
	})
}
