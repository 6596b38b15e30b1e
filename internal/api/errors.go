package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/jdcarver/shiftlog/internal/shift"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

// errorEnvelope is the standard error response shape.
type errorEnvelope struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// validationEnvelope extends the error envelope with the failing fields.
type validationEnvelope struct {
	Error  errorDetail        `json:"error"`
	Fields []shift.FieldError `json:"fields"`
}

// writeError writes a JSON error response with the given status code.
func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// writeValidationError writes a 400 enumerating the failed field rules.
func writeValidationError(w http.ResponseWriter, errs []shift.FieldError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(validationEnvelope{
		Error: errorDetail{
			Code:    "validation_error",
			Message: "request failed validation",
		},
		Fields: errs,
	})
}

// writeJSON writes a JSON response with the given status code and data.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// readJSON decodes the request body into v, enforcing a size limit.
func readJSON(r *http.Request, v interface{}) error {
	lr := io.LimitReader(r.Body, maxBodySize)
	return json.NewDecoder(lr).Decode(v)
}
