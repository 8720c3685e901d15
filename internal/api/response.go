package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/Moinster/SantaCam/internal/console"
)

// CorrelationHeader carries the request correlation id.
const CorrelationHeader = "X-Correlation-ID"

// Response represents the unified envelope format.
type Response struct {
	Result        string      `json:"result"`
	Data          interface{} `json:"data,omitempty"`
	Code          string      `json:"code,omitempty"`
	Message       string      `json:"message,omitempty"`
	Details       interface{} `json:"details,omitempty"`
	CorrelationID string      `json:"correlationId"`
}

// SuccessResponse creates a success response.
func SuccessResponse(data interface{}) *Response {
	return &Response{
		Result:        "ok",
		Data:          data,
		CorrelationID: generateCorrelationID(),
	}
}

// ErrorResponse creates an error response.
func ErrorResponse(code, message string, details interface{}) *Response {
	return &Response{
		Result:        "error",
		Code:          code,
		Message:       message,
		Details:       details,
		CorrelationID: generateCorrelationID(),
	}
}

// WriteSuccess writes a success response to the HTTP response writer.
func WriteSuccess(w http.ResponseWriter, data interface{}) {
	writeResponse(w, http.StatusOK, SuccessResponse(data))
}

// WriteAccepted writes a 202 success response for work that continues in
// the background.
func WriteAccepted(w http.ResponseWriter, data interface{}) {
	writeResponse(w, http.StatusAccepted, SuccessResponse(data))
}

// WriteError writes an error response to the HTTP response writer.
func WriteError(w http.ResponseWriter, statusCode int, code, message string, details interface{}) {
	writeResponse(w, statusCode, ErrorResponse(code, message, details))
}

// WriteConsoleError maps an operation error to its envelope code and status.
func WriteConsoleError(w http.ResponseWriter, err error, details interface{}) {
	code := console.Code(err)
	WriteError(w, StatusFor(code), code, err.Error(), details)
}

// StatusFor returns the HTTP status of an envelope code.
func StatusFor(code string) int {
	switch code {
	case console.CodeSuccess:
		return http.StatusOK
	case console.CodeBadRequest:
		return http.StatusBadRequest
	case console.CodeNotFound:
		return http.StatusNotFound
	case console.CodeBusy:
		return http.StatusConflict
	case console.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeResponse writes a JSON response, reusing the correlation id the
// middleware assigned to the request.
func writeResponse(w http.ResponseWriter, statusCode int, response *Response) {
	if id := w.Header().Get(CorrelationHeader); id != "" {
		response.CorrelationID = id
	}

	body, err := json.Marshal(response)
	if err != nil {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, "Internal server error: %v", err)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	w.Write(append(body, '\n'))
}

func generateCorrelationID() string {
	return uuid.NewString()
}
