// Package render writes the {status, message, data} envelope every API
// response uses.
package render

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

// Envelope is the uniform response body. Status is the only success
// discriminator; an empty list is a 200 with Status false.
type Envelope struct {
	Status  bool              `json:"status"`
	Message string            `json:"message"`
	Data    any               `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// Fixed messages shared by several handlers.
const (
	MsgNoRecord     = "No Record Found"
	MsgNoMore       = "No more records"
	MsgUnauthorized = "Unauthorized"
	MsgForbidden    = "Forbidden"
	MsgInvalidBody  = "Invalid request body"
	MsgTooMany      = "Too many requests"
)

func JSON(w http.ResponseWriter, code int, body Envelope) {
	payload, err := json.Marshal(body)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":false,"message":"failed to encode response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(payload)
}

// Success writes status true with an optional payload.
func Success(w http.ResponseWriter, code int, message string, data any) {
	JSON(w, code, Envelope{Status: true, Message: message, Data: data})
}

// Soft writes a 200 with status false, used for empty and exhausted lists.
func Soft(w http.ResponseWriter, message string) {
	JSON(w, http.StatusOK, Envelope{Status: false, Message: message})
}

// Error writes a failure envelope and logs err from the request logger:
// 5xx at error level, 4xx at warn.
func Error(w http.ResponseWriter, r *http.Request, code int, message string, err error) {
	if err != nil && r != nil {
		logger := zerolog.Ctx(r.Context())
		var ev *zerolog.Event
		if code >= http.StatusInternalServerError {
			ev = logger.Error()
		} else {
			ev = logger.Warn()
		}
		ev.Err(err).
			Int("status", code).
			Str("path", r.URL.Path).
			Str("method", r.Method).
			Msg(message)
	}
	JSON(w, code, Envelope{Status: false, Message: message})
}

// Internal writes a 500 whose message is the raw failure text.
func Internal(w http.ResponseWriter, r *http.Request, err error) {
	Error(w, r, http.StatusInternalServerError, err.Error(), err)
}

// Validation writes a 400 carrying one message per offending field.
func Validation(w http.ResponseWriter, r *http.Request, message string, fields map[string]string) {
	if r != nil {
		zerolog.Ctx(r.Context()).Warn().
			Str("path", r.URL.Path).
			Interface("fields", fields).
			Msg(message)
	}
	JSON(w, http.StatusBadRequest, Envelope{Status: false, Message: message, Errors: fields})
}
