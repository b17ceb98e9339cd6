// Package api defines the JSON contract every handler answers with: a
// {success, data, error, requestId} envelope whose error codes come from the
// pipeline's taxonomy ("ambiguous_period", "batch_not_found", ...), not from
// HTTP reason phrases.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     *Error `json:"error,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// write marshals before touching the ResponseWriter so an encoding failure
// can still produce a clean 500 instead of a half-written body.
func write(w http.ResponseWriter, status int, envelope Envelope) {
	payload, err := json.Marshal(envelope)
	if err != nil {
		slog.Error("response encoding failed", "err", err, "requestId", envelope.RequestID)
		http.Error(w, `{"success":false}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func Success(w http.ResponseWriter, data any, requestID string) {
	write(w, http.StatusOK, Envelope{Success: true, Data: data, RequestID: requestID})
}

func Created(w http.ResponseWriter, data any, requestID string) {
	write(w, http.StatusCreated, Envelope{Success: true, Data: data, RequestID: requestID})
}

func Fail(w http.ResponseWriter, status int, code, message, requestID string) {
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "code", code, "message", message, "requestId", requestID)
	}
	write(w, status, Envelope{Success: false, Error: &Error{Code: code, Message: message}, RequestID: requestID})
}
