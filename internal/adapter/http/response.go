package http

import (
	"encoding/json"
	"net/http"
)

// Envelope is the fixed response shape every endpoint returns
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// WriteJSON writes an envelope with the given status code
func WriteJSON(w http.ResponseWriter, statusCode int, success bool, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)

	envelope := Envelope{
		Success: success,
		Message: message,
		Data:    data,
	}

	json.NewEncoder(w).Encode(envelope)
}

// Success writes a successful envelope
func Success(w http.ResponseWriter, message string, data interface{}) {
	WriteJSON(w, http.StatusOK, true, message, data)
}

// Failure writes a failed envelope. The status code stays 200 so
// frontend polling never breaks on upstream trouble; the success flag
// carries the outcome.
func Failure(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusOK, false, message, nil)
}
