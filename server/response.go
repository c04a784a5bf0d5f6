package server

import (
	"encoding/json"
	"net/http"

	"voicewave/logger"
)

// FieldError is one entry of a validation failure response.
type FieldError struct {
	Field string `json:"field"`
	Msg   string `json:"msg"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", logger.ErrorField(err))
	}
}

// writeError emits the single-error envelope.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"msg": msg})
}

// writeValidationErrors emits the field-level error list.
func writeValidationErrors(w http.ResponseWriter, errs []FieldError) {
	writeJSON(w, http.StatusBadRequest, map[string][]FieldError{"errors": errs})
}
