package handlers

import (
	"encoding/json"
	"net/http"

	"remotebuild/internal/api/middleware"
	"remotebuild/internal/logger"
)

// writeJSON writes a JSON response with the given status
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("Failed to encode response", "error", err, "status", status)
	}
}

// writeErrorWithRequestID writes a standardized error response with
// optional request ID
func writeErrorWithRequestID(w http.ResponseWriter, r *http.Request, status int, message string) {
	response := map[string]interface{}{
		"error":  message,
		"status": http.StatusText(status),
	}

	if r != nil {
		if requestID := middleware.GetRequestID(r); requestID != "" {
			response["request_id"] = requestID
		}
	}

	writeJSON(w, status, response)
}
