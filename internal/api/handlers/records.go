package handlers

import (
	"net/http"
	"strconv"

	"remotebuild/internal/storage"
)

// RecordsHandler handles build-record API requests
type RecordsHandler struct{}

// NewRecordsHandler creates a new RecordsHandler instance
func NewRecordsHandler() *RecordsHandler {
	return &RecordsHandler{}
}

// ListBuildRecords handles the GET /api/v1/builds request
func (h *RecordsHandler) ListBuildRecords(w http.ResponseWriter, r *http.Request) {
	limitStr := r.URL.Query().Get("limit")
	offsetStr := r.URL.Query().Get("offset")

	limit := 100
	offset := 0

	if limitStr != "" {
		parsedLimit, err := strconv.Atoi(limitStr)
		if err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}

	if offsetStr != "" {
		parsedOffset, err := strconv.Atoi(offsetStr)
		if err == nil && parsedOffset >= 0 {
			offset = parsedOffset
		}
	}

	records, err := storage.GetBuildRecords(limit, offset)
	if err != nil {
		writeErrorWithRequestID(w, r, http.StatusInternalServerError, "Failed to get build records")
		return
	}

	writeJSON(w, http.StatusOK, records)
}
