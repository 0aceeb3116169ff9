package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"remotebuild/internal/engine"
	"remotebuild/internal/logger"
	"remotebuild/internal/storage"
	"remotebuild/internal/storage/models"
	"remotebuild/internal/summary"
)

// BuildHandler handles build trigger API requests
type BuildHandler struct {
	ciEngine engine.CIEngine
}

// NewBuildHandler creates a new BuildHandler instance
func NewBuildHandler(ciEngine engine.CIEngine) *BuildHandler {
	return &BuildHandler{
		ciEngine: ciEngine,
	}
}

// TriggerBuildRequest represents the request body for triggering a build
type TriggerBuildRequest struct {
	Job        string   `json:"job"`
	Parameters []string `json:"parameters"` // ordered KEY=VALUE entries
	Wait       bool     `json:"wait"`
}

// TriggerBuild handles the POST /api/v1/builds request. The submission is
// accepted immediately; tracking runs in its own goroutine with no shared
// mutable state, and the terminal outcome lands in the build-record store.
func (h *BuildHandler) TriggerBuild(w http.ResponseWriter, r *http.Request) {
	var req TriggerBuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error("Failed to parse request body", "error", err)
		writeErrorWithRequestID(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Job == "" {
		writeErrorWithRequestID(w, r, http.StatusBadRequest, "Job name is required")
		return
	}
	if len(req.Job) > 255 {
		writeErrorWithRequestID(w, r, http.StatusBadRequest, "Job name exceeds maximum length of 255 characters")
		return
	}
	if strings.Contains(req.Job, "..") || strings.Contains(req.Job, "/") {
		writeErrorWithRequestID(w, r, http.StatusBadRequest, "Invalid job name format")
		return
	}

	if len(req.Parameters) > 100 {
		writeErrorWithRequestID(w, r, http.StatusBadRequest, "Maximum 100 parameters allowed")
		return
	}
	for _, entry := range req.Parameters {
		if !strings.Contains(entry, "=") {
			writeErrorWithRequestID(w, r, http.StatusBadRequest, fmt.Sprintf("Parameter %q is not a KEY=VALUE entry", entry))
			return
		}
		if len(entry) > 10240 {
			writeErrorWithRequestID(w, r, http.StatusBadRequest, "Parameter entry exceeds maximum length of 10KB")
			return
		}
	}

	trackReq := engine.TrackRequest{
		Job:        req.Job,
		Parameters: req.Parameters,
		Wait:       req.Wait,
	}

	// Track in an isolated goroutine; the submission may outlive the
	// HTTP request by up to the full polling budget.
	go h.track(trackReq)

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"accepted": true,
		"job":      req.Job,
		"wait":     req.Wait,
		"message":  "build submission accepted for tracking",
	})
}

// track runs one submission end-to-end and records its terminal state
func (h *BuildHandler) track(req engine.TrackRequest) {
	rec := summary.NewRecorder(nil)
	outcome, err := h.ciEngine.TriggerAndTrack(context.Background(), req, rec)

	record := models.BuildRecord{
		Timestamp:   time.Now(),
		JobName:     req.Job,
		Params:      strings.Join(req.Parameters, "&"),
		QueueNumber: outcome.QueueNumber,
		BuildURL:    outcome.BuildURL,
		State:       string(outcome.State),
		Result:      outcome.Result,
	}
	if err != nil {
		record.Error = err.Error()
	}

	if err := storage.InsertBuildRecord(record); err != nil {
		logger.Error("Failed to record build outcome", "job", req.Job, "error", err)
	}
}
