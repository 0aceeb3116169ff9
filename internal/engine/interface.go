package engine

import (
	"context"

	"remotebuild/internal/summary"
)

// State identifies where a tracked build is in its lifecycle
type State string

const (
	StateQueued          State = "QUEUED"
	StateScheduled       State = "SCHEDULED"
	StateBuilding        State = "BUILDING"
	StateFinishedSuccess State = "FINISHED_SUCCESS"
	StateFinishedOther   State = "FINISHED_OTHER"
	StateTimedOut        State = "TIMED_OUT"
	StateFailed          State = "FAILED"
)

// TrackRequest describes one build submission to trigger and follow
type TrackRequest struct {
	// Job is the job name as configured on the remote server; it is
	// path-escaped when the request URL is built.
	Job string
	// Parameters are ordered KEY=VALUE entries passed through to the
	// query string verbatim, in order.
	Parameters []string
	// Wait blocks until the build finishes and bases the outcome on its
	// final result. Without it, a confirmed running build is a success.
	Wait bool
}

// Outcome is the terminal report of one tracked submission
type Outcome struct {
	State       State  `json:"state"`
	QueueURL    string `json:"queue_url,omitempty"`
	QueueNumber int    `json:"queue_number,omitempty"`
	BuildURL    string `json:"build_url,omitempty"`
	Result      string `json:"result,omitempty"`
	Message     string `json:"message"`
}

// Success reports whether the outcome maps to a zero exit status.
// StateBuilding is terminal only when the caller did not ask to wait;
// the build was confirmed running, which is all a fire-and-forget
// submission can confirm.
func (o Outcome) Success() bool {
	return o.State == StateFinishedSuccess || o.State == StateBuilding
}

// CIEngine triggers builds on a remote CI server and follows them
// through their lifecycle
type CIEngine interface {
	// TriggerAndTrack submits the job and blocks until a terminal state
	// is reached, reporting summary fields to rec as they become known.
	TriggerAndTrack(ctx context.Context, req TrackRequest, rec *summary.Recorder) (Outcome, error)
}
