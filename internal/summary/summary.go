// Package summary accumulates the output fields of one tracked build and
// forwards them to an optional sink as they become known. The calling
// pipeline reads the sink output after the process exits.
package summary

import (
	"fmt"
	"os"
	"strconv"

	"remotebuild/internal/logger"
)

// Keys consumed by the calling pipeline, in phase completion order
const (
	KeyServerURL   = "REMOTE_JENKINS_URL"
	KeyQueueNumber = "QUEUED_NUMBER"
	KeyScheduled   = "SCHEDULED"
	KeyBuildURL    = "REMOTE_BUILD_URL"
)

// Summary holds the accumulated output fields of one tracked build
type Summary struct {
	ServerURL   string `json:"server_url"`
	QueueNumber int    `json:"queue_number"`
	Scheduled   bool   `json:"scheduled"`
	BuildURL    string `json:"build_url"`
	Result      string `json:"result"`
}

// Sink receives each field as it becomes known
type Sink interface {
	Record(key, value string) error
}

// Recorder owns a Summary and forwards field completions to a sink.
// A nil sink accumulates only.
type Recorder struct {
	summary Summary
	sink    Sink
}

// NewRecorder creates a Recorder writing to the given sink (may be nil)
func NewRecorder(sink Sink) *Recorder {
	return &Recorder{sink: sink}
}

// Summary returns the fields accumulated so far
func (r *Recorder) Summary() Summary {
	return r.summary
}

// ServerURL records the remote server base URL
func (r *Recorder) ServerURL(u string) {
	r.summary.ServerURL = u
	r.record(KeyServerURL, u)
}

// QueueNumber records the queue item number derived from the queue handle
func (r *Recorder) QueueNumber(n int) {
	r.summary.QueueNumber = n
	r.record(KeyQueueNumber, strconv.Itoa(n))
}

// Scheduled records that the queue item resolved to a concrete build
func (r *Recorder) Scheduled(scheduled bool) {
	r.summary.Scheduled = scheduled
	r.record(KeyScheduled, strconv.FormatBool(scheduled))
}

// BuildURL records the URL of the running build
func (r *Recorder) BuildURL(u string) {
	r.summary.BuildURL = u
	r.record(KeyBuildURL, u)
}

// Result records the final build result. It is reported through the exit
// status and logs, not the sink, so no key is written.
func (r *Recorder) Result(result string) {
	r.summary.Result = result
}

func (r *Recorder) record(key, value string) {
	if r.sink == nil {
		return
	}
	if err := r.sink.Record(key, value); err != nil {
		// The build outcome matters more than the sink; log and move on.
		logger.Error("Failed to persist summary field", "key", key, "error", err)
	}
}

// FileSink appends KEY=VALUE lines to a properties file
type FileSink struct {
	path string
}

// NewFileSink creates a FileSink appending to the given path
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Record appends one KEY=VALUE line
func (s *FileSink) Record(key, value string) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // Trusted file path input
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s=%s\n", key, value); err != nil {
		return err
	}
	return nil
}
