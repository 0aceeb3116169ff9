package models

import (
	"time"
)

// BuildRecord represents one tracked build submission
type BuildRecord struct {
	ID          int64     `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	JobName     string    `json:"job_name"`
	Params      string    `json:"params"`
	QueueNumber int       `json:"queue_number"`
	BuildURL    string    `json:"build_url"`
	State       string    `json:"state"`
	Result      string    `json:"result"`
	Error       string    `json:"error,omitempty"`
}
