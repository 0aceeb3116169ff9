package jenkins

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// ErrMissingLocation signals that the trigger response carried no queue
// location, meaning no job was actually queued. The usual cause is a
// missing or incorrect build token.
var ErrMissingLocation = errors.New("no queue location in trigger response; check the build token")

// ErrMalformedResponse signals a status body that is not valid JSON
var ErrMalformedResponse = errors.New("malformed status response")

// queueLocation extracts the queue-item URL from the trigger response
// headers. Header lookup is case-insensitive.
func queueLocation(h http.Header) (string, error) {
	location := h.Get("Location")
	if location == "" {
		return "", ErrMissingLocation
	}
	return location, nil
}

// queueNumber derives the integer queue item id from the last path segment
// of the queue URL. Informational only; zero when it cannot be derived.
func queueNumber(queueURL string) int {
	parts := strings.Split(strings.Trim(queueURL, "/"), "/")
	if len(parts) == 0 {
		return 0
	}
	n, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return 0
	}
	return n
}

// parseQueueItem decodes a queue-item status body
func parseQueueItem(body []byte) (queueItem, error) {
	var item queueItem
	if err := json.Unmarshal(body, &item); err != nil {
		return queueItem{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return item, nil
}

// parseBuildStatus decodes a build status body
func parseBuildStatus(body []byte) (buildStatus, error) {
	var status buildStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return buildStatus{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return status, nil
}

// buildQuery joins the ordered KEY=VALUE entries with & and appends the
// build token parameter when set. Entries pass through verbatim; callers
// wanting escaped values pre-escape them.
func buildQuery(params []string, buildToken string) string {
	entries := make([]string, 0, len(params)+1)
	entries = append(entries, params...)
	if buildToken != "" {
		entries = append(entries, "token="+buildToken)
	}
	return strings.Join(entries, "&")
}
