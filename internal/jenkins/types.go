package jenkins

// Build results reported by the remote server. Anything other than
// ResultSuccess maps to a failure exit status.
const (
	ResultSuccess = "SUCCESS"
	ResultFailure = "FAILURE"
	ResultAborted = "ABORTED"
)

// queueItem models the queue-item api/json document. Executable stays nil
// until an executor picks the item up.
type queueItem struct {
	Cancelled  bool `json:"cancelled"`
	Executable *struct {
		Number int    `json:"number"`
		URL    string `json:"url"`
	} `json:"executable"`
}

// buildStatus models the build api/json document. Result is null while the
// build is still running.
type buildStatus struct {
	Number   int     `json:"number"`
	URL      string  `json:"url"`
	Building bool    `json:"building"`
	Result   *string `json:"result"`
}

func (b buildStatus) result() string {
	if b.Result == nil {
		return ""
	}
	return *b.Result
}
