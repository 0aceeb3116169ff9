package jenkins

import (
	"errors"
	"net/http"
	"testing"
)

func TestQueueLocation(t *testing.T) {
	h := http.Header{}
	h.Set("Location", "https://ci.example.com/queue/item/123/")

	location, err := queueLocation(h)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if location != "https://ci.example.com/queue/item/123/" {
		t.Errorf("Unexpected location %q", location)
	}
}

func TestQueueLocationCaseInsensitive(t *testing.T) {
	// Header lookup must not depend on the server's casing; Set/Get
	// canonicalize the key the same way the response reader does
	h := http.Header{}
	h.Set("LOCATION", "https://ci.example.com/queue/item/9/")

	location, err := queueLocation(h)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if location != "https://ci.example.com/queue/item/9/" {
		t.Errorf("Unexpected location %q", location)
	}
}

func TestQueueLocationMissing(t *testing.T) {
	_, err := queueLocation(http.Header{})
	if !errors.Is(err, ErrMissingLocation) {
		t.Fatalf("Expected ErrMissingLocation, got %v", err)
	}
}

func TestQueueNumber(t *testing.T) {
	tests := []struct {
		name     string
		queueURL string
		expect   int
	}{
		{"Trailing slash", "https://ci.example.com/queue/item/123/", 123},
		{"No trailing slash", "https://ci.example.com/queue/item/456", 456},
		{"Not numeric", "https://ci.example.com/queue/item/abc/", 0},
		{"Empty", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := queueNumber(tt.queueURL); got != tt.expect {
				t.Errorf("Expected %d, got %d", tt.expect, got)
			}
		})
	}
}

func TestParseQueueItem(t *testing.T) {
	body := []byte(`{"executable":{"number":12,"url":"https://ci.example.com/job/deploy/12/"}}`)

	item, err := parseQueueItem(body)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if item.Executable == nil {
		t.Fatal("Expected executable to be set")
	}
	if item.Executable.URL != "https://ci.example.com/job/deploy/12/" {
		t.Errorf("Unexpected executable URL %q", item.Executable.URL)
	}

	// Pure parse: a second pass over the same body yields the same value
	again, err := parseQueueItem(body)
	if err != nil {
		t.Fatalf("Expected no error on second parse, got %v", err)
	}
	if again.Executable.URL != item.Executable.URL {
		t.Error("Expected identical result on repeated parse")
	}
}

func TestParseQueueItemNullExecutable(t *testing.T) {
	item, err := parseQueueItem([]byte(`{"executable":null}`))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if item.Executable != nil {
		t.Error("Expected nil executable for a pending queue item")
	}
}

func TestParseQueueItemMalformed(t *testing.T) {
	_, err := parseQueueItem([]byte(`<html>not json</html>`))
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("Expected ErrMalformedResponse, got %v", err)
	}
}

func TestParseBuildStatus(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		building   bool
		result     string
		expectsErr bool
	}{
		{"Running", `{"building":true,"result":null}`, true, "", false},
		{"Finished success", `{"building":false,"result":"SUCCESS"}`, false, "SUCCESS", false},
		{"Finished failure", `{"building":false,"result":"FAILURE"}`, false, "FAILURE", false},
		{"Result absent", `{"building":false}`, false, "", false},
		{"Malformed", `not-json`, false, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := parseBuildStatus([]byte(tt.body))
			if tt.expectsErr {
				if !errors.Is(err, ErrMalformedResponse) {
					t.Fatalf("Expected ErrMalformedResponse, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if st.Building != tt.building {
				t.Errorf("Expected building %v, got %v", tt.building, st.Building)
			}
			if st.result() != tt.result {
				t.Errorf("Expected result %q, got %q", tt.result, st.result())
			}
		})
	}
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name   string
		params []string
		token  string
		expect string
	}{
		{"Order preserved", []string{"FOO=1", "BAR=2"}, "", "FOO=1&BAR=2"},
		{"Token appended", []string{"V=1"}, "tok", "V=1&token=tok"},
		{"Token only", nil, "tok", "token=tok"},
		{"Empty", nil, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildQuery(tt.params, tt.token); got != tt.expect {
				t.Errorf("Expected %q, got %q", tt.expect, got)
			}
		})
	}
}
