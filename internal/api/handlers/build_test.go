package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"remotebuild/internal/engine"
	"remotebuild/internal/storage"
	"remotebuild/internal/summary"
)

type stubEngine struct {
	mu      sync.Mutex
	reqs    []engine.TrackRequest
	outcome engine.Outcome
	err     error
	done    chan struct{}
}

func newStubEngine(outcome engine.Outcome, err error) *stubEngine {
	return &stubEngine{outcome: outcome, err: err, done: make(chan struct{})}
}

func (s *stubEngine) TriggerAndTrack(ctx context.Context, req engine.TrackRequest, rec *summary.Recorder) (engine.Outcome, error) {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()
	defer close(s.done)
	return s.outcome, s.err
}

func initTestDB(t *testing.T) {
	t.Helper()
	if err := storage.Init(filepath.Join(t.TempDir(), "test.db")); err != nil {
		t.Fatalf("Failed to init database: %v", err)
	}
	t.Cleanup(func() { storage.Close() })
}

func TestTriggerBuildAccepted(t *testing.T) {
	initTestDB(t)

	stub := newStubEngine(engine.Outcome{
		State:       engine.StateFinishedSuccess,
		QueueNumber: 5,
		BuildURL:    "https://ci.example.com/job/deploy/5/",
		Result:      "SUCCESS",
	}, nil)
	handler := NewBuildHandler(stub)

	body := `{"job":"deploy","parameters":["ENV=staging","TAG=v1"],"wait":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/builds", strings.NewReader(body))
	w := httptest.NewRecorder()

	handler.TriggerBuild(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp["accepted"] != true {
		t.Errorf("Expected accepted response, got %v", resp)
	}

	select {
	case <-stub.done:
	case <-time.After(2 * time.Second):
		t.Fatal("Tracking goroutine never ran")
	}

	stub.mu.Lock()
	tracked := stub.reqs
	stub.mu.Unlock()
	if len(tracked) != 1 {
		t.Fatalf("Expected 1 tracked request, got %d", len(tracked))
	}
	if tracked[0].Job != "deploy" || !tracked[0].Wait {
		t.Errorf("Unexpected tracked request: %+v", tracked[0])
	}
	if len(tracked[0].Parameters) != 2 || tracked[0].Parameters[0] != "ENV=staging" {
		t.Errorf("Expected ordered parameters, got %v", tracked[0].Parameters)
	}

	// The terminal outcome must land in the record store
	deadline := time.Now().Add(2 * time.Second)
	for {
		records, err := storage.GetBuildRecords(10, 0)
		if err != nil {
			t.Fatalf("Failed to get records: %v", err)
		}
		if len(records) == 1 {
			if records[0].State != "FINISHED_SUCCESS" || records[0].Result != "SUCCESS" {
				t.Errorf("Unexpected record: %+v", records[0])
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Build record never written")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestTriggerBuildValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"Invalid JSON", `{job:`},
		{"Missing job", `{"parameters":["A=1"]}`},
		{"Job with slash", `{"job":"a/b"}`},
		{"Job with traversal", `{"job":".."}`},
		{"Bad parameter entry", `{"job":"deploy","parameters":["NOEQUALS"]}`},
		{"Job too long", `{"job":"` + strings.Repeat("x", 300) + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := newStubEngine(engine.Outcome{}, nil)
			handler := NewBuildHandler(stub)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/builds", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			handler.TriggerBuild(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
			}

			stub.mu.Lock()
			calls := len(stub.reqs)
			stub.mu.Unlock()
			if calls != 0 {
				t.Error("Rejected request must not reach the engine")
			}
		})
	}
}
