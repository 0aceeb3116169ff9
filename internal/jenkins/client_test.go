package jenkins

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"remotebuild/internal/config"
)

const crumbIssuerPath = "/crumbIssuer/api/json"

func newTestClient(serverURL string) *Client {
	return NewClient(config.JenkinsConfig{
		URL:      serverURL,
		Username: "user",
		Token:    "token",
		Timeout:  5,
	})
}

func TestNewClientNormalizesURL(t *testing.T) {
	client := NewClient(config.JenkinsConfig{
		URL:      "https://ci.example.com/",
		Username: "user",
		Token:    "token",
		Timeout:  5,
	})
	if client.BaseURL() != "https://ci.example.com" {
		t.Errorf("Expected trailing slash to be stripped, got %q", client.BaseURL())
	}
}

func TestTriggerSendsBasicAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == crumbIssuerPath {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"crumb":"test-crumb","crumbRequestField":"Jenkins-Crumb"}`))
			return
		}

		auth := r.Header.Get("Authorization")
		expectedAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("user:token"))
		if auth != expectedAuth {
			t.Errorf("Expected Auth header %q, got %q", expectedAuth, auth)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST request, got %s", r.Method)
		}
		if r.Header.Get("Jenkins-Crumb") != "test-crumb" {
			t.Errorf("Expected crumb header to be set, got %q", r.Header.Get("Jenkins-Crumb"))
		}

		w.Header().Set("Location", "https://ci.example.com/queue/item/55/")
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	headers, err := client.trigger(context.Background(), "/job/test-job/buildWithParameters", "A=1")
	if err != nil {
		t.Fatalf("Failed to trigger: %v", err)
	}
	if headers.Get("Location") != "https://ci.example.com/queue/item/55/" {
		t.Errorf("Unexpected Location %q", headers.Get("Location"))
	}
}

func TestTriggerProceedsWithoutCrumb(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == crumbIssuerPath {
			// Crumb issuer disabled on this server
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Location", "https://ci.example.com/queue/item/1/")
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if _, err := client.trigger(context.Background(), "/job/test-job/buildWithParameters", ""); err != nil {
		t.Fatalf("Expected trigger to proceed without crumb, got %v", err)
	}
}

func TestTriggerKeepsRedirectLocation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == crumbIssuerPath {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		// Some servers answer the trigger with a redirect; the client
		// must not follow it and lose the queue location
		w.Header().Set("Location", "https://ci.example.com/queue/item/77/")
		w.WriteHeader(http.StatusFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	headers, err := client.trigger(context.Background(), "/job/test-job/buildWithParameters", "")
	if err != nil {
		t.Fatalf("Failed to trigger: %v", err)
	}
	if headers.Get("Location") != "https://ci.example.com/queue/item/77/" {
		t.Errorf("Expected redirect Location to be preserved, got %q", headers.Get("Location"))
	}
}

func TestTriggerErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		expectPart string
	}{
		{"Unauthorized", http.StatusUnauthorized, "authentication failed"},
		{"Forbidden", http.StatusForbidden, "build token"},
		{"Not found", http.StatusNotFound, "not found"},
		{"Server error", http.StatusInternalServerError, "server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == crumbIssuerPath {
					w.WriteHeader(http.StatusNotFound)
					return
				}
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := newTestClient(server.URL)
			_, err := client.trigger(context.Background(), "/job/test-job/buildWithParameters", "")
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.expectPart) {
				t.Errorf("Expected error containing %q, got %v", tt.expectPart, err)
			}
		})
	}
}

func TestStatusJSON(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST request, got %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"building":true,"result":null}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	body, err := client.statusJSON(context.Background(), server.URL+"/job/deploy/12/")
	if err != nil {
		t.Fatalf("Failed to fetch status: %v", err)
	}
	if gotPath != "/job/deploy/12/api/json" {
		t.Errorf("Expected api/json path, got %q", gotPath)
	}
	if !strings.Contains(string(body), "building") {
		t.Errorf("Unexpected body %q", string(body))
	}
}

func TestStatusJSONServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if _, err := client.statusJSON(context.Background(), server.URL+"/queue/item/1/"); err == nil {
		t.Fatal("Expected error, got nil")
	}
}
