package jenkins

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"remotebuild/internal/config"
	"remotebuild/internal/logger"
)

// Client issues authenticated requests against the remote Jenkins API
type Client struct {
	url      string
	username string
	token    string
	client   *http.Client
}

// NewClient creates a new Jenkins client instance
func NewClient(cfg config.JenkinsConfig) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	client := &http.Client{
		Timeout: timeout,
		// The trigger response carries the queue location in a
		// Location header; following it would lose the header.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	if cfg.Insecure {
		// Caller-requested, typically for self-signed internal CI servers
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // Explicit opt-out via config
		}
	}

	// Normalize URL: remove trailing slash to avoid double slashes in paths
	url := strings.TrimSuffix(cfg.URL, "/")

	return &Client{
		url:      url,
		username: cfg.Username,
		token:    cfg.Token,
		client:   client,
	}
}

// BaseURL returns the normalized server base URL
func (c *Client) BaseURL() string {
	return c.url
}

// trigger sends the build-with-parameters POST and returns the response
// headers. path is relative to the server base URL; query is appended as-is.
func (c *Client) trigger(ctx context.Context, path, query string) (http.Header, error) {
	fullURL := c.url + path
	if query != "" {
		fullURL += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, nil)
	if err != nil {
		return nil, err
	}
	c.setAuth(req)

	// Jenkins expects a CSRF crumb on POST requests when the crumb issuer
	// is enabled; proceed without it otherwise.
	if crumbField, crumbValue, err := c.getCrumb(ctx); err != nil {
		logger.Warn("Failed to get CSRF crumb, proceeding without it", "error", err)
	} else if crumbField != "" && crumbValue != "" {
		req.Header.Set(crumbField, crumbValue)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %v", err)
	}

	// 3xx is fine here: some servers answer the trigger with a redirect
	// whose Location is the queue item itself.
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		logger.Error("Build trigger request failed", "status", resp.Status, "body", string(respBody), "url", fullURL)
		return nil, formatServerError(resp.StatusCode)
	}

	return resp.Header, nil
}

// statusJSON POSTs to {handle}/api/json and returns the raw body. handle is
// an absolute URL obtained from the server (queue item or build).
func (c *Client) statusJSON(ctx context.Context, handle string) ([]byte, error) {
	fullURL := strings.TrimSuffix(handle, "/") + "/api/json"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, nil)
	if err != nil {
		return nil, err
	}
	c.setAuth(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, formatServerError(resp.StatusCode)
	}

	return respBody, nil
}

// setAuth sets HTTP Basic credentials on the request.
// Jenkins API uses username:token.
func (c *Client) setAuth(req *http.Request) {
	auth := base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%s:%s", c.username, c.token)))
	req.Header.Set("Authorization", "Basic "+auth)
}

// getCrumb retrieves the CSRF crumb from Jenkins for POST requests.
// Returns the crumb field name and value separately.
func (c *Client) getCrumb(ctx context.Context) (string, string, error) {
	crumbURL := c.url + "/crumbIssuer/api/json"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, crumbURL, nil)
	if err != nil {
		return "", "", err
	}
	c.setAuth(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("failed to get crumb: %s", resp.Status)
	}

	var crumbData struct {
		Crumb             string `json:"crumb"`
		CrumbRequestField string `json:"crumbRequestField"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&crumbData); err != nil {
		return "", "", err
	}

	crumbField := crumbData.CrumbRequestField
	if crumbField == "" {
		crumbField = "Jenkins-Crumb" // Default field name
	}

	return crumbField, crumbData.Crumb, nil
}

// formatServerError maps Jenkins API errors into user-friendly messages
// without exposing internal implementation details
func formatServerError(statusCode int) error {
	switch statusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("authentication failed: invalid credentials (status %d)", statusCode)
	case http.StatusForbidden:
		return fmt.Errorf("access denied: insufficient permissions or missing build token (status %d)", statusCode)
	case http.StatusNotFound:
		return fmt.Errorf("resource not found (status %d)", statusCode)
	case http.StatusBadRequest:
		return fmt.Errorf("invalid request (status %d)", statusCode)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return fmt.Errorf("jenkins server error (status %d)", statusCode)
	default:
		return fmt.Errorf("jenkins api request failed (status %d)", statusCode)
	}
}
